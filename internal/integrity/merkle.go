package integrity

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/docseal/docseal/pkg/model"
)

// Domain prefixes keep leaf, interior and empty-tree digests disjoint.
const (
	leafPrefix  byte = 0x00
	nodePrefix  byte = 0x01
	emptyPrefix byte = 0x02
)

// Node is one vertex of a Merkle tree. Leaves carry the file path.
type Node struct {
	Digest model.Digest
	Left   *Node
	Right  *Node
	Path   string
	raw    [DigestSize]byte
}

// IsLeaf reports whether n has no children.
func (n *Node) IsLeaf() bool { return n.Left == nil && n.Right == nil }

// Leaves returns the leaf paths under n in order.
func (n *Node) Leaves() []string {
	if n == nil {
		return nil
	}
	if n.IsLeaf() {
		return []string{n.Path}
	}
	out := n.Left.Leaves()
	if n.Right != nil {
		out = append(out, n.Right.Leaves()...)
	}
	return out
}

// EmptyRoot is the root digest of a tree over zero files.
func EmptyRoot(alg model.Algorithm) (model.Digest, error) {
	return Sum(alg, append([]byte{emptyPrefix}, "docseal.empty"...))
}

// Build constructs the tree over records. Records are ordered by path
// first, so the caller's order never matters. Pairs are combined left to
// right; an odd node at the end of a level is promoted unchanged, never
// duplicated. Build returns nil for an empty record set.
func Build(alg model.Algorithm, records []model.FileRecord) (*Node, error) {
	if len(records) == 0 {
		return nil, nil
	}
	sorted := make([]model.FileRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	h, err := NewHash(alg)
	if err != nil {
		return nil, err
	}

	level := make([]*Node, len(sorted))
	for i, rec := range sorted {
		if i > 0 && sorted[i-1].Path == rec.Path {
			return nil, fmt.Errorf("duplicate path in record set: %s", rec.Path)
		}
		content, err := ParseDigest(rec.Digest)
		if err != nil {
			return nil, fmt.Errorf("leaf %s: %w", rec.Path, err)
		}
		var size [8]byte
		binary.BigEndian.PutUint64(size[:], uint64(rec.Size))

		h.Reset()
		h.Write([]byte{leafPrefix})
		h.Write([]byte(rec.Path))
		h.Write([]byte{0x00})
		h.Write(content[:])
		h.Write(size[:])
		level[i] = newNode(h.Sum(nil), nil, nil, rec.Path)
	}

	for len(level) > 1 {
		next := make([]*Node, 0, (len(level)+1)/2)
		for i := 0; i+1 < len(level); i += 2 {
			left, right := level[i], level[i+1]
			h.Reset()
			h.Write([]byte{nodePrefix})
			h.Write(left.raw[:])
			h.Write(right.raw[:])
			next = append(next, newNode(h.Sum(nil), left, right, ""))
		}
		if len(level)%2 == 1 {
			next = append(next, level[len(level)-1])
		}
		level = next
	}
	return level[0], nil
}

// Root returns the Merkle root over records, or EmptyRoot for none.
func Root(alg model.Algorithm, records []model.FileRecord) (model.Digest, error) {
	root, err := Build(alg, records)
	if err != nil {
		return "", err
	}
	if root == nil {
		return EmptyRoot(alg)
	}
	return root.Digest, nil
}

func newNode(sum []byte, left, right *Node, p string) *Node {
	n := &Node{Left: left, Right: right, Path: p}
	copy(n.raw[:], sum)
	n.Digest = FormatDigest(sum)
	return n
}
