package integrity_test

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"testing"

	"github.com/docseal/docseal/internal/integrity"
	"github.com/docseal/docseal/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func digestOf(s string) model.Digest {
	sum := sha256.Sum256([]byte(s))
	return model.Digest(hex.EncodeToString(sum[:]))
}

func rec(path, content string) model.FileRecord {
	return model.FileRecord{Path: path, Digest: digestOf(content), Size: int64(len(content))}
}

func leafHash(r model.FileRecord) []byte {
	content, _ := hex.DecodeString(string(r.Digest))
	var size [8]byte
	binary.BigEndian.PutUint64(size[:], uint64(r.Size))
	h := sha256.New()
	h.Write([]byte{0x00})
	h.Write([]byte(r.Path))
	h.Write([]byte{0x00})
	h.Write(content)
	h.Write(size[:])
	return h.Sum(nil)
}

func nodeHash(l, r []byte) []byte {
	h := sha256.New()
	h.Write([]byte{0x01})
	h.Write(l)
	h.Write(r)
	return h.Sum(nil)
}

func TestRoot_Deterministic(t *testing.T) {
	records := []model.FileRecord{rec("docs/a.md", "a"), rec("docs/b.md", "b"), rec("docs/c.md", "c")}
	r1, err := integrity.Root(model.AlgorithmSHA256, records)
	require.NoError(t, err)
	r2, err := integrity.Root(model.AlgorithmSHA256, records)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
	assert.True(t, integrity.ValidDigest(r1))
}

func TestRoot_OrderIndependent(t *testing.T) {
	a, b, c := rec("docs/a.md", "a"), rec("docs/b.md", "b"), rec("docs/c.md", "c")
	r1, err := integrity.Root(model.AlgorithmSHA256, []model.FileRecord{a, b, c})
	require.NoError(t, err)
	r2, err := integrity.Root(model.AlgorithmSHA256, []model.FileRecord{c, a, b})
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
}

func TestRoot_OddNodePromoted(t *testing.T) {
	a, b, c := rec("docs/a.md", "a"), rec("docs/b.md", "b"), rec("docs/c.md", "c")
	want := nodeHash(nodeHash(leafHash(a), leafHash(b)), leafHash(c))

	root, err := integrity.Root(model.AlgorithmSHA256, []model.FileRecord{a, b, c})
	require.NoError(t, err)
	assert.Equal(t, model.Digest(hex.EncodeToString(want)), root)

	// Promotion is not duplication: H(ab, cc) must differ.
	dup := nodeHash(nodeHash(leafHash(a), leafHash(b)), nodeHash(leafHash(c), leafHash(c)))
	assert.NotEqual(t, model.Digest(hex.EncodeToString(dup)), root)
}

func TestRoot_SingleLeaf(t *testing.T) {
	a := rec("README.md", "hello")
	root, err := integrity.Root(model.AlgorithmSHA256, []model.FileRecord{a})
	require.NoError(t, err)
	assert.Equal(t, model.Digest(hex.EncodeToString(leafHash(a))), root)
}

func TestRoot_Empty(t *testing.T) {
	root, err := integrity.Root(model.AlgorithmSHA256, nil)
	require.NoError(t, err)
	empty, err := integrity.EmptyRoot(model.AlgorithmSHA256)
	require.NoError(t, err)
	assert.Equal(t, empty, root)

	node, err := integrity.Build(model.AlgorithmSHA256, nil)
	require.NoError(t, err)
	assert.Nil(t, node)
}

func TestRoot_SensitiveToEveryLeafField(t *testing.T) {
	base := []model.FileRecord{rec("docs/a.md", "a"), rec("docs/b.md", "b")}
	baseRoot, err := integrity.Root(model.AlgorithmSHA256, base)
	require.NoError(t, err)

	variants := map[string][]model.FileRecord{
		"content": {rec("docs/a.md", "a"), rec("docs/b.md", "B")},
		"path":    {rec("docs/a.md", "a"), rec("docs/bb.md", "b")},
		"size":    {rec("docs/a.md", "a"), {Path: "docs/b.md", Digest: digestOf("b"), Size: 2}},
		"removed": {rec("docs/a.md", "a")},
		"added":   {rec("docs/a.md", "a"), rec("docs/b.md", "b"), rec("docs/c.md", "c")},
	}
	for name, records := range variants {
		root, err := integrity.Root(model.AlgorithmSHA256, records)
		require.NoError(t, err, name)
		assert.NotEqual(t, baseRoot, root, name)
	}
}

func TestRoot_AlgorithmsDiffer(t *testing.T) {
	records := []model.FileRecord{rec("docs/a.md", "a")}
	s, err := integrity.Root(model.AlgorithmSHA256, records)
	require.NoError(t, err)
	b, err := integrity.Root(model.AlgorithmBLAKE3, records)
	require.NoError(t, err)
	assert.NotEqual(t, s, b)
	assert.True(t, integrity.ValidDigest(b))
}

func TestBuild_Errors(t *testing.T) {
	_, err := integrity.Build(model.AlgorithmSHA256, []model.FileRecord{{Path: "a", Digest: "zz"}})
	assert.Error(t, err)

	_, err = integrity.Build(model.AlgorithmSHA256, []model.FileRecord{rec("a", "1"), rec("a", "2")})
	assert.Error(t, err)

	_, err = integrity.Build(model.Algorithm("md5"), []model.FileRecord{rec("a", "1")})
	assert.Error(t, err)
}

func TestBuild_Leaves(t *testing.T) {
	records := []model.FileRecord{rec("c", "3"), rec("a", "1"), rec("b", "2"), rec("d", "4"), rec("e", "5")}
	root, err := integrity.Build(model.AlgorithmSHA256, records)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, root.Leaves())
	assert.False(t, root.IsLeaf())
}
