package integrity

import (
	"testing"

	"github.com/docseal/docseal/pkg/model"
)

func FuzzParseDigest(f *testing.F) {
	f.Add("e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855")
	f.Add("E3B0C44298FC1C149AFBF4C8996FB92427AE41E4649B934CA495991B7852B855")
	f.Add("zz")
	f.Add("")

	f.Fuzz(func(t *testing.T, s string) {
		d := model.Digest(s)
		raw, err := ParseDigest(d)
		if ValidDigest(d) {
			if err != nil {
				t.Fatalf("ValidDigest(%q) but ParseDigest failed: %v", s, err)
			}
			if got := FormatDigest(raw[:]); got != d {
				t.Fatalf("round trip %q -> %q", s, got)
			}
		}
	})
}

// FuzzMerkleRoot checks that the root does not depend on input order and
// that a one-byte size change moves it.
func FuzzMerkleRoot(f *testing.F) {
	f.Add("a.md", "b.md", "c.md", int64(3))
	f.Add("docs/x", "docs/y", "z", int64(0))

	f.Fuzz(func(t *testing.T, a, b, c string, size int64) {
		if a == b || b == c || a == c || size < 0 || size == 1<<63-1 {
			return
		}
		digest := FormatDigest(make([]byte, DigestSize))
		recs := []model.FileRecord{
			{Path: a, Digest: digest, Size: size},
			{Path: b, Digest: digest, Size: size},
			{Path: c, Digest: digest, Size: size},
		}
		reversed := []model.FileRecord{recs[2], recs[1], recs[0]}

		r1, err := Root(model.AlgorithmSHA256, recs)
		if err != nil {
			return
		}
		r2, err := Root(model.AlgorithmSHA256, reversed)
		if err != nil {
			t.Fatalf("Root failed only for reversed input: %v", err)
		}
		if r1 != r2 {
			t.Fatalf("root depends on input order: %s vs %s", r1, r2)
		}

		recs[0].Size++
		r3, err := Root(model.AlgorithmSHA256, recs)
		if err != nil {
			t.Fatal(err)
		}
		if r3 == r1 {
			t.Fatalf("size change did not move the root")
		}
	})
}
