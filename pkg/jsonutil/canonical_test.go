package jsonutil_test

import (
	"testing"

	"github.com/docseal/docseal/pkg/jsonutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalMarshal_SortedKeys(t *testing.T) {
	input := map[string]any{
		"zebra": 1,
		"alpha": 2,
		"mid":   3,
	}
	out, err := jsonutil.CanonicalMarshal(input)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"mid":3,"zebra":1}`, string(out))
}

func TestCanonicalMarshal_Nested(t *testing.T) {
	input := map[string]any{
		"b": map[string]any{"z": 1, "a": 2},
		"a": []any{map[string]any{"y": true, "x": nil}},
	}
	out, err := jsonutil.CanonicalMarshal(input)
	require.NoError(t, err)
	assert.Equal(t, `{"a":[{"x":null,"y":true}],"b":{"a":2,"z":1}}`, string(out))
}

func TestCanonicalMarshal_LargeIntegers(t *testing.T) {
	input := map[string]any{"size": int64(9007199254740993)}
	out, err := jsonutil.CanonicalMarshal(input)
	require.NoError(t, err)
	assert.Equal(t, `{"size":9007199254740993}`, string(out))
}

func TestCanonicalMarshal_Struct(t *testing.T) {
	type rec struct {
		Path string `json:"path"`
		Size int64  `json:"size"`
	}
	out, err := jsonutil.CanonicalMarshal(rec{Path: "docs/a.md", Size: 3})
	require.NoError(t, err)
	assert.Equal(t, `{"path":"docs/a.md","size":3}`, string(out))
}

func TestCanonicalMarshalOmit(t *testing.T) {
	type doc struct {
		Root     string `json:"merkle_root"`
		Checksum string `json:"checksum"`
	}
	a, err := jsonutil.CanonicalMarshalOmit(doc{Root: "ab", Checksum: "1"}, "checksum")
	require.NoError(t, err)
	b, err := jsonutil.CanonicalMarshalOmit(doc{Root: "ab", Checksum: "2"}, "checksum")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, `{"merkle_root":"ab"}`, string(a))
}

func TestCanonicalMarshal_Unmarshalable(t *testing.T) {
	_, err := jsonutil.CanonicalMarshal(map[string]any{"ch": make(chan int)})
	assert.Error(t, err)
}
