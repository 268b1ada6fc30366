package codec_test

import (
	"encoding/json"
	"testing"

	"github.com/docseal/docseal/pkg/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonical_KeyOrderIndependent(t *testing.T) {
	a, err := codec.Canonical(map[string]any{"b": 1, "a": "x"})
	require.NoError(t, err)
	b, err := codec.Canonical(map[string]any{"a": "x", "b": 1})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCanonical_StableAcrossJSONRoundTrip(t *testing.T) {
	payload := map[string]any{
		"file_count": 3,
		"total_size": int64(1 << 40),
		"ratio":      0.5,
		"paths":      []string{"docs/a.md", "docs/b.md"},
		"nested":     map[string]any{"ok": true},
	}
	before, err := codec.Canonical(payload)
	require.NoError(t, err)

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	after, err := codec.Canonical(decoded)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestNormalizeMap(t *testing.T) {
	out, err := codec.NormalizeMap(map[string]any{"n": 7, "f": 1.25})
	require.NoError(t, err)
	assert.Equal(t, int64(7), out["n"])
	assert.Equal(t, 1.25, out["f"])

	out, err = codec.NormalizeMap(nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestMarshalUnmarshal(t *testing.T) {
	data, err := codec.Marshal(map[string]any{"kind": "lock"})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, codec.Unmarshal(data, &got))
	assert.Equal(t, "lock", got["kind"])
}

func TestNormalize_Unmarshalable(t *testing.T) {
	_, err := codec.Normalize(map[string]any{"ch": make(chan int)})
	assert.Error(t, err)
}
