package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/docseal/docseal/pkg/config"
	"github.com/docseal/docseal/pkg/errclass"
	"github.com/docseal/docseal/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, root, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(root, config.StateDir), 0755))
	require.NoError(t, os.WriteFile(config.Path(root), []byte(content), 0644))
}

func TestDefault(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, model.AlgorithmSHA256, cfg.Algorithm)
	assert.Equal(t, []string{"docs"}, cfg.TrackedPaths)
	assert.Equal(t, []string{"README.md", "docs/API.md", "docs/SECURITY.md"}, cfg.RequiredPaths())
	assert.Equal(t, "zstd", cfg.Compression.Codec)
	assert.Equal(t, 10*time.Second, cfg.LockTimeoutDuration())
}

func TestLoad_NotExists(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoad_EmptyFile(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "")
	cfg, err := config.Load(root)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoad_Overrides(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, `
algorithm: blake3
tracked_paths: [docs, ./guides/]
ignore: ["*.tmp", "docs/drafts/*"]
required:
  - path: docs/API.md
    template: api
compression:
  codec: lz4
  level: fast
retention_policy:
  keep_min_snapshots: 3
  keep_min_age: 1h
  keep_tags: [release]
lock_timeout: 2s
logging:
  level: debug
  format: json
`)
	cfg, err := config.Load(root)
	require.NoError(t, err)
	assert.Equal(t, model.AlgorithmBLAKE3, cfg.Algorithm)
	assert.Equal(t, []string{"docs", "guides"}, cfg.TrackedPaths)
	assert.Equal(t, []string{"docs/API.md"}, cfg.RequiredPaths())
	assert.Equal(t, "lz4", cfg.Compression.Codec)
	assert.Equal(t, 2*time.Second, cfg.LockTimeoutDuration())
	assert.Equal(t, "json", cfg.Logging.Format)

	policy := cfg.RetentionPolicy()
	assert.Equal(t, 3, policy.KeepMinSnapshots)
	assert.Equal(t, time.Hour, policy.KeepMinAge)
	assert.Equal(t, []string{"release"}, policy.KeepTags)
}

func TestLoad_Malformed(t *testing.T) {
	cases := map[string]string{
		"unknown key":      "algorithim: sha256\n",
		"bad yaml":         "tracked_paths: [docs\n",
		"bad algorithm":    "algorithm: md5\n",
		"escaping path":    "tracked_paths: [../outside]\n",
		"state dir":        "tracked_paths: [.docseal]\n",
		"empty tracked":    "tracked_paths: []\n",
		"bad codec":        "compression: {codec: brotli, level: default}\n",
		"bad timeout":      "lock_timeout: soon\n",
		"bad glob":         "ignore: ['[']\n",
		"duplicate req":    "required: [{path: a.md, template: x}, {path: ./a.md, template: y}]\n",
		"missing template": "required: [{path: a.md}]\n",
		"bad log level":    "logging: {level: loud, format: text}\n",
		"bad tag":          "default_tags: ['has space']\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			root := t.TempDir()
			writeConfig(t, root, content)
			_, err := config.Load(root)
			require.ErrorIs(t, err, errclass.ErrConfigMalformed)
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	root := t.TempDir()
	cfg := config.Default()
	cfg.Algorithm = model.AlgorithmBLAKE3
	cfg.Signer.Command = []string{"gpg", "--detach-sign", "--armor"}
	require.NoError(t, config.Save(root, cfg))

	loaded, err := config.Load(root)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestSave_RejectsInvalid(t *testing.T) {
	cfg := config.Default()
	cfg.Compression.Level = "ultra"
	err := config.Save(t.TempDir(), cfg)
	require.ErrorIs(t, err, errclass.ErrConfigMalformed)
}

func TestGetSet(t *testing.T) {
	cfg := config.Default()

	require.NoError(t, cfg.Set("compression.codec", "gzip"))
	v, err := cfg.Get("compression.codec")
	require.NoError(t, err)
	assert.Equal(t, "gzip", v)

	require.NoError(t, cfg.Set("tracked_paths", "[docs, guides]"))
	assert.Equal(t, []string{"docs", "guides"}, cfg.TrackedPaths)

	require.NoError(t, cfg.Set("default_tags", "auto, nightly"))
	assert.Equal(t, []string{"auto", "nightly"}, cfg.DefaultTags)

	require.NoError(t, cfg.Set("retention_policy.keep_min_snapshots", "4"))
	v, _ = cfg.Get("retention_policy.keep_min_snapshots")
	assert.Equal(t, "4", v)

	for _, key := range config.Keys {
		_, err := cfg.Get(key)
		assert.NoError(t, err, key)
	}
}

func TestSet_InvalidLeavesConfigUnchanged(t *testing.T) {
	cfg := config.Default()
	err := cfg.Set("algorithm", "crc32")
	require.ErrorIs(t, err, errclass.ErrConfigMalformed)
	assert.Equal(t, model.AlgorithmSHA256, cfg.Algorithm)

	require.ErrorIs(t, cfg.Set("no.such.key", "x"), errclass.ErrConfigMalformed)
	_, err = cfg.Get("no.such.key")
	require.ErrorIs(t, err, errclass.ErrConfigMalformed)
}
