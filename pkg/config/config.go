// Package config provides the typed docseal configuration stored in
// .docseal/config.yaml. It is decoded strictly and validated once at load.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/docseal/docseal/pkg/errclass"
	"github.com/docseal/docseal/pkg/fsutil"
	"github.com/docseal/docseal/pkg/model"
	"github.com/docseal/docseal/pkg/pathutil"
)

// StateDir is the per-project state directory.
const StateDir = ".docseal"

// Config represents the docseal configuration.
type Config struct {
	Algorithm    model.Algorithm       `yaml:"algorithm"`
	TrackedPaths []string              `yaml:"tracked_paths"`
	Ignore       []string              `yaml:"ignore,omitempty"`
	Required     []RequiredFile        `yaml:"required"`
	Compression  CompressionConfig     `yaml:"compression"`
	Generator    GeneratorConfig       `yaml:"generator,omitempty"`
	Signer       SignerConfig          `yaml:"signer,omitempty"`
	Retention    RetentionPolicyConfig `yaml:"retention_policy"`
	DefaultTags  []string              `yaml:"default_tags,omitempty"`
	LockTimeout  string                `yaml:"lock_timeout"`
	Logging      LoggingConfig         `yaml:"logging"`
}

// RequiredFile is a file that must exist for the project to be approvable.
// Template names the built-in or templates_dir template used to heal it.
type RequiredFile struct {
	Path     string `yaml:"path"`
	Template string `yaml:"template"`
}

// CompressionConfig selects the snapshot archive codec.
type CompressionConfig struct {
	Codec string `yaml:"codec"` // none, gzip, zstd, lz4
	Level string `yaml:"level"` // fast, default, max
}

// GeneratorConfig configures how missing required files are regenerated.
// When Command is empty the built-in templates are used.
type GeneratorConfig struct {
	Command      []string `yaml:"command,omitempty"`
	TemplatesDir string   `yaml:"templates_dir,omitempty"`
}

// SignerConfig configures the external signing command.
type SignerConfig struct {
	Command []string `yaml:"command,omitempty"`
}

// RetentionPolicyConfig configures snapshot pruning.
type RetentionPolicyConfig struct {
	KeepMinSnapshots int      `yaml:"keep_min_snapshots"`
	KeepMinAge       string   `yaml:"keep_min_age"`
	KeepTags         []string `yaml:"keep_tags,omitempty"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, text
}

var (
	validCodecs  = []string{"none", "gzip", "zstd", "lz4"}
	validLevels  = []string{"fast", "default", "max"}
	validLogLvls = []string{"debug", "info", "warn", "error"}
	validFormats = []string{"json", "text"}
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Algorithm:    model.DefaultAlgorithm,
		TrackedPaths: []string{"docs"},
		Required: []RequiredFile{
			{Path: "README.md", Template: "readme"},
			{Path: "docs/API.md", Template: "api"},
			{Path: "docs/SECURITY.md", Template: "security"},
		},
		Compression: CompressionConfig{Codec: "zstd", Level: "default"},
		Retention: RetentionPolicyConfig{
			KeepMinSnapshots: 10,
			KeepMinAge:       "24h",
		},
		LockTimeout: "10s",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Path returns the location of the config file for a project root.
func Path(root string) string {
	return filepath.Join(root, StateDir, "config.yaml")
}

// Load loads configuration from .docseal/config.yaml.
// Returns the default config if the file doesn't exist. Unknown keys and
// invalid values are reported as ErrConfigMalformed.
func Load(root string) (*Config, error) {
	data, err := os.ReadFile(Path(root))
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, errclass.ErrIOFailure.WithMessagef("read config: %v", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errclass.ErrConfigMalformed.WithMessagef("parse config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save validates cfg and writes it to .docseal/config.yaml atomically.
func Save(root string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(root, StateDir), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := fsutil.AtomicWrite(Path(root), data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks every field and normalizes path lists in place.
func (c *Config) Validate() error {
	bad := func(format string, args ...any) error {
		return errclass.ErrConfigMalformed.WithMessagef(format, args...)
	}

	if !c.Algorithm.Valid() {
		return bad("algorithm must be sha256 or blake3, got %q", c.Algorithm)
	}

	if len(c.TrackedPaths) == 0 {
		return bad("tracked_paths must not be empty")
	}
	for i, p := range c.TrackedPaths {
		norm, err := normalizeProjectPath(p)
		if err != nil {
			return bad("tracked_paths[%d]: %v", i, err)
		}
		c.TrackedPaths[i] = norm
	}

	for i, pattern := range c.Ignore {
		if _, err := path.Match(pattern, ""); err != nil {
			return bad("ignore[%d]: bad pattern %q", i, pattern)
		}
	}

	seen := make(map[string]bool, len(c.Required))
	for i, r := range c.Required {
		norm, err := normalizeProjectPath(r.Path)
		if err != nil {
			return bad("required[%d]: %v", i, err)
		}
		if seen[norm] {
			return bad("required[%d]: duplicate path %s", i, norm)
		}
		seen[norm] = true
		c.Required[i].Path = norm
		if strings.TrimSpace(r.Template) == "" {
			return bad("required[%d]: template must not be empty", i)
		}
	}

	if !oneOf(c.Compression.Codec, validCodecs) {
		return bad("compression.codec must be one of %v, got %q", validCodecs, c.Compression.Codec)
	}
	if !oneOf(c.Compression.Level, validLevels) {
		return bad("compression.level must be one of %v, got %q", validLevels, c.Compression.Level)
	}

	if c.Retention.KeepMinSnapshots < 0 {
		return bad("retention_policy.keep_min_snapshots must be non-negative")
	}
	if d, err := time.ParseDuration(c.Retention.KeepMinAge); err != nil || d < 0 {
		return bad("retention_policy.keep_min_age: invalid duration %q", c.Retention.KeepMinAge)
	}
	for _, tag := range append(append([]string{}, c.Retention.KeepTags...), c.DefaultTags...) {
		if err := pathutil.ValidateTag(tag); err != nil {
			return bad("%v", err)
		}
	}

	if d, err := time.ParseDuration(c.LockTimeout); err != nil || d < 0 {
		return bad("lock_timeout: invalid duration %q", c.LockTimeout)
	}

	if !oneOf(c.Logging.Level, validLogLvls) {
		return bad("logging.level must be one of %v, got %q", validLogLvls, c.Logging.Level)
	}
	if !oneOf(c.Logging.Format, validFormats) {
		return bad("logging.format must be one of %v, got %q", validFormats, c.Logging.Format)
	}
	return nil
}

// LockTimeoutDuration returns the parsed lock_timeout.
func (c *Config) LockTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.LockTimeout)
	return d
}

// RetentionPolicy returns the parsed retention policy.
func (c *Config) RetentionPolicy() model.RetentionPolicy {
	age, _ := time.ParseDuration(c.Retention.KeepMinAge)
	return model.RetentionPolicy{
		KeepMinSnapshots: c.Retention.KeepMinSnapshots,
		KeepMinAge:       age,
		KeepTags:         append([]string(nil), c.Retention.KeepTags...),
	}
}

// RequiredPaths returns the required file paths in configuration order.
func (c *Config) RequiredPaths() []string {
	out := make([]string, len(c.Required))
	for i, r := range c.Required {
		out[i] = r.Path
	}
	return out
}

func normalizeProjectPath(p string) (string, error) {
	norm, err := pathutil.NormalizeRel(p)
	if err != nil {
		return "", err
	}
	if norm == StateDir || strings.HasPrefix(norm, StateDir+"/") {
		return "", fmt.Errorf("%s is reserved", StateDir)
	}
	return norm, nil
}

func oneOf(v string, set []string) bool {
	for _, s := range set {
		if v == s {
			return true
		}
	}
	return false
}
