package config

import (
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/docseal/docseal/pkg/errclass"
	"github.com/docseal/docseal/pkg/model"
)

// Keys lists the settings addressable by Get and Set.
var Keys = []string{
	"algorithm",
	"tracked_paths",
	"ignore",
	"compression.codec",
	"compression.level",
	"default_tags",
	"lock_timeout",
	"logging.level",
	"logging.format",
	"retention_policy.keep_min_snapshots",
	"retention_policy.keep_min_age",
}

// Get returns the string form of a configuration value.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "algorithm":
		return string(c.Algorithm), nil
	case "tracked_paths":
		return strings.Join(c.TrackedPaths, ","), nil
	case "ignore":
		return strings.Join(c.Ignore, ","), nil
	case "compression.codec":
		return c.Compression.Codec, nil
	case "compression.level":
		return c.Compression.Level, nil
	case "default_tags":
		return strings.Join(c.DefaultTags, ","), nil
	case "lock_timeout":
		return c.LockTimeout, nil
	case "logging.level":
		return c.Logging.Level, nil
	case "logging.format":
		return c.Logging.Format, nil
	case "retention_policy.keep_min_snapshots":
		return strconv.Itoa(c.Retention.KeepMinSnapshots), nil
	case "retention_policy.keep_min_age":
		return c.Retention.KeepMinAge, nil
	}
	return "", errclass.ErrConfigMalformed.WithMessagef("unknown config key: %s", key)
}

// Set assigns a configuration value from its string form and revalidates.
// List values accept a YAML sequence ("[a, b]") or a comma-separated list.
func (c *Config) Set(key, value string) error {
	next := *c
	switch key {
	case "algorithm":
		next.Algorithm = model.Algorithm(value)
	case "tracked_paths":
		list, err := parseList(value)
		if err != nil {
			return err
		}
		next.TrackedPaths = list
	case "ignore":
		list, err := parseList(value)
		if err != nil {
			return err
		}
		next.Ignore = list
	case "compression.codec":
		next.Compression.Codec = value
	case "compression.level":
		next.Compression.Level = value
	case "default_tags":
		list, err := parseList(value)
		if err != nil {
			return err
		}
		next.DefaultTags = list
	case "lock_timeout":
		next.LockTimeout = value
	case "logging.level":
		next.Logging.Level = value
	case "logging.format":
		next.Logging.Format = value
	case "retention_policy.keep_min_snapshots":
		n, err := strconv.Atoi(value)
		if err != nil {
			return errclass.ErrConfigMalformed.WithMessagef("%s: not an integer: %s", key, value)
		}
		next.Retention.KeepMinSnapshots = n
	case "retention_policy.keep_min_age":
		next.Retention.KeepMinAge = value
	default:
		return errclass.ErrConfigMalformed.WithMessagef("unknown config key: %s", key)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

func parseList(value string) ([]string, error) {
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, "[") {
		var list []string
		if err := yaml.Unmarshal([]byte(value), &list); err != nil {
			return nil, errclass.ErrConfigMalformed.WithMessagef("invalid list %q: %v", value, err)
		}
		return list, nil
	}
	if value == "" {
		return nil, nil
	}
	var list []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	if len(list) == 0 {
		return nil, errclass.ErrConfigMalformed.WithMessagef("empty list %q", value)
	}
	return list, nil
}
