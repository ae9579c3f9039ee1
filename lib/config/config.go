// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/pathspace/lib/capability"
	"github.com/bureau-foundation/pathspace/lib/layer"
	"github.com/bureau-foundation/pathspace/lib/spacepath"
)

// EnvVar names the environment variable Load reads the config path
// from.
const EnvVar = "PATHSPACE_CONFIG"

// MountKind selects the store mounted at a path.
type MountKind string

const (
	// Memory mounts a fresh in-memory tree.
	Memory MountKind = "memory"
	// Filesystem mounts a directory of string files.
	Filesystem MountKind = "filesystem"
	// Bounded mounts an in-memory tree that keeps at most Capacity
	// values per path.
	Bounded MountKind = "bounded"
	// Alias mounts a view of another part of the same space.
	Alias MountKind = "alias"
	// Trellis mounts one output that merges several paths of the same
	// space.
	Trellis MountKind = "trellis"
)

var mountKinds = []MountKind{Memory, Filesystem, Bounded, Alias, Trellis}

// Config describes a space: tuning for the root tree, the stores
// mounted into it, the access policy, and logging.
type Config struct {
	Space  SpaceConfig   `yaml:"space" json:"space"`
	Mounts []MountConfig `yaml:"mounts" json:"mounts"`

	// Grants and Denials form the capability policy applied to
	// clients. With no grants the space is unrestricted.
	Grants  []capability.Grant `yaml:"grants" json:"grants"`
	Denials []capability.Grant `yaml:"denials" json:"denials"`

	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// SpaceConfig tunes the root tree.
type SpaceConfig struct {
	// CacheCapacity bounds the read-through cache. Default: 1024.
	CacheCapacity int `yaml:"cache_capacity" json:"cache_capacity"`

	// DefaultTimeout is how long blocking CLI reads wait, as a
	// time.ParseDuration string. Default: 100ms.
	DefaultTimeout string `yaml:"default_timeout" json:"default_timeout"`

	// Workers sizes the task pool. Default: runtime.NumCPU().
	Workers int `yaml:"workers" json:"workers"`
}

// MountConfig places one store in the tree.
type MountConfig struct {
	// Path is the concrete mount point.
	Path string    `yaml:"path" json:"path"`
	Kind MountKind `yaml:"kind" json:"kind"`

	// Root is the backing directory of a filesystem mount.
	Root string `yaml:"root,omitempty" json:"root,omitempty"`
	// Watch turns external changes below Root into notifications.
	Watch bool `yaml:"watch,omitempty" json:"watch,omitempty"`

	// Capacity is the per-path limit of a bounded mount.
	Capacity int `yaml:"capacity,omitempty" json:"capacity,omitempty"`

	// Target is the prefix an alias mount forwards to.
	Target string `yaml:"target,omitempty" json:"target,omitempty"`
	// Retarget makes an alias redirect inserts instead of forwarding
	// them.
	Retarget bool `yaml:"retarget,omitempty" json:"retarget,omitempty"`

	// Cached serves plain reads of a memory mount from a snapshot
	// that is rebuilt after writes.
	Cached bool `yaml:"cached,omitempty" json:"cached,omitempty"`

	// Output is the name, below Path, that a trellis mount serves.
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
	// Sources are the paths a trellis merges, in priority order.
	Sources []string `yaml:"sources,omitempty" json:"sources,omitempty"`
	// Mode is queue or latest. Default: queue.
	Mode string `yaml:"mode,omitempty" json:"mode,omitempty"`
	// Policy is round_robin or priority. Default: round_robin.
	Policy string `yaml:"policy,omitempty" json:"policy,omitempty"`
}

// LoggingConfig selects the log level and handler.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error. Default: info.
	Level string `yaml:"level" json:"level"`
	// Format is text, json, or auto (text on a terminal, json
	// otherwise). Default: auto.
	Format string `yaml:"format" json:"format"`
}

// Default returns the configuration used before a file is applied.
func Default() *Config {
	return &Config{
		Space: SpaceConfig{
			CacheCapacity:  1024,
			DefaultTimeout: "100ms",
			Workers:        runtime.NumCPU(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load loads configuration from the file named by PATHSPACE_CONFIG.
// There is no fallback: if the variable is unset, Load fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvVar)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your pathspace config file, or use --config flag", EnvVar)
	}
	return LoadFile(configPath)
}

// LoadFile loads and validates the configuration at path. The format
// follows the extension: .yaml and .yml are YAML, .json and .jsonc are
// JSON with comments and trailing commas allowed.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return c.parse(filepath.Ext(path), data)
}

// parse decodes data in the format named by ext over c.
func (c *Config) parse(ext string, data []byte) error {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, c)
	case ".json", ".jsonc":
		return json.Unmarshal(jsonc.ToJSON(data), c)
	default:
		return fmt.Errorf("unsupported config format %q (want .yaml, .yml, .json, or .jsonc)", ext)
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} in mount fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	for i := range c.Mounts {
		mount := &c.Mounts[i]
		mount.Path = expandVars(mount.Path, vars)
		mount.Root = expandVars(mount.Root, vars)
		mount.Target = expandVars(mount.Target, vars)
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns, consulting
// vars before the environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors. Every problem is
// reported, not just the first.
func (c *Config) Validate() error {
	var errs []error

	if c.Space.CacheCapacity < 0 {
		errs = append(errs, fmt.Errorf("space.cache_capacity must not be negative"))
	}
	if c.Space.Workers < 0 {
		errs = append(errs, fmt.Errorf("space.workers must not be negative"))
	}
	if _, err := c.Space.Timeout(); err != nil {
		errs = append(errs, err)
	}

	seen := make(map[spacepath.Path]int)
	for i, mount := range c.Mounts {
		where := fmt.Sprintf("mounts[%d]", i)
		p := spacepath.Path(mount.Path)
		if err := p.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s.path: %w", where, err))
		} else if p.IsGlob() || p.Canonical() == spacepath.Root {
			errs = append(errs, fmt.Errorf("%s.path must be a concrete path below the root, got %q", where, mount.Path))
		} else {
			canonical := p.Canonical()
			if previous, ok := seen[canonical]; ok {
				errs = append(errs, fmt.Errorf("%s.path %s is already used by mounts[%d]", where, canonical, previous))
			}
			seen[canonical] = i
		}

		switch mount.Kind {
		case Memory:
		case Filesystem:
			if mount.Root == "" {
				errs = append(errs, fmt.Errorf("%s.root is required for filesystem mounts", where))
			}
		case Bounded:
			if mount.Capacity < 1 {
				errs = append(errs, fmt.Errorf("%s.capacity must be at least 1", where))
			}
		case Alias:
			if mount.Target == "" {
				errs = append(errs, fmt.Errorf("%s.target is required for alias mounts", where))
			} else if err := spacepath.Path(normalizeTarget(mount.Target)).Validate(); err != nil {
				errs = append(errs, fmt.Errorf("%s.target: %w", where, err))
			}
		case Trellis:
			if mount.Output == "" {
				errs = append(errs, fmt.Errorf("%s.output is required for trellis mounts", where))
			} else if output := spacepath.Path("/" + mount.Output); output.Validate() != nil || output.IsGlob() || len(output.Split()) != 1 {
				errs = append(errs, fmt.Errorf("%s.output must be a single concrete name, got %q", where, mount.Output))
			}
			if len(mount.Sources) == 0 {
				errs = append(errs, fmt.Errorf("%s.sources is required for trellis mounts", where))
			}
			for j, source := range mount.Sources {
				if err := spacepath.Path(source).Validate(); err != nil {
					errs = append(errs, fmt.Errorf("%s.sources[%d]: %w", where, j, err))
				}
			}
			if _, err := layer.ParseTrellisMode(mount.Mode); err != nil {
				errs = append(errs, fmt.Errorf("%s.mode: %w", where, err))
			}
			if _, err := layer.ParseTrellisPolicy(mount.Policy); err != nil {
				errs = append(errs, fmt.Errorf("%s.policy: %w", where, err))
			}
		default:
			errs = append(errs, fmt.Errorf("%s.kind must be one of: %v", where, mountKinds))
		}
	}

	if _, err := capability.NewChecker(c.Policy()); err != nil {
		errs = append(errs, fmt.Errorf("policy: %w", err))
	}

	if _, err := c.Logging.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	formats := []string{"auto", "text", "json"}
	if !slices.Contains(formats, c.Logging.Format) {
		errs = append(errs, fmt.Errorf("logging.format must be one of: %v", formats))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func normalizeTarget(target string) string {
	if !strings.HasPrefix(target, "/") {
		return "/" + target
	}
	return target
}

// Timeout parses DefaultTimeout.
func (s SpaceConfig) Timeout() (time.Duration, error) {
	timeout, err := time.ParseDuration(s.DefaultTimeout)
	if err != nil {
		return 0, fmt.Errorf("space.default_timeout: %w", err)
	}
	if timeout < 0 {
		return 0, fmt.Errorf("space.default_timeout must not be negative")
	}
	return timeout, nil
}

// Policy returns the grants and denials as a capability policy.
func (c *Config) Policy() capability.Policy {
	return capability.Policy{Grants: c.Grants, Denials: c.Denials}
}

// Restricted reports whether clients go through the capability
// policy. A config without grants leaves the space unrestricted.
func (c *Config) Restricted() bool {
	return len(c.Grants) > 0
}

// SlogLevel parses Level.
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}
