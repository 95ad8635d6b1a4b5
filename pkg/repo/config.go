package repo

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-git/go-billy/v5"
	"github.com/odvcencio/gitlet/pkg/merge"
)

// Config is the repository-local configuration stored as TOML.
type Config struct {
	Core  CoreConfig  `toml:"core"`
	User  UserConfig  `toml:"user"`
	Merge MergeConfig `toml:"merge"`
}

// CoreConfig holds repository layout settings.
type CoreConfig struct {
	Bare bool `toml:"bare"`
}

// UserConfig identifies the committer.
type UserConfig struct {
	Name       string `toml:"name,omitempty"`
	Email      string `toml:"email,omitempty"`
	SigningKey string `toml:"signingkey,omitempty"`
}

// MergeConfig tunes merges.
type MergeConfig struct {
	// ConflictStyle is "markers" (default) or "ours".
	ConflictStyle string `toml:"conflictstyle,omitempty"`
}

func defaultConfig() *Config {
	return &Config{Merge: MergeConfig{ConflictStyle: string(merge.StyleMarkers)}}
}

func readConfig(fs billy.Filesystem) (*Config, error) {
	cfg := defaultConfig()
	data, err := readFile(fs, configFile)
	if err != nil {
		if isNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return cfg, nil
}

func writeConfig(fs billy.Filesystem, cfg *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("write config: encode: %w", err)
	}
	if err := writeFileAtomic(fs, configFile, buf.Bytes()); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Config reads the repository configuration. A missing file yields the
// defaults.
func (r *Repo) Config() (*Config, error) {
	return readConfig(r.Meta)
}

// WriteConfig atomically replaces the repository configuration.
func (r *Repo) WriteConfig(cfg *Config) error {
	if cfg == nil {
		cfg = defaultConfig()
	}
	return writeConfig(r.Meta, cfg)
}

// configKeys maps dotted key names to accessors on Config.
var configKeys = map[string]struct {
	get func(*Config) string
	set func(*Config, string) error
}{
	"core.bare": {
		get: func(c *Config) string { return strconv.FormatBool(c.Core.Bare) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return err
			}
			c.Core.Bare = b
			return nil
		},
	},
	"user.name": {
		get: func(c *Config) string { return c.User.Name },
		set: func(c *Config, v string) error { c.User.Name = v; return nil },
	},
	"user.email": {
		get: func(c *Config) string { return c.User.Email },
		set: func(c *Config, v string) error { c.User.Email = v; return nil },
	},
	"user.signingkey": {
		get: func(c *Config) string { return c.User.SigningKey },
		set: func(c *Config, v string) error { c.User.SigningKey = v; return nil },
	},
	"merge.conflictstyle": {
		get: func(c *Config) string { return c.Merge.ConflictStyle },
		set: func(c *Config, v string) error {
			style, err := merge.ParseStyle(v)
			if err != nil {
				return err
			}
			c.Merge.ConflictStyle = string(style)
			return nil
		},
	},
}

// ConfigKeys lists the settable configuration keys.
func ConfigKeys() []string {
	keys := make([]string, 0, len(configKeys))
	for k := range configKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ConfigValue returns the value of a dotted configuration key.
func (r *Repo) ConfigValue(key string) (string, error) {
	acc, ok := configKeys[strings.ToLower(key)]
	if !ok {
		return "", newError(ErrInvalidArgument, "config").wrap(fmt.Errorf("unknown key %q", key))
	}
	cfg, err := r.Config()
	if err != nil {
		return "", err
	}
	return acc.get(cfg), nil
}

// SetConfigValue updates one dotted configuration key.
func (r *Repo) SetConfigValue(key, value string) error {
	acc, ok := configKeys[strings.ToLower(key)]
	if !ok {
		return newError(ErrInvalidArgument, "config").wrap(fmt.Errorf("unknown key %q", key))
	}
	cfg, err := r.Config()
	if err != nil {
		return err
	}
	if err := acc.set(cfg, strings.TrimSpace(value)); err != nil {
		return newError(ErrInvalidArgument, "config").wrap(fmt.Errorf("%s: %w", key, err))
	}
	return r.WriteConfig(cfg)
}
