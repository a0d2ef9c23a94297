package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config describes one managed server instance. It is written by the
// operator; the installer only reads it.
type Config struct {
	// ModpackID is the Modrinth project id or slug of the modpack.
	ModpackID string `yaml:"modpack_id"`
	// InstanceDir is the root directory of the server installation.
	InstanceDir string `yaml:"instance_dir"`
	// Channel restricts updates to one release channel (release, beta,
	// alpha). Empty accepts any channel.
	Channel string `yaml:"channel,omitempty"`
	// Version pins the pack to an exact version number or version id.
	Version string `yaml:"version,omitempty"`
	// PreservedMods are filename patterns that survive updates even when
	// the pack no longer ships them.
	PreservedMods []string `yaml:"preserved_mods,omitempty"`
	// ClientOnlyMods are filename patterns excluded from server installs.
	ClientOnlyMods []string `yaml:"client_only_mods,omitempty"`
	// AllowedMods are filename patterns that stay installed even when a
	// ClientOnlyMods pattern matches them.
	AllowedMods []string `yaml:"allowed_mods,omitempty"`
	// Permissions, when present, makes the installer chown the instance
	// tree after a successful run.
	Permissions *Permissions `yaml:"permissions,omitempty"`
	// ConcurrencyLimit bounds parallel downloads.
	ConcurrencyLimit int `yaml:"concurrency_limit,omitempty"`
}

// Permissions names the owner applied to installed files.
type Permissions struct {
	User  string `yaml:"user"`
	Group string `yaml:"group,omitempty"`
}

const (
	// DefaultConfigFilename is the config path used when -c is not given.
	DefaultConfigFilename = "config.yaml"

	// DefaultConcurrencyLimit is the download parallelism used when the
	// config does not set one.
	DefaultConcurrencyLimit = 6

	// ModsDir is the managed mod directory inside the instance.
	ModsDir = "mods"

	// ExemptDir is the subdirectory of ModsDir whose contents are never
	// inspected, removed or overwritten.
	ExemptDir = "user"
)

var (
	errModpackIDRequired   = errors.New("modpack_id must be provided")
	errInstanceDirRequired = errors.New("instance_dir must be provided")
)

// Load reads the instance configuration from path and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks required fields and fills defaults in place.
func Validate(cfg *Config) error {
	if strings.TrimSpace(cfg.ModpackID) == "" {
		return errModpackIDRequired
	}
	if strings.TrimSpace(cfg.InstanceDir) == "" {
		return errInstanceDirRequired
	}

	cfg.Channel = strings.ToLower(strings.TrimSpace(cfg.Channel))
	switch cfg.Channel {
	case "", "release", "beta", "alpha":
	default:
		return fmt.Errorf("unknown channel %q (expected release, beta or alpha)", cfg.Channel)
	}

	if cfg.ConcurrencyLimit <= 0 {
		cfg.ConcurrencyLimit = DefaultConcurrencyLimit
	}

	// An empty user disables the chown step entirely; a missing group
	// defaults to the user's own group.
	if cfg.Permissions != nil {
		if strings.TrimSpace(cfg.Permissions.User) == "" {
			cfg.Permissions = nil
		} else if strings.TrimSpace(cfg.Permissions.Group) == "" {
			cfg.Permissions.Group = cfg.Permissions.User
		}
	}

	return nil
}

// ModsPath returns the managed mod directory for the instance.
func (c *Config) ModsPath() string {
	return filepath.Join(c.InstanceDir, ModsDir)
}
