// Package config loads mpnp configuration.
//
// Sources, lowest precedence first:
//
//  1. built-in defaults ([Default])
//  2. the user file $XDG_CONFIG_HOME/mpnp/config.toml (~/.config/mpnp/config.toml)
//  3. the project file <project>/mpnp.toml
//  4. MPNP_* environment variables
//
// Command-line flags are applied on top by the CLI.
//
// Example mpnp.toml:
//
//	registry = "https://registry.npmjs.org"
//	concurrency = 16
//	metadata_ttl = "30m"
//	metadata_cache = "redis://localhost:6379/0"
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/mpnp/pkg/errors"
	"github.com/matzehuels/mpnp/pkg/install"
	"github.com/matzehuels/mpnp/pkg/lockfile"
	"github.com/matzehuels/mpnp/pkg/registry"
)

const (
	appName     = "mpnp"
	ProjectFile = "mpnp.toml"   // Project configuration file name
	globalFile  = "config.toml" // File name inside the user config directory

	// Metadata cache backends.
	CacheFile = "file"
	CacheNone = "none"

	DefaultMetadataTTL = 10 * time.Minute
)

// Config is the merged configuration of a run.
type Config struct {
	Registry      string `toml:"registry"`
	Token         string `toml:"token"`          // bearer token sent to the registry
	Home          string `toml:"home"`           // store home: <home>/cache, <home>/store
	Lockfile      string `toml:"lockfile"`       // relative to the project
	WorkspaceDir  string `toml:"workspace_dir"`  // relative to the project
	Concurrency   int    `toml:"concurrency"`    // parallel resolutions/downloads per package
	MaxDepth      int    `toml:"max_depth"`      // maximum dependency path length
	MetadataTTL   string `toml:"metadata_ttl"`   // Go duration string
	MetadataCache string `toml:"metadata_cache"` // "file", "none" or a redis:// URL
	IgnoreScripts bool   `toml:"ignore_scripts"`
	Shell         string `toml:"shell"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Registry:      registry.DefaultURL,
		Home:          defaultHome(),
		Lockfile:      lockfile.DefaultName,
		WorkspaceDir:  install.DefaultWorkspaceDir,
		Concurrency:   install.DefaultConcurrency,
		MaxDepth:      install.DefaultMaxDepth,
		MetadataTTL:   DefaultMetadataTTL.String(),
		MetadataCache: CacheFile,
		Shell:         install.DefaultShell,
	}
}

// Load merges every configuration source for the project in projectDir.
func Load(projectDir string) (Config, error) {
	return LoadFrom(GlobalPath(), projectDir, os.Getenv)
}

// LoadFrom is Load with an explicit user file and environment lookup.
// Missing files are skipped.
func LoadFrom(globalPath, projectDir string, getenv func(string) string) (Config, error) {
	cfg := Default()

	for _, path := range []string{globalPath, filepath.Join(projectDir, ProjectFile)} {
		if path == "" {
			continue
		}
		if err := cfg.mergeFile(path); err != nil {
			return cfg, err
		}
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return cfg, err
	}

	cfg.Home = ExpandHome(cfg.Home)
	return cfg, cfg.Validate()
}

// mergeFile decodes path over c; keys absent from the file keep their value.
func (c *Config) mergeFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return errors.New(errors.ErrCodeInvalidConfig, "unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("MPNP_REGISTRY"); v != "" {
		c.Registry = v
	}
	if v := getenv("MPNP_TOKEN"); v != "" {
		c.Token = v
	}
	if v := getenv("MPNP_HOME"); v != "" {
		c.Home = v
	}
	if v := getenv("MPNP_METADATA_CACHE"); v != "" {
		c.MetadataCache = v
	}
	if v := getenv("MPNP_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "MPNP_CONCURRENCY")
		}
		c.Concurrency = n
	}
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if err := errors.ValidateURL(c.Registry); err != nil {
		return err
	}
	if c.Home == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "home must not be empty")
	}
	if c.Concurrency <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "concurrency must be positive, got %d", c.Concurrency)
	}
	if c.MaxDepth <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "max_depth must be positive, got %d", c.MaxDepth)
	}
	if _, err := c.TTL(); err != nil {
		return err
	}
	for name, p := range map[string]string{"lockfile": c.Lockfile, "workspace_dir": c.WorkspaceDir} {
		if err := errors.ValidatePath(p); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "%s", name)
		}
	}
	switch {
	case c.MetadataCache == CacheFile, c.MetadataCache == CacheNone:
	case strings.HasPrefix(c.MetadataCache, "redis://"), strings.HasPrefix(c.MetadataCache, "rediss://"):
	default:
		return errors.New(errors.ErrCodeInvalidConfig,
			"metadata_cache must be %q, %q or a redis:// URL, got %q", CacheFile, CacheNone, c.MetadataCache)
	}
	return nil
}

// TTL parses MetadataTTL.
func (c Config) TTL() (time.Duration, error) {
	d, err := time.ParseDuration(c.MetadataTTL)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInvalidConfig, err, "metadata_ttl")
	}
	if d < 0 {
		return 0, errors.New(errors.ErrCodeInvalidConfig, "metadata_ttl must not be negative")
	}
	return d, nil
}

// MetadataDir is where the file metadata cache lives.
func (c Config) MetadataDir() string {
	return filepath.Join(c.Home, "metadata")
}

// InstallOptions maps the configuration onto installer options.
func (c Config) InstallOptions() install.Options {
	return install.Options{
		Concurrency:   c.Concurrency,
		MaxDepth:      c.MaxDepth,
		WorkspaceDir:  c.WorkspaceDir,
		Lockfile:      c.Lockfile,
		IgnoreScripts: c.IgnoreScripts,
		Shell:         c.Shell,
	}
}

// GlobalPath returns the user configuration file, following XDG.
func GlobalPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName, globalFile)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName, globalFile)
}

func defaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "."+appName)
	}
	return filepath.Join(home, "."+appName)
}

// ExpandHome replaces a leading ~ in path with the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
