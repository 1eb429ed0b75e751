package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Output formats accepted by one-shot listing commands.
var validFormats = map[string]bool{
	"table": true,
	"json":  true,
	"yaml":  true,
	"toml":  true,
}

// WatchConfig holds configuration specific to directory watching.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// Options holds all the configuration settings for the filer application.
// Tags are used by Viper for unmarshalling from config files, env vars, and flags.
type Options struct {
	// Navigation
	StartDir   string `mapstructure:"startDir"`
	ShowHidden bool   `mapstructure:"showHidden"`

	// Logging
	LogFile string `mapstructure:"logFile"`
	Verbose bool   `mapstructure:"verbose"`

	// Directory sizing
	SizeWorkers   int           `mapstructure:"sizeWorkers"`
	UseSizeCache  bool          `mapstructure:"sizeCache"`
	SizeCacheFile string        `mapstructure:"sizeCacheFile"`
	SizeCacheTTL  time.Duration `mapstructure:"sizeCacheTTL"`
	ClearCache    bool          `mapstructure:"clearCache"`

	// Watching
	WatchMode bool        `mapstructure:"watch"`
	Watch     WatchConfig `mapstructure:"watchConfig"`

	// Behavior
	ConfirmDelete bool   `mapstructure:"confirmDelete"`
	Opener        string `mapstructure:"opener"`

	// Output of one-shot commands
	Format       string `mapstructure:"format"`
	TemplateFile string `mapstructure:"templateFile"`
}

// DefaultSizeCacheFile returns the cache location under the user cache directory,
// falling back to the working directory when none is available.
func DefaultSizeCacheFile() string {
	dir, err := os.UserCacheDir()
	if err != nil || dir == "" {
		return ".filer.sizes.cache"
	}
	return filepath.Join(dir, "filer", "sizes.cache")
}

// DefaultStartDir returns the user's home directory, or "." when unknown.
func DefaultStartDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return home
}

// ApplyDefaults fills zero values that have a computed default.
func (opts *Options) ApplyDefaults() {
	if strings.TrimSpace(opts.StartDir) == "" {
		opts.StartDir = DefaultStartDir()
	}
	if strings.TrimSpace(opts.SizeCacheFile) == "" {
		opts.SizeCacheFile = DefaultSizeCacheFile()
	}
	if opts.Format == "" {
		opts.Format = "table"
	}
	if opts.Watch.Debounce == 0 {
		opts.Watch.Debounce = 300 * time.Millisecond
	}
}

// ValidateConfig checks the loaded configuration options for validity.
// All problems are collected and reported in one error.
func (opts *Options) ValidateConfig() error {
	var errs []string

	if strings.TrimSpace(opts.StartDir) == "" {
		errs = append(errs, "startDir cannot be empty")
	} else {
		info, err := os.Stat(opts.StartDir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				errs = append(errs, fmt.Sprintf("startDir '%s' does not exist", opts.StartDir))
			} else {
				errs = append(errs, fmt.Sprintf("cannot access startDir '%s': %v", opts.StartDir, err))
			}
		} else if !info.IsDir() {
			errs = append(errs, fmt.Sprintf("startDir '%s' is not a directory", opts.StartDir))
		}
	}

	if strings.TrimSpace(opts.LogFile) == "" {
		errs = append(errs, "logFile cannot be empty")
	} else if info, err := os.Stat(opts.LogFile); err == nil && info.IsDir() {
		errs = append(errs, fmt.Sprintf("logFile '%s' is a directory", opts.LogFile))
	}

	if opts.SizeWorkers < 0 {
		errs = append(errs, "sizeWorkers must be non-negative (0 for auto)")
	}
	if opts.UseSizeCache {
		if strings.TrimSpace(opts.SizeCacheFile) == "" {
			errs = append(errs, "sizeCacheFile cannot be empty when sizeCache is enabled")
		}
		if opts.SizeCacheTTL < 0 {
			errs = append(errs, "sizeCacheTTL must be non-negative")
		}
	}

	if opts.WatchMode && opts.Watch.Debounce < 0 {
		errs = append(errs, "watch.debounce duration must be non-negative")
	}

	if !validFormats[opts.Format] {
		errs = append(errs, fmt.Sprintf("format must be one of table, json, yaml, toml (got '%s')", opts.Format))
	}

	if opts.TemplateFile != "" {
		info, err := os.Stat(opts.TemplateFile)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				errs = append(errs, fmt.Sprintf("templateFile '%s' does not exist", opts.TemplateFile))
			} else {
				errs = append(errs, fmt.Sprintf("cannot access templateFile '%s': %v", opts.TemplateFile, err))
			}
		} else if info.IsDir() {
			errs = append(errs, fmt.Sprintf("templateFile '%s' is a directory, not a file", opts.TemplateFile))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}

// SetDefaults registers default values on a Viper instance. Flags, environment
// variables and config files layered on top override these.
func SetDefaults(v interface{ SetDefault(string, any) }) {
	v.SetDefault("startDir", "")
	v.SetDefault("showHidden", true)
	v.SetDefault("logFile", "file_manager.log")
	v.SetDefault("verbose", false)
	v.SetDefault("sizeWorkers", 0)
	v.SetDefault("sizeCache", true)
	v.SetDefault("sizeCacheFile", "")
	v.SetDefault("sizeCacheTTL", "10m")
	v.SetDefault("clearCache", false)
	v.SetDefault("watch", true)
	v.SetDefault("watchConfig.debounce", "300ms")
	v.SetDefault("confirmDelete", true)
	v.SetDefault("opener", "")
	v.SetDefault("format", "table")
	v.SetDefault("templateFile", "")
}
