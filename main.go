package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stackvity/filer/internal/cache"
	"github.com/stackvity/filer/internal/config"
	"github.com/stackvity/filer/internal/controller"
	"github.com/stackvity/filer/internal/fileops"
	"github.com/stackvity/filer/internal/filesystem"
	"github.com/stackvity/filer/internal/logging"
	"github.com/stackvity/filer/internal/opener"
	"github.com/stackvity/filer/internal/shell"
	"github.com/stackvity/filer/internal/sizer"
	"github.com/stackvity/filer/internal/watch"
)

// Variables for version embedding via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Exit codes
const (
	ExitCodeSuccess        = 0
	ExitCodeOperationError = 1
	ExitCodeConfigError    = 2
	ExitCodeInterrupt      = 3
	ExitCodeUnknown        = 10
)

var cfgFile string

// flagKeys maps flag names to configuration keys. Flags bound here take
// precedence over env, config file and defaults.
var flagKeys = map[string]string{
	"start-dir":      "startDir",
	"show-hidden":    "showHidden",
	"log-file":       "logFile",
	"verbose":        "verbose",
	"size-workers":   "sizeWorkers",
	"size-cache":     "sizeCache",
	"size-cache-ttl": "sizeCacheTTL",
	"clear-cache":    "clearCache",
	"watch":          "watch",
	"confirm-delete": "confirmDelete",
	"opener":         "opener",
	"format":         "format",
	"template":       "templateFile",
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "filer [dir]",
	Short: "A terminal file manager",
	Long: `Filer shows a directory as a table of Name, Size, Type and Last Modified
and lets you navigate, copy, move, cut and paste, delete, create folders
and search from an interactive prompt.

Directory sizes are computed in the background and cached between runs.
Every subcommand also works on its own for scripting.`,
	Version:       version,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if len(args) == 1 {
			viper.Set("startDir", args[0])
		}
		a := newApp()
		defer a.close()

		sc := a.sizeCache()
		calc := sizer.NewCalculator(a.fs, sc, a.logger)
		pool := sizer.NewPool(ctx, calc, a.opts.SizeWorkers, a.logger)
		defer pool.Close()

		var dw shell.DirWatcher
		if a.opts.WatchMode {
			w, err := watch.New(a.opts.Watch.Debounce, a.logger, a.opts.LogFile, a.opts.SizeCacheFile)
			if err != nil {
				a.logger.Warn("Directory watching disabled", "error", err)
			} else {
				defer w.Close()
				dw = w
			}
		}

		session := controller.NewSession(a.opts.StartDir)
		a.logger.Info("Session started", "session", session.ID, "dir", session.Dir())

		sh := shell.New(shell.Config{
			Controller:    a.ctl,
			Session:       session,
			Sizes:         pool,
			Watcher:       dw,
			Opener:        opener.New(a.opts.Opener, a.logger),
			Logger:        a.logger,
			In:            cmd.InOrStdin(),
			Out:           cmd.OutOrStdout(),
			ConfirmDelete: a.opts.ConfirmDelete,
		})
		err := sh.Run(ctx)
		a.logger.Info("Session ended", "session", session.ID)
		return err
	},
}

// app holds the dependencies shared by the root command and the subcommands.
type app struct {
	opts   *config.Options
	logger *slog.Logger
	fs     filesystem.FileSystem
	svc    *fileops.Service
	ctl    *controller.Controller
	caches []cache.SizeCache
}

// newApp unmarshals and validates the configuration and wires the services.
// Configuration problems end the process with ExitCodeConfigError.
func newApp() *app {
	opts := &config.Options{}
	if err := viper.Unmarshal(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error unmarshalling configuration: %v\n", err)
		os.Exit(ExitCodeConfigError)
	}
	opts.ApplyDefaults()
	if err := opts.ValidateConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(ExitCodeConfigError)
	}

	logger := logging.New(opts.LogFile, opts.Verbose, os.Stderr)
	logger.Debug("Configuration loaded and validated successfully", "options", *opts)

	fsys := filesystem.NewRealFileSystem()
	svc := fileops.NewService(fsys, logger, opts.ShowHidden)
	return &app{
		opts:   opts,
		logger: logger,
		fs:     fsys,
		svc:    svc,
		ctl:    controller.NewController(svc, logger),
	}
}

// sizeCache returns the configured size cache, cleared first when requested.
func (a *app) sizeCache() cache.SizeCache {
	if !a.opts.UseSizeCache {
		a.logger.Debug("Size cache is disabled via configuration")
		return cache.NewNoOpCache()
	}
	sc := cache.NewFileCache(a.opts.SizeCacheFile, a.opts.SizeCacheTTL, a.fs, a.logger)
	if a.opts.ClearCache {
		if err := sc.Clear(); err != nil {
			a.logger.Warn("Failed to clear size cache", "error", err)
		}
	}
	a.caches = append(a.caches, sc)
	return sc
}

func (a *app) close() {
	for _, sc := range a.caches {
		if err := sc.Persist(); err != nil {
			a.logger.Warn("Failed to persist size cache", "error", err)
		}
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		os.Exit(ExitCodeInterrupt)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(ExitCodeOperationError)
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "Configuration file path (default: .filer.yaml, filer.yaml)")
	flags.BoolP("verbose", "v", false, "Enable verbose debug logging (also mirrored to stderr)")
	flags.String("log-file", logging.DefaultLogFile, "File operation log")
	flags.String("start-dir", "", "Initial directory of the interactive shell (default: home directory)")
	flags.Bool("show-hidden", true, "Include entries whose name starts with '.'")
	flags.Int("size-workers", 0, "Number of directory size workers (0 for auto-detect CPU cores)")
	flags.Bool("size-cache", true, "Cache computed directory sizes between runs (use --no-size-cache to disable)")
	flags.Bool("no-size-cache", false, "Disable the directory size cache (equivalent to --size-cache=false)")
	flags.Duration("size-cache-ttl", 10*time.Minute, "Maximum age of a cached directory size")
	flags.Bool("clear-cache", false, "Clear the size cache before running")
	flags.Bool("watch", true, "Reload the listing when the directory changes on disk")
	flags.Bool("confirm-delete", true, "Ask before deleting in the interactive shell")
	flags.String("opener", "", "Command used to open files (default: xdg-open, open or rundll32)")
	flags.String("format", "table", "Output format of one-shot commands: table, json, yaml, toml")
	flags.String("template", "", "Path to a Go template for one-shot listing output")

	rootCmd.SetVersionTemplate(fmt.Sprintf("filer version %s (commit: %s, built: %s)\n", version, commit, date))
	addCommands(rootCmd)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	v := viper.New()

	// 1. Defaults
	config.SetDefaults(v)

	// 2. Environment, with an optional .env file loaded first
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error reading .env file: %v\n", err)
		os.Exit(ExitCodeConfigError)
	}
	v.SetEnvPrefix("FILER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// 3. Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading specified config file %s: %v\n", cfgFile, err)
			os.Exit(ExitCodeConfigError)
		}
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(".filer")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				fmt.Fprintf(os.Stderr, "Error reading config file %s: %v\n", v.ConfigFileUsed(), err)
				os.Exit(ExitCodeConfigError)
			}
			v.SetConfigName("filer")
			if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
				fmt.Fprintf(os.Stderr, "Error reading config file %s: %v\n", v.ConfigFileUsed(), err)
				os.Exit(ExitCodeConfigError)
			}
		}
	}

	// 4. Flags (highest precedence when set)
	flags := rootCmd.PersistentFlags()
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			fmt.Fprintf(os.Stderr, "Internal error binding flag %s: %v\n", name, err)
			os.Exit(ExitCodeConfigError)
		}
	}
	if f := flags.Lookup("no-size-cache"); f != nil && f.Changed {
		v.Set("sizeCache", false)
	}

	// 5. Merge into the global viper instance used by newApp
	if err := viper.MergeConfigMap(v.AllSettings()); err != nil {
		fmt.Fprintf(os.Stderr, "Internal error merging viper settings: %v\n", err)
		os.Exit(ExitCodeConfigError)
	}
}

func main() {
	Execute()
}
