package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/melodex/melodex/internal/config"
	"github.com/melodex/melodex/internal/daemon"
	"github.com/melodex/melodex/internal/utils"
	"github.com/melodex/melodex/internal/version"
	"github.com/melodex/melodex/internal/workspace"
)

var (
	cyan  = color.New(color.FgHiCyan).SprintFunc()
	green = color.New(color.FgHiGreen).SprintFunc()
)

var rootCmd = &cobra.Command{
	Use:     "melodex",
	Short:   "Melodex music library sync daemon",
	Version: version.Detailed(),
}

func init() {
	rootCmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd)
	}
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig()
		if err != nil {
			return err
		}

		d, err := daemon.New(cfg)
		if err != nil {
			return err
		}

		cmd.SilenceUsage = true
		setupLogging(d.Workspace())
		showHeader()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := d.Start(ctx); err != nil {
			if errors.Is(err, workspace.ErrWorkspaceLocked) {
				return fmt.Errorf("another melodex instance is already running")
			}
			return err
		}

		<-ctx.Done()
		defer slog.Info("Bye!")
		return d.Stop()
	}
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().StringP("library", "l", config.DefaultLibraryDir, "music library directory")
	rootCmd.Flags().StringP("datadir", "d", config.DefaultDataDir, "melodex data directory")
	rootCmd.Flags().Int("interval", config.DefaultSyncIntervalMins, "auto-sync interval in minutes")
	rootCmd.Flags().Int("concurrency", config.DefaultMaxConcurrent, "max concurrent file uploads per pass")
	rootCmd.Flags().Bool("no-autosync", false, "disable the auto-sync timer")
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "melodex config file")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
}

func bindFlags(cmd *cobra.Command) error {
	viper.SetEnvPrefix("MELODEX")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	bindings := map[string]string{
		"library_dir":            "library",
		"data_dir":               "datadir",
		"sync_interval":          "interval",
		"max_concurrent_uploads": "concurrency",
	}
	for key, flag := range bindings {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := viper.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}
	return nil
}

// resolveConfig loads the JSON config file when present and layers
// explicitly-set flags and MELODEX_* env vars on top.
func resolveConfig() (*config.Config, error) {
	path, err := rootCmd.PersistentFlags().GetString("config")
	if err != nil {
		return nil, err
	}

	cfg := config.Default()
	if utils.FileExists(path) {
		cfg, err = config.Load(path)
		if err != nil {
			return nil, err
		}
	}

	if viper.IsSet("library_dir") {
		cfg.LibraryDir = viper.GetString("library_dir")
	}
	if viper.IsSet("data_dir") {
		cfg.DataDir = viper.GetString("data_dir")
	}
	if viper.IsSet("sync_interval") {
		cfg.SyncIntervalMins = viper.GetInt("sync_interval")
	}
	if viper.IsSet("max_concurrent_uploads") {
		cfg.MaxConcurrentUploads = viper.GetInt("max_concurrent_uploads")
	}
	if noAuto, _ := rootCmd.Flags().GetBool("no-autosync"); noAuto {
		cfg.AutoSync = false
	}

	return cfg, nil
}

// setupLogging fans slog out to a colored terminal handler and a rotating
// file under the data directory.
func setupLogging(ws *workspace.Workspace) {
	stdoutHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})

	fileWriter := &lumberjack.Logger{
		Filename:   ws.LogPath,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     30, // days
	}
	fileHandler := slog.NewTextHandler(fileWriter, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})

	logger := slog.New(utils.NewMultiLogHandler(stdoutHandler, fileHandler))
	slog.SetDefault(logger)
}

func showHeader() {
	fmt.Printf("%s %s\n", cyan(version.AppName), green(version.Short()))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
