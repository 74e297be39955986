// Package cli implements the command-line interface for the proximity CLI.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/colthorp/proximity-cli/internal/api"
	"github.com/colthorp/proximity-cli/internal/cache"
	"github.com/colthorp/proximity-cli/internal/config"
	"github.com/colthorp/proximity-cli/internal/core"
	"github.com/colthorp/proximity-cli/internal/proximity"
)

// Global flags
var (
	configPath string
	quiet      bool
	jsonOut    bool
	logLevel   string
)

var cfg *config.Config

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "proximity",
	Short: "Proximity CLI – geocode listings and measure distances to nearby amenities",
	Long: `Resolves addresses to coordinates, lists nearby places per amenity query and
measures travel distances, caching every provider answer on disk so repeated
runs cost nothing.`,
	Version:       core.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		if logLevel != "" {
			c.Log.Level = logLevel
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// Execute adds all child commands to the root command and runs it. SIGINT and
// SIGTERM cancel the command context so an in-progress search keeps the pages
// it already merged.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ./config.yaml or ~/.proximity/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress progress messages")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of tables")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
}

// openService builds the Service for the loaded configuration. The returned
// close function releases the cache backend. Tests replace it.
var openService = func(ctx context.Context) (*proximity.Service, func(), error) {
	opts, err := proximity.OptionsFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	opts.Quiet = quiet

	transport, err := api.NewTransportFromConfig(cfg.Provider)
	if err != nil {
		return nil, nil, err
	}

	backend, closeBackend, err := cache.NewBackend(ctx, cfg.Cache)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := closeBackend(); err != nil {
			zap.L().Warn("cli: close cache backend", zap.Error(err))
		}
	}

	svc, err := proximity.New(ctx, opts, transport, backend)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return svc, closeFn, nil
}
