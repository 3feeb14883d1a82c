package main

import (
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/ayusman/repcoach/internal/config"
	"github.com/ayusman/repcoach/internal/profile"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "repcoach"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Repetition counting and form analysis for pose keypoints",
		Long: `repcoach turns a stream of COCO-17 body keypoints into exercise
feedback: joint angles, movement phase, repetition count, form violations
and a muscle engagement estimate.

Frames can be posted to the HTTP API, streamed over a WebSocket, or replayed
from a JSON-lines file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	cmd.AddCommand(serveCmd(g), exercisesCmd(g), replayCmd(g))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

// load reads the config and builds the logger.
func (g *globalFlags) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, nil, err
	}
	if g.logLevel != "" {
		if _, err := config.ParseLevel(g.logLevel); err != nil {
			return nil, nil, err
		}
		cfg.Log.Level = g.logLevel
	}
	return cfg, cfg.NewLogger(), nil
}

// offered reports whether id is part of the configured exercise catalog.
func offered(cfg *config.Config, id string) bool {
	return len(cfg.Catalog.Exercises) == 0 || slices.Contains(cfg.Catalog.Exercises, id)
}

// catalogRegistry builds a registry from the configured catalog and checks
// that every configured exercise resolves.
func catalogRegistry(cfg *config.Config) (*profile.Registry, error) {
	profiles, err := profile.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}
	reg, err := profile.NewRegistry(profiles)
	if err != nil {
		return nil, err
	}
	if err := reg.CheckCatalog(cfg.Catalog.Exercises); err != nil {
		return nil, err
	}
	return reg, nil
}
