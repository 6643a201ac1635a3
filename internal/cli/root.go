// Package cli implements the tiqology command line.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tiqology/superapp-go/internal/app"
	"github.com/tiqology/superapp-go/internal/config"
	"github.com/tiqology/superapp-go/internal/logging"
)

// globals holds the persistent flags and what is built from them.
type globals struct {
	configPath  string
	apiURL      string
	ghostURL    string
	storage     string
	storagePath string
	debug       bool
	logLevel    string
	logFormat   string
	output      string

	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCmd creates the root cobra command for the tiqology CLI.
func NewRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:   "tiqology",
		Short: "TiQology SuperApp client",
		Long:  "tiqology signs in to the TiQology SuperApp, reads organizations and the dashboard, and talks to the AI and Ghost gateways.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.load(cmd)
		},
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "YAML config file")
	pf.StringVar(&g.apiURL, "api", "", "API base URL (or TIQOLOGY_API_URL env)")
	pf.StringVar(&g.ghostURL, "ghost-url", "", "Ghost gateway URL (or TIQOLOGY_GHOST_URL env)")
	pf.StringVar(&g.storage, "storage", "", "Session storage driver (memory, file, redis, sqlite)")
	pf.StringVar(&g.storagePath, "storage-path", "", "Session file or database path")
	pf.BoolVar(&g.debug, "debug", false, "Enable debug logging")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&g.logFormat, "log-format", "", "Log format (text, json)")
	pf.StringVarP(&g.output, "output", "o", outputText, "Output format (text, json, yaml)")

	root.AddCommand(
		newLoginCmd(g),
		newLogoutCmd(g),
		newWhoamiCmd(g),
		newRegisterCmd(g),
		newOrgsCmd(g),
		newSnapshotCmd(g),
		newAskCmd(g),
		newEvaluateCmd(g),
		newGhostHealthCmd(g),
		newServeCmd(g),
	)

	return root
}

// load resolves configuration: defaults, config file, environment, then flags.
func (g *globals) load(cmd *cobra.Command) error {
	switch g.output {
	case outputText, outputJSON, outputYAML:
	default:
		return fmt.Errorf("unknown output format %q", g.output)
	}

	cfg, err := config.Load(cmd.Context(), g.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("api") {
		cfg.APIBaseURL = g.apiURL
	}
	if flags.Changed("ghost-url") {
		cfg.GhostURL = g.ghostURL
	}
	if flags.Changed("storage") {
		cfg.Storage.Driver = g.storage
		if !flags.Changed("storage-path") {
			cfg.Storage.Path = config.DefaultStoragePath(g.storage)
		}
	}
	if flags.Changed("storage-path") {
		cfg.Storage.Path = g.storagePath
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = g.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = g.logFormat
	}
	if g.debug {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	g.cfg = cfg
	g.logger = logging.NewLoggerWithWriter(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, cmd.ErrOrStderr())
	return nil
}

// withApp builds the application for one command and closes it afterwards.
func (g *globals) withApp(ctx context.Context, fn func(*app.App) error) error {
	a, err := app.New(ctx, g.cfg, g.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			g.logger.Warn("close failed", "error", err)
		}
	}()
	return fn(a)
}
