package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vesaa/lansite/internal/config"
	"github.com/vesaa/lansite/internal/history"
	"github.com/vesaa/lansite/internal/netaddr"
	"github.com/vesaa/lansite/internal/registry"
)

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configFile string
	root       string
	port       int
}

// app bundles what a subcommand needs after config is resolved.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	reg    *registry.Registry
	hist   *history.Store
}

func loadConfig(cmd *cobra.Command, g *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(g.configFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if cmd.Flags().Changed("root") {
		cfg.RootDir = g.root
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = g.port
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openApp loads config and the registry. History is opened only when asked
// for and configured; a history database that fails to open is logged and skipped.
func openApp(cmd *cobra.Command, g *globalFlags, withHistory bool) (*app, error) {
	cfg, err := loadConfig(cmd, g)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg.LogLevel, cmd.ErrOrStderr())

	reg, err := registry.Open(registry.Options{
		Root:         cfg.RootDir,
		RegistryFile: cfg.RegistryFile,
		SitesDir:     cfg.SitesDir,
		PreviewFile:  cfg.PreviewFile,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, reg: reg}
	if withHistory && cfg.HistoryDB != "" {
		hist, err := history.Open(cfg.Resolve(cfg.HistoryDB), logger)
		if err != nil {
			logger.Warn("history disabled", "error", err)
		} else {
			a.hist = hist
			reg.Subscribe(hist.Observe)
		}
	}
	return a, nil
}

func (a *app) Close() {
	if a.hist != nil {
		if err := a.hist.Close(); err != nil {
			a.logger.Warn("close history", "error", err)
		}
	}
}

// baseURL is where a server started with the same config would be reachable.
func (a *app) baseURL() string {
	return netaddr.BaseURL(netaddr.Advertise(a.cfg.ServerHost), a.cfg.Port)
}

func (a *app) siteURL(link string) string {
	return a.baseURL() + a.reg.SitePath(link)
}

// insecureDefaults lists built-in credentials still in use. Anyone on the LAN
// who knows them can publish pages through the admin API.
func insecureDefaults(cfg *config.Config) []string {
	var out []string
	if cfg.JWTSecret == config.DefaultJWTSecret {
		out = append(out, "jwt_secret is the built-in default; set LANSITE_JWT_SECRET before exposing the admin API")
	}
	if cfg.AdminPass == config.DefaultAdminPass {
		out = append(out, "admin_pass is the built-in default; set LANSITE_ADMIN_PASS before exposing the admin API")
	}
	return out
}

func newLogger(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
