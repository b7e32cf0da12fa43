// Package config provides runtime configuration for lansite.
// It uses Viper to load settings from files, environment variables, and CLI flags.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Built-in credentials; serve warns while either is in use.
const (
	DefaultJWTSecret = "lansite-change-me"
	DefaultAdminPass = "admin"
)

// Config holds all runtime configuration for lansite.
type Config struct {
	// ── Server ───────────────────────────────────────────────────────────────
	// ServerHost is the bind address; 0.0.0.0 exposes the sites to the whole LAN.
	ServerHost string `mapstructure:"server_host"`
	Port       int    `mapstructure:"port"`

	// ── Filesystem layout ────────────────────────────────────────────────────
	// RootDir is the directory served over HTTP. Relative paths below are resolved against it.
	RootDir      string `mapstructure:"root_dir"`
	RegistryFile string `mapstructure:"registry_file"`
	SitesDir     string `mapstructure:"sites_dir"`
	PreviewFile  string `mapstructure:"preview_file"`
	// HistoryDB is the SQLite file for the mutation log. Empty disables history.
	// The default is a dotfile so the static server never hands it out.
	HistoryDB string `mapstructure:"history_db"`

	// ── Security ──────────────────────────────────────────────────────────────
	// JWTSecret signs admin API tokens. Change this when the API is reachable from the LAN.
	JWTSecret string `mapstructure:"jwt_secret"`
	AdminUser string `mapstructure:"admin_user"`
	// AdminPass may be plain text or a bcrypt hash ($2a$/$2b$/$2y$ prefix).
	AdminPass string `mapstructure:"admin_pass"`

	// ── Content ──────────────────────────────────────────────────────────────
	Minify bool `mapstructure:"minify"`
	QRSize int  `mapstructure:"qr_size"`

	LogLevel string `mapstructure:"log_level"`
}

// Load reads config from file (./config.yaml or ~/.lansite/config.yaml, or the
// explicit path when configFile is set) and falls back to defaults.
// Environment variables with prefix LANSITE_ override file values.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server_host", "0.0.0.0")
	v.SetDefault("port", 8000)
	v.SetDefault("root_dir", ".")
	v.SetDefault("registry_file", "sites.json")
	v.SetDefault("sites_dir", "sites")
	v.SetDefault("preview_file", "temp_preview.html")
	v.SetDefault("history_db", ".lansite.db")

	v.SetDefault("jwt_secret", DefaultJWTSecret)
	v.SetDefault("admin_user", "admin")
	v.SetDefault("admin_pass", DefaultAdminPass)

	v.SetDefault("minify", false)
	v.SetDefault("qr_size", 256)
	v.SetDefault("log_level", "info")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.lansite")
		if err := v.ReadInConfig(); err != nil {
			// config file is optional; ignore "not found" errors
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix("LANSITE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late at bind or write time.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if strings.TrimSpace(c.RootDir) == "" {
		return fmt.Errorf("root_dir must not be empty")
	}
	if strings.TrimSpace(c.RegistryFile) == "" {
		return fmt.Errorf("registry_file must not be empty")
	}
	if strings.TrimSpace(c.SitesDir) == "" {
		return fmt.Errorf("sites_dir must not be empty")
	}
	if c.QRSize <= 0 {
		c.QRSize = 256
	}
	return nil
}

// Resolve joins p onto RootDir unless it is already absolute.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.RootDir, p)
}
