package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultPort is the backend port the desktop shell expects.
const DefaultPort = 18000

// Config holds all knot configuration.
type Config struct {
	Backend  BackendConfig  `toml:"backend"`
	Server   ServerConfig   `toml:"server"`
	Log      LogConfig      `toml:"log"`
	Settings SettingsConfig `toml:"settings"`
}

// BackendConfig tells client commands where the backend listens.
type BackendConfig struct {
	URL     string `toml:"url"`
	Timeout string `toml:"timeout"`
}

// ServerConfig holds options for `knot serve`.
type ServerConfig struct {
	Addr        string `toml:"addr"`
	Port        int    `toml:"port"`
	CORSOrigins string `toml:"cors_origins"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// SettingsConfig locates the user settings record.
type SettingsConfig struct {
	Path string `toml:"path"`
}

func defaults() Config {
	return Config{
		Backend: BackendConfig{
			URL:     fmt.Sprintf("http://127.0.0.1:%d", DefaultPort),
			Timeout: "30s",
		},
		Server: ServerConfig{
			Addr:        "127.0.0.1",
			Port:        DefaultPort,
			CORSOrigins: "*",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads config from path. If path is empty, returns defaults.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path == "" {
		return &cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// ApplyEnv overrides server and log options from KNOT_* variables.
func (c *Config) ApplyEnv() error {
	c.Server.Addr = getEnv("KNOT_ADDR", c.Server.Addr)
	c.Server.CORSOrigins = getEnv("KNOT_CORS_ORIGINS", c.Server.CORSOrigins)
	c.Log.Level = getEnv("KNOT_LOG_LEVEL", c.Log.Level)
	c.Backend.URL = getEnv("KNOT_BACKEND_URL", c.Backend.URL)
	if v := os.Getenv("KNOT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("invalid KNOT_PORT %q", v)
		}
		c.Server.Port = port
	}
	return nil
}

// ListenAddr returns the host:port the backend binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Addr, c.Server.Port)
}

// Origins splits the comma-separated CORS origin list.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.Server.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// SettingsPath returns the settings file location.
func (c *Config) SettingsPath() string {
	if c.Settings.Path != "" {
		return ExpandHome(c.Settings.Path)
	}
	return filepath.Join(DataDir(), "settings.json")
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") || strings.HasPrefix(p, `~\`) {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, p[1:])
	}
	return p
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// ConfigDir returns the knot config directory path.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "knot")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "knot")
}

// DataDir returns the knot data directory path.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "knot")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "knot")
}
