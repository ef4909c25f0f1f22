package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig           `yaml:"server"`
	Console    ConsoleConfig          `yaml:"console"`
	Upstream   UpstreamConfig         `yaml:"upstream"`
	Panels     map[string]PanelConfig `yaml:"panels"`
	Database   DatabaseConfig         `yaml:"database"`
	Logging    LoggingConfig          `yaml:"logging"`
	Prometheus PrometheusConfig       `yaml:"prometheus"`
}

type ServerConfig struct {
	Host  string      `yaml:"host"`
	Port  int         `yaml:"port"`
	HTTPS HTTPSConfig `yaml:"https"`
}

type HTTPSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// ConsoleConfig holds the operator credentials for the console itself.
// The proxy's own auth is untouched; this only gates the console API.
type ConsoleConfig struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
}

// UpstreamConfig points the console at the proxy's settings API. APIKey is
// the bearer credential forwarded on every settings call; when empty the
// console renders the no-permission placeholder instead of fetching.
type UpstreamConfig struct {
	BaseURL         string `yaml:"base_url"`
	APIKey          string `yaml:"api_key,omitempty"`
	TimeoutSeconds  int    `yaml:"timeout_seconds,omitempty"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds,omitempty"`
}

// PanelConfig declares one settings panel as data: where to read, where to
// write, and which response shape the update endpoint uses.
type PanelConfig struct {
	FetchPath    string `yaml:"fetch_path" json:"fetch_path"`
	UpdatePath   string `yaml:"update_path" json:"update_path"`
	UpdateMethod string `yaml:"update_method,omitempty" json:"update_method,omitempty"`
	// ResponseShape is "bare" (update returns the values map directly) or
	// "settings" (update returns {"settings": values}).
	ResponseShape string `yaml:"response_shape,omitempty" json:"response_shape,omitempty"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

func (c *LoggingConfig) IsDebug() bool {
	return c.Level == "debug"
}

type PrometheusConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return createDefaultConfig(path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)

	if cfg.Upstream.APIKey == "" {
		cfg.Upstream.APIKey = os.Getenv("UPSTREAM_API_KEY")
	}

	cfg2, err := ensureCredentials(cfg, path)
	if err != nil {
		return nil, err
	}

	return &cfg2, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8091
	}
	if cfg.Upstream.TimeoutSeconds == 0 {
		cfg.Upstream.TimeoutSeconds = 30
	}
	if cfg.Upstream.CacheTTLSeconds == 0 {
		cfg.Upstream.CacheTTLSeconds = 60
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./data/console.db"
	}
	if len(cfg.Panels) == 0 {
		cfg.Panels = DefaultPanels()
	}
	for name, p := range cfg.Panels {
		if p.UpdateMethod == "" {
			p.UpdateMethod = "PATCH"
		}
		if p.ResponseShape == "" {
			p.ResponseShape = "bare"
		}
		cfg.Panels[name] = p
	}
}

// DefaultPanels is the standard panel set for a stock proxy deployment.
func DefaultPanels() map[string]PanelConfig {
	return map[string]PanelConfig{
		"sso": {
			FetchPath:     "/config/sso",
			UpdatePath:    "/config/sso",
			UpdateMethod:  "PUT",
			ResponseShape: "settings",
		},
		"internal-users": {
			FetchPath:     "/config/internal_users",
			UpdatePath:    "/config/internal_users",
			UpdateMethod:  "PATCH",
			ResponseShape: "bare",
		},
		"discounts": {
			FetchPath:     "/config/discounts",
			UpdatePath:    "/config/discounts",
			UpdateMethod:  "PATCH",
			ResponseShape: "bare",
		},
		"logging": {
			FetchPath:     "/config/logging",
			UpdatePath:    "/config/logging",
			UpdateMethod:  "PATCH",
			ResponseShape: "bare",
		},
	}
}

func createDefaultConfig(path string) (*Config, error) {
	defaultPassword := generateRandomString(16)
	hash, err := bcrypt.GenerateFromPassword([]byte(defaultPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8091,
		},
		Console: ConsoleConfig{
			Username:     "admin",
			PasswordHash: string(hash),
		},
		Upstream: UpstreamConfig{
			BaseURL:         "http://localhost:4000",
			TimeoutSeconds:  30,
			CacheTTLSeconds: 60,
		},
		Panels: DefaultPanels(),
		Database: DatabaseConfig{
			Path: "./data/console.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}

	if err := saveConfig(cfg, path); err != nil {
		return nil, err
	}

	fmt.Printf("\n===========================================\n")
	fmt.Printf("  Default credentials generated!\n")
	fmt.Printf("===========================================\n")
	fmt.Printf("  Username: admin\n")
	fmt.Printf("  Password: %s\n", defaultPassword)
	fmt.Printf("  (Save this - it will not be shown again)\n")
	fmt.Printf("===========================================\n\n")

	return cfg, nil
}

func ensureCredentials(cfg Config, path string) (Config, error) {
	changed := false

	if cfg.Prometheus.Enabled && cfg.Prometheus.Username == "" {
		cfg.Prometheus.Username = "prometheus"
		changed = true
	}
	if cfg.Prometheus.Enabled && cfg.Prometheus.Password == "" {
		cfg.Prometheus.Password = generateRandomString(20)
		changed = true
		fmt.Printf("\n===========================================\n")
		fmt.Printf("  Prometheus credentials generated!\n")
		fmt.Printf("  Username: %s\n", cfg.Prometheus.Username)
		fmt.Printf("  Password: %s\n", cfg.Prometheus.Password)
		fmt.Printf("===========================================\n\n")
	}

	if changed {
		if err := saveConfig(&cfg, path); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

func saveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// SaveConfig exports saveConfig for external use
func SaveConfig(cfg *Config, path string) error {
	return saveConfig(cfg, path)
}

// ResetConsolePassword replaces the stored console password hash.
func ResetConsolePassword(cfg *Config, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	cfg.Console.PasswordHash = string(hash)
	return nil
}

func generateRandomString(length int) string {
	b := make([]byte, length)
	rand.Read(b)
	return hex.EncodeToString(b)[:length]
}
