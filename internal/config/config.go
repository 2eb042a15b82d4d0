package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend selectors for the database gateway
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config holds the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds the tracked game server identity and local listeners
type ServerConfig struct {
	ListenAddr string        `yaml:"listen_addr"`
	HTTPPort   int           `yaml:"http_port"`
	EventPort  int           `yaml:"event_port"`
	PublicIP   string        `yaml:"public_ip"`
	GamePort   uint16        `yaml:"game_port"`
	Heartbeat  time.Duration `yaml:"heartbeat"`
}

// DatabaseConfig selects and parameterizes the gateway backend
type DatabaseConfig struct {
	Backend  string `yaml:"backend"`
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level       string `yaml:"level"`
	Environment string `yaml:"environment"`
}

// Load reads configuration from a YAML file and applies defaults.
// Validation is separate so callers can decide when missing fields are fatal.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Set defaults
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = "127.0.0.1"
	}
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8181
	}
	if cfg.Server.EventPort == 0 {
		cfg.Server.EventPort = 27600
	}
	if cfg.Server.GamePort == 0 {
		cfg.Server.GamePort = 27015
	}
	if cfg.Server.Heartbeat == 0 {
		cfg.Server.Heartbeat = time.Second
	}
	if cfg.Database.Backend == "" {
		cfg.Database.Backend = BackendSQLite
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "/var/lib/sessiond/sessions.db"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Environment == "" {
		cfg.Log.Environment = "production"
	}

	return &cfg, nil
}

// Validate reports fatal configuration errors. The process must not
// register any event handlers when this fails.
func (c *Config) Validate() error {
	switch c.Database.Backend {
	case BackendSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required for the sqlite backend")
		}
	case BackendPostgres:
		if c.Database.Host == "" || c.Database.User == "" || c.Database.Name == "" || c.Database.Port == 0 {
			return fmt.Errorf("database host, user, name and port are required for the postgres backend")
		}
	default:
		return fmt.Errorf("unsupported database backend %q", c.Database.Backend)
	}

	if c.Server.PublicIP == "" {
		return fmt.Errorf("server public_ip is required")
	}
	if c.Server.GamePort == 0 {
		return fmt.Errorf("server game_port is required")
	}
	return nil
}
