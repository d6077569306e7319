package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// PathEnv names the environment variable holding the config file path.
const PathEnv = "BROKERGW_CONFIG"

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the broker gateway.
type Config struct {
	Server  Server  `yaml:"server"`
	Logging Logging `yaml:"logging"`
	Gateway Gateway `yaml:"gateway"`
	Storage Storage `yaml:"storage"`
	Kafka   Kafka   `yaml:"kafka"`
}

// Server holds network listener configuration. A zero GRPCPort disables the
// gRPC listener.
type Server struct {
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	GRPCPort int    `yaml:"grpc_port" env:"GRPC_PORT"`
}

// Logging configures the application logger. An empty File logs to stdout only.
type Logging struct {
	Level      string `yaml:"level" env:"LOG_LEVEL"`
	Format     string `yaml:"format" env:"LOG_FORMAT"`
	File       string `yaml:"file" env:"LOG_FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Gateway holds simulation parameters.
type Gateway struct {
	DefaultPrice float64 `yaml:"default_price" env:"DEFAULT_PRICE"`
	Venue        string  `yaml:"venue" env:"VENUE"`
	MaxOrderQty  int64   `yaml:"max_order_qty" env:"MAX_ORDER_QTY"`
}

// Storage holds paths for fill persistence. Empty values disable the
// corresponding sink.
type Storage struct {
	DataDir    string `yaml:"data_dir" env:"DATA_DIR"`
	SQLitePath string `yaml:"sqlite_path" env:"SQLITE_PATH"`
}

// Kafka configures the fill topic publisher. No brokers disables it.
type Kafka struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" envSeparator:","`
	Topic   string   `yaml:"topic" env:"KAFKA_TOPIC"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: Server{
			Host: "127.0.0.1",
			Port: 4006,
		},
		Logging: Logging{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
		Gateway: Gateway{
			DefaultPrice: 100,
			Venue:        "SIM",
		},
		Kafka: Kafka{
			Topic: "broker-gateway.fills",
		},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load builds the configuration from defaults, the YAML file at path (if
// path is non-empty) and environment variable overrides, in that order. A
// .env file in the working directory is loaded into the environment first.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "reading config")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parsing config %s", path)
		}
	}

	_ = godotenv.Load()

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides replaces fields whose environment variable is set.
// Unset variables leave file values alone.
func applyEnvOverrides(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return errors.Wrap(err, "parsing environment")
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 {
		return errors.Errorf("server.grpc_port %d out of range", c.Server.GRPCPort)
	}
	if c.Gateway.DefaultPrice <= 0 {
		return errors.Errorf("gateway.default_price must be positive, got %g", c.Gateway.DefaultPrice)
	}
	if c.Gateway.MaxOrderQty < 0 {
		return errors.Errorf("gateway.max_order_qty must not be negative, got %d", c.Gateway.MaxOrderQty)
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return errors.New("kafka.topic is required when brokers are set")
	}
	return nil
}

// Addr returns the HTTP listen address.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GRPCAddr returns the gRPC listen address, or "" when disabled.
func (s Server) GRPCAddr() string {
	if s.GRPCPort == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", s.Host, s.GRPCPort)
}
