package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config holds all configuration for the share service
type Config struct {
	// Server configuration
	Listen    string `mapstructure:"listen"`
	PublicURL string `mapstructure:"public_url"`
	DataDir   string `mapstructure:"data_dir"`
	LogLevel  string `mapstructure:"log_level"`

	// TLS configuration
	EnableTLS bool   `mapstructure:"enable_tls"`
	CertFile  string `mapstructure:"cert_file"`
	KeyFile   string `mapstructure:"key_file"`

	// Share configuration
	Share ShareConfig `mapstructure:"share"`

	// Metrics configuration
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Remote servers whose files can be shared
	Servers []ServerConfig `mapstructure:"servers"`
}

// ShareConfig defines token store and issuance configuration
type ShareConfig struct {
	StoreBackend    string        `mapstructure:"store_backend"` // memory, sqlite
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`
	DefaultDuration time.Duration `mapstructure:"default_duration"`
	VerifyExists    bool          `mapstructure:"verify_exists"`
}

// MetricsConfig defines metrics configuration
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// ServerConfig describes one remote file server
type ServerConfig struct {
	ID             string `mapstructure:"id"`
	Name           string `mapstructure:"name"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	PrivateKeyFile string `mapstructure:"private_key_file"`
}

// Load loads configuration from various sources
func Load(cmd *cobra.Command) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Bind command line flags
	if err := bindFlags(cmd, v); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	// Read from config file if specified
	if configFile, _ := cmd.Flags().GetString("config"); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Read from environment variables
	v.SetEnvPrefix("FTPSHARE")
	v.AutomaticEnv()

	// Unmarshal configuration
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate and setup defaults
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("listen", ":8080")
	v.SetDefault("public_url", "http://localhost:8080")
	v.SetDefault("log_level", "info")

	// TLS defaults
	v.SetDefault("enable_tls", false)

	// Share defaults
	v.SetDefault("share.store_backend", "memory")
	v.SetDefault("share.sweep_interval", time.Hour)
	v.SetDefault("share.default_duration", 24*time.Hour)
	v.SetDefault("share.verify_exists", false)

	// Metrics defaults
	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")
}

func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	flags := map[string]string{
		"listen":     "listen",
		"public-url": "public_url",
		"data-dir":   "data_dir",
		"log-level":  "log_level",
		"enable-tls": "enable_tls",
		"cert-file":  "cert_file",
		"key-file":   "key_file",
	}

	for flag, key := range flags {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return err
		}
	}

	return nil
}

func validate(cfg *Config) error {
	switch cfg.Share.StoreBackend {
	case "memory":
	case "sqlite":
		if cfg.DataDir == "" {
			return fmt.Errorf("data_dir is required for the sqlite store: specify via --data-dir flag, config file, or FTPSHARE_DATA_DIR environment variable")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	default:
		return fmt.Errorf("unknown store backend %q (expected memory or sqlite)", cfg.Share.StoreBackend)
	}

	if cfg.Share.SweepInterval <= 0 {
		return fmt.Errorf("share sweep_interval must be positive")
	}
	if cfg.Share.DefaultDuration <= 0 {
		return fmt.Errorf("share default_duration must be positive")
	}

	// Validate TLS configuration
	if cfg.EnableTLS {
		if cfg.CertFile == "" || cfg.KeyFile == "" {
			return fmt.Errorf("TLS enabled but cert-file or key-file not specified")
		}
	}

	return nil
}
