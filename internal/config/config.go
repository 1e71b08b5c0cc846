package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port int `koanf:"port"`
	} `koanf:"server"`

	Auth struct {
		// Secret signs the HS256 bearer tokens callers present to the API.
		Secret string `koanf:"secret"`
	} `koanf:"auth"`

	Messaging struct {
		BaseURL        string        `koanf:"base_url"`
		Token          string        `koanf:"token"`
		RequestTimeout time.Duration `koanf:"request_timeout"`
		PageSize       int           `koanf:"page_size"`
		RatePerSecond  float64       `koanf:"rate_per_second"`
	} `koanf:"messaging"`

	Queue struct {
		MaxWorkers int `koanf:"max_workers"`
	} `koanf:"queue"`

	Log struct {
		Level  string `koanf:"level"`
		Pretty bool   `koanf:"pretty"`
	} `koanf:"log"`
}

// LoadConfig loads the configuration from a file
func LoadConfig(configPath string) (*Config, error) {
	var k = koanf.New(".")

	// Set up default configuration
	k.Load(confmap.Provider(map[string]interface{}{
		"server.port":               8484,
		"messaging.request_timeout": "30s",
		"messaging.page_size":       100,
		"messaging.rate_per_second": 10.0,
		"queue.max_workers":         5,
		"log.level":                 "info",
		"log.pretty":                false,
	}, "."), nil)

	// Load from TOML file if it exists
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		// Try to load from default locations - prioritize esdata directory for containerized environments
		defaultPaths := []string{"./esdata/errandsync.toml", "./errandsync.toml", "$HOME/.errandsync.toml"}
		for _, path := range defaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	// Load from environment variables with prefix ERRANDSYNC_
	k.Load(env.Provider("ERRANDSYNC_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "ERRANDSYNC_")
		return strings.Replace(strings.ToLower(s), "_", ".", -1)
	}), nil)

	// Unmarshal into Config struct
	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	return &config, nil
}

// InitConfig initializes a new configuration file
func InitConfig(configPath string) error {
	// Check if file already exists
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	// Create sample configuration
	sampleConfig := `# errandsync Configuration

[server]
port = 8484

[auth]
secret = "change-me"

[messaging]
base_url = "https://messaging.example.com/api/v1"
token = "your-messaging-api-token"
request_timeout = "30s"
page_size = 100
rate_per_second = 10.0

[queue]
max_workers = 5

[log]
level = "info"
pretty = false
`

	return os.WriteFile(configPath, []byte(sampleConfig), 0644)
}

// Validate validates the configuration
func Validate(config *Config) error {
	if config.Server.Port <= 0 {
		return fmt.Errorf("server port must be positive")
	}

	if config.Auth.Secret == "" {
		return fmt.Errorf("auth secret is required")
	}

	if config.Messaging.BaseURL == "" {
		return fmt.Errorf("messaging base_url is required")
	}
	if !strings.HasPrefix(config.Messaging.BaseURL, "http://") && !strings.HasPrefix(config.Messaging.BaseURL, "https://") {
		return fmt.Errorf("messaging base_url must start with http:// or https://")
	}

	if config.Messaging.Token == "" {
		return fmt.Errorf("messaging token is required")
	}

	if config.Messaging.PageSize <= 0 {
		return fmt.Errorf("messaging page_size must be positive")
	}

	if config.Queue.MaxWorkers <= 0 {
		return fmt.Errorf("queue max_workers must be positive")
	}

	return nil
}
