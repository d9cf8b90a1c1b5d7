package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server"`
	Proxmox  ProxmoxConfig  `json:"proxmox" yaml:"proxmox"`
	Topology TopologyConfig `json:"topology" yaml:"topology"`
	Log      LogConfig      `json:"log" yaml:"log"`
}

type ServerConfig struct {
	Port           int      `json:"port" yaml:"port"`
	Host           string   `json:"host" yaml:"host"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`
}

// ProxmoxConfig describes how to reach the cluster API. The token is
// sent as "<user>!<token_name>=<token_value>".
type ProxmoxConfig struct {
	Host       string `json:"host" yaml:"host"`
	Port       int    `json:"port" yaml:"port"`
	User       string `json:"user" yaml:"user"`
	TokenName  string `json:"token_name" yaml:"token_name"`
	TokenValue string `json:"token_value" yaml:"token_value"`
	VerifySSL  bool   `json:"verify_ssl" yaml:"verify_ssl"`
	Timeout    int    `json:"timeout_seconds" yaml:"timeout_seconds"`
	MinVersion string `json:"min_version" yaml:"min_version"`
}

type TopologyConfig struct {
	ClusterTitle string `json:"cluster_title" yaml:"cluster_title"`
	Concurrency  int    `json:"concurrency" yaml:"concurrency"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

const (
	minTimeoutSeconds = 1
	maxTimeoutSeconds = 120
)

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			Host:           "0.0.0.0",
			AllowedOrigins: []string{"*"},
		},
		Proxmox: ProxmoxConfig{
			Port:       8006,
			VerifySSL:  false,
			Timeout:    10,
			MinVersion: "7.0",
		},
		Topology: TopologyConfig{
			ClusterTitle: "PVE Cluster",
			Concurrency:  8,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig layers defaults, .env, the optional config file, the
// environment and finally command-line flags.
func LoadConfig() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfg := Default()

	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" {
		configPath = "config/config.json"
	}
	if _, err := os.Stat(configPath); err == nil {
		if err := loadFile(configPath, cfg); err != nil {
			return nil, err
		}
	}

	loadEnv(cfg)

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	var serverPort int
	var serverHost string

	fs.IntVar(&serverPort, "port", 0, "Server port")
	fs.StringVar(&serverHost, "host", "", "Server host")

	_ = fs.Parse(os.Args[1:])

	if isFlagPassed(fs, "port") {
		cfg.Server.Port = serverPort
	}
	if isFlagPassed(fs, "host") {
		cfg.Server.Host = serverHost
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to decode config file %s: %w", path, err)
	}
	return nil
}

func isFlagPassed(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func loadEnv(cfg *Config) {
	// Server configuration
	if val := os.Getenv("SERVER_PORT"); val != "" {
		if p, err := strconv.Atoi(val); err == nil {
			cfg.Server.Port = p
		}
	}
	if val := os.Getenv("SERVER_HOST"); val != "" {
		cfg.Server.Host = val
	}
	if val := os.Getenv("ALLOWED_ORIGINS"); val != "" {
		parts := strings.Split(val, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		cfg.Server.AllowedOrigins = parts
	}

	// Proxmox configuration
	if val := os.Getenv("PVE_HOST"); val != "" {
		cfg.Proxmox.Host = val
	}
	if val := os.Getenv("PVE_PORT"); val != "" {
		if p, err := strconv.Atoi(val); err == nil {
			cfg.Proxmox.Port = p
		}
	}
	if val := os.Getenv("PVE_USER"); val != "" {
		cfg.Proxmox.User = val
	}
	if val := os.Getenv("PVE_TOKEN_NAME"); val != "" {
		cfg.Proxmox.TokenName = val
	}
	if val := os.Getenv("PVE_TOKEN_VALUE"); val != "" {
		cfg.Proxmox.TokenValue = val
	}
	if val := os.Getenv("PVE_VERIFY_SSL"); val != "" {
		cfg.Proxmox.VerifySSL = strings.EqualFold(val, "true") || val == "1"
	}
	if val := os.Getenv("PVE_TIMEOUT"); val != "" {
		if p, err := strconv.Atoi(val); err == nil {
			cfg.Proxmox.Timeout = p
		}
	}
	if val := os.Getenv("PVE_MIN_VERSION"); val != "" {
		cfg.Proxmox.MinVersion = val
	}

	// Topology configuration
	if val := os.Getenv("CLUSTER_TITLE"); val != "" {
		cfg.Topology.ClusterTitle = val
	}
	if val := os.Getenv("TOPOLOGY_CONCURRENCY"); val != "" {
		if p, err := strconv.Atoi(val); err == nil {
			cfg.Topology.Concurrency = p
		}
	}

	// Logging
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		cfg.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		cfg.Log.Format = val
	}
}

// Validate reports every missing or out-of-range setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Proxmox.Host == "" {
		errs = append(errs, errors.New("PVE_HOST is required"))
	}
	if c.Proxmox.User == "" {
		errs = append(errs, errors.New("PVE_USER is required"))
	}
	if c.Proxmox.TokenName == "" {
		errs = append(errs, errors.New("PVE_TOKEN_NAME is required"))
	}
	if c.Proxmox.TokenValue == "" {
		errs = append(errs, errors.New("PVE_TOKEN_VALUE is required"))
	}
	if c.Proxmox.Timeout < minTimeoutSeconds || c.Proxmox.Timeout > maxTimeoutSeconds {
		errs = append(errs, fmt.Errorf("PVE_TIMEOUT must be between %d and %d seconds, got %d",
			minTimeoutSeconds, maxTimeoutSeconds, c.Proxmox.Timeout))
	}
	if c.Topology.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("TOPOLOGY_CONCURRENCY must be positive, got %d", c.Topology.Concurrency))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Helper methods for duration conversion
func (c *Config) ProxmoxTimeoutDuration() time.Duration {
	return time.Duration(c.Proxmox.Timeout) * time.Second
}

// ProxmoxBaseURL is the API root the client talks to. A host that already
// carries a scheme is used as-is.
func (c *Config) ProxmoxBaseURL() string {
	host := strings.TrimSuffix(c.Proxmox.Host, "/")
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		if strings.HasSuffix(host, "/api2/json") {
			return host
		}
		return host + "/api2/json"
	}
	return fmt.Sprintf("https://%s:%d/api2/json", host, c.Proxmox.Port)
}

// ProxmoxTokenID joins user and token name the way Proxmox expects.
func (c *Config) ProxmoxTokenID() string {
	return c.Proxmox.User + "!" + c.Proxmox.TokenName
}
