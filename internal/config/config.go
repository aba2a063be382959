package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults applied when neither the config file nor a flag provides a value.
const (
	DefaultHost        = "0.0.0.0"
	DefaultPort        = 5000
	DefaultUpstreamURL = "http://localhost:8094"
)

// Config represents the application configuration. It is built once at
// startup, validated, and passed by value; nothing mutates it afterwards.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Upstream UpstreamConfig `yaml:"upstream"`
}

// ServerConfig defines listener configuration.
type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	TLSCertFile string `yaml:"tls_cert_file"`
	TLSKeyFile  string `yaml:"tls_key_file"`
	RootPath    string `yaml:"root_path"`
}

// UpstreamConfig identifies the vLLM server requests are forwarded to.
type UpstreamConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// TLSEnabled reports whether the listener should serve TLS.
func (s ServerConfig) TLSEnabled() bool {
	return s.TLSCertFile != "" && s.TLSKeyFile != ""
}

// Default returns the configuration used when no file and no flags are given.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
		Upstream: UpstreamConfig{
			BaseURL: DefaultUpstreamURL,
		},
	}
}

// Load reads YAML configuration from disk on top of the defaults and
// validates the result.
func Load(path string) (Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", absPath, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %q: %w", absPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate performs strict sanity checks on the configuration.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host must not be empty")
	}

	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		return fmt.Errorf("tls_cert_file and tls_key_file must be provided together")
	}

	if c.Server.RootPath != "" && !strings.HasPrefix(c.Server.RootPath, "/") {
		return fmt.Errorf("server.root_path %q must start with a slash", c.Server.RootPath)
	}

	// An empty upstream URL is tolerated: the relay starts and reports the
	// missing configuration on each /generate request.
	if c.Upstream.BaseURL != "" {
		u, err := url.Parse(c.Upstream.BaseURL)
		if err != nil {
			return fmt.Errorf("upstream.base_url %q is not a valid URL: %w", c.Upstream.BaseURL, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("upstream.base_url %q must use http or https", c.Upstream.BaseURL)
		}
		if u.Host == "" {
			return fmt.Errorf("upstream.base_url %q is missing a host", c.Upstream.BaseURL)
		}
	}

	return nil
}
