package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Host != DefaultHost {
		t.Errorf("expected host %q, got %q", DefaultHost, cfg.Server.Host)
	}
	if cfg.Server.Port != DefaultPort {
		t.Errorf("expected port %d, got %d", DefaultPort, cfg.Server.Port)
	}
	if cfg.Upstream.BaseURL != DefaultUpstreamURL {
		t.Errorf("expected upstream %q, got %q", DefaultUpstreamURL, cfg.Upstream.BaseURL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	content := `
server:
  host: 127.0.0.1
  port: 9090
  root_path: /relay
upstream:
  base_url: http://inference:8000
  model: llama-3-8b
`
	path := writeTempConfig(t, content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("expected host 127.0.0.1, got %q", cfg.Server.Host)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Server.RootPath != "/relay" {
		t.Errorf("expected root path /relay, got %q", cfg.Server.RootPath)
	}
	if cfg.Upstream.BaseURL != "http://inference:8000" {
		t.Errorf("expected upstream http://inference:8000, got %q", cfg.Upstream.BaseURL)
	}
	if cfg.Upstream.Model != "llama-3-8b" {
		t.Errorf("expected model llama-3-8b, got %q", cfg.Upstream.Model)
	}
}

func TestLoadKeepsDefaultsForMissingFields(t *testing.T) {
	path := writeTempConfig(t, "upstream:\n  model: test-model\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Server.Port != DefaultPort {
		t.Errorf("expected default port %d, got %d", DefaultPort, cfg.Server.Port)
	}
	if cfg.Upstream.BaseURL != DefaultUpstreamURL {
		t.Errorf("expected default upstream %q, got %q", DefaultUpstreamURL, cfg.Upstream.BaseURL)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "server.port",
		},
		{
			name:    "empty host",
			mutate:  func(c *Config) { c.Server.Host = " " },
			wantErr: "server.host",
		},
		{
			name:    "cert without key",
			mutate:  func(c *Config) { c.Server.TLSCertFile = "cert.pem" },
			wantErr: "together",
		},
		{
			name:    "key without cert",
			mutate:  func(c *Config) { c.Server.TLSKeyFile = "key.pem" },
			wantErr: "together",
		},
		{
			name:    "root path without slash",
			mutate:  func(c *Config) { c.Server.RootPath = "relay" },
			wantErr: "root_path",
		},
		{
			name:    "upstream bad scheme",
			mutate:  func(c *Config) { c.Upstream.BaseURL = "ftp://host" },
			wantErr: "http or https",
		},
		{
			name:    "upstream missing host",
			mutate:  func(c *Config) { c.Upstream.BaseURL = "http://" },
			wantErr: "missing a host",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateAllowsEmptyUpstream(t *testing.T) {
	cfg := Default()
	cfg.Upstream.BaseURL = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("empty upstream URL should validate, got %v", err)
	}
}

func TestTLSEnabled(t *testing.T) {
	s := ServerConfig{}
	if s.TLSEnabled() {
		t.Error("TLS should be disabled without cert and key")
	}
	s.TLSCertFile = "cert.pem"
	s.TLSKeyFile = "key.pem"
	if !s.TLSEnabled() {
		t.Error("TLS should be enabled with cert and key")
	}
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}
