package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"vllm-relay/internal/config"
	"vllm-relay/internal/server"
	"vllm-relay/internal/upstream"
)

const serveUsage = `Usage:
  vllm-relay serve [--config <path>] [flags]

Flags:
  --config          string   Path to YAML configuration file
  --host            string   Listen address (default 0.0.0.0)
  --port            int      Listen port (default 5000)
  --ssl-keyfile     string   Path to TLS private key
  --ssl-certfile    string   Path to TLS certificate
  --root-path       string   Route prefix when behind a path-routing proxy
  --vllm-server-url string   Base URL of the vLLM server (default http://localhost:8094)
  --model           string   Model identifier injected into forwarded requests`

func serve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, serveUsage)
	}

	var (
		cfgPath     string
		host        string
		port        int
		sslKeyFile  string
		sslCertFile string
		rootPath    string
		upstreamURL string
		model       string
	)
	fs.StringVar(&cfgPath, "config", "", "path to configuration file")
	fs.StringVar(&host, "host", "", "listen address")
	fs.IntVar(&port, "port", 0, "listen port")
	fs.StringVar(&sslKeyFile, "ssl-keyfile", "", "path to TLS private key")
	fs.StringVar(&sslCertFile, "ssl-certfile", "", "path to TLS certificate")
	fs.StringVar(&rootPath, "root-path", "", "route prefix")
	fs.StringVar(&upstreamURL, "vllm-server-url", "", "vLLM server base URL")
	fs.StringVar(&model, "model", "", "model identifier")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse serve flags: %w", err)
	}

	cfg := config.Default()
	if cfgPath != "" {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	// Flags given on the command line win over file and default values.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Server.Host = host
		case "port":
			cfg.Server.Port = port
		case "ssl-keyfile":
			cfg.Server.TLSKeyFile = sslKeyFile
		case "ssl-certfile":
			cfg.Server.TLSCertFile = sslCertFile
		case "root-path":
			cfg.Server.RootPath = rootPath
		case "vllm-server-url":
			cfg.Upstream.BaseURL = upstreamURL
		case "model":
			cfg.Upstream.Model = model
		}
	})

	if err := cfg.Validate(); err != nil {
		return err
	}

	client := upstream.NewClient(cfg.Upstream.BaseURL, upstream.NewHTTPClient())

	srv, err := server.New(cfg, client)
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}
