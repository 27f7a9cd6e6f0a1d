// Package config holds process-level configuration shared by the server
// binaries. Storage and embeddings read their own settings; this covers
// transports and timeouts.
package config

import (
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the process configuration, parsed from the environment.
type Config struct {
	// Transport selects how the MCP server is exposed: stdio, sse, or http.
	Transport string `env:"MCP_TRANSPORT" envDefault:"stdio"`

	SSEAddr     string `env:"SSE_ADDR" envDefault:":8080"`
	SSEEndpoint string `env:"SSE_ENDPOINT" envDefault:"/sse"`

	// HTTPAddr is the REST API listen address when Transport is http.
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8081"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	EmbedTimeout    time.Duration `env:"EMBED_TIMEOUT" envDefault:"10s"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads .env if present, then parses the environment. Real
// environment variables win over .env entries.
func Load() (*Config, error) {
	_ = godotenv.Load()
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
