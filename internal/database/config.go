package database

import (
	env "github.com/caarlos0/env/v11"
)

// Config holds the storage configuration. Values come from the environment;
// the server main may override them from flags.
type Config struct {
	URL            string `env:"LIBSQL_URL" envDefault:"file:./ontoforge.db"`
	AuthToken      string `env:"LIBSQL_AUTH_TOKEN"`
	OntologiesDir  string `env:"ONTOLOGIES_DIR"`
	MultiOntology  bool   `env:"MULTI_ONTOLOGY"`
	EmbeddingDims  int    `env:"EMBEDDING_DIMS" envDefault:"4"`
	MaxOpenConns   int    `env:"DB_MAX_OPEN_CONNS"`
	MaxIdleConns   int    `env:"DB_MAX_IDLE_CONNS"`
	ConnMaxIdleSec int    `env:"DB_CONN_MAX_IDLE_SEC"`
	ConnMaxLifeSec int    `env:"DB_CONN_MAX_LIFE_SEC"`
}

// FromEnv parses storage configuration from environment variables.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if cfg.OntologiesDir != "" {
		cfg.MultiOntology = true
	}
	return cfg, nil
}

// NewConfig returns the environment configuration, falling back to defaults
// when parsing fails.
func NewConfig() *Config {
	cfg, err := FromEnv()
	if err != nil {
		return &Config{URL: "file:./ontoforge.db", EmbeddingDims: 4}
	}
	return cfg
}
