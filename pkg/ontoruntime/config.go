package ontoruntime

import (
	"github.com/ontoforge/ontoforge-go/internal/database"
)

// Config exposes a stable wrapper for engine configuration in package mode.
// Most fields map directly to internal/database.Config.
type Config struct {
	URL            string
	AuthToken      string
	OntologiesDir  string
	MultiOntology  bool
	EmbeddingDims  int
	MaxOpenConns   int
	MaxIdleConns   int
	ConnMaxIdleSec int
	ConnMaxLifeSec int
}

func (c *Config) toInternal() *database.Config {
	cfg := &database.Config{
		URL:            c.URL,
		AuthToken:      c.AuthToken,
		OntologiesDir:  c.OntologiesDir,
		MultiOntology:  c.MultiOntology,
		EmbeddingDims:  c.EmbeddingDims,
		MaxOpenConns:   c.MaxOpenConns,
		MaxIdleConns:   c.MaxIdleConns,
		ConnMaxIdleSec: c.ConnMaxIdleSec,
		ConnMaxLifeSec: c.ConnMaxLifeSec,
	}
	if cfg.URL == "" {
		cfg.URL = "file:./ontoforge.db"
	}
	if cfg.EmbeddingDims == 0 {
		cfg.EmbeddingDims = 4
	}
	if cfg.OntologiesDir != "" {
		cfg.MultiOntology = true
	}
	return cfg
}
