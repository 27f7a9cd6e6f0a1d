// Package database is the libsql storage layer. Each ontology lives in its
// own database: fixed system tables hold the provisioned schema and the
// entity id directory, while instance rows live in per-type tables named by
// the naming convention mapper. Identifiers are always drawn from the
// validated schema and values are always bound as parameters.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/ontoforge/ontoforge-go/internal/metrics"
	"github.com/ontoforge/ontoforge-go/internal/schema"
)

const defaultOntology = "default"

// timestampLayout is fixed-width UTC so timestamp columns sort
// lexicographically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

func nowTimestamp() string {
	return time.Now().UTC().Format(timestampLayout)
}

// DBManager handles all storage operations, one database per ontology.
type DBManager struct {
	config *Config

	mu  sync.RWMutex
	dbs map[string]*sql.DB

	stmtMu    sync.RWMutex
	stmtCache map[string]map[string]*sql.Stmt

	capMu sync.RWMutex
	caps  map[string]capFlags
}

// NewDBManager creates a new database manager.
func NewDBManager(config *Config) (*DBManager, error) {
	if config.EmbeddingDims <= 0 || config.EmbeddingDims > 65536 {
		return nil, fmt.Errorf("EMBEDDING_DIMS must be between 1 and 65536 inclusive, got %d", config.EmbeddingDims)
	}
	manager := &DBManager{
		config:    config,
		dbs:       make(map[string]*sql.DB),
		stmtCache: make(map[string]map[string]*sql.Stmt),
		caps:      make(map[string]capFlags),
	}

	// In single-ontology mode, initialize the database immediately.
	if !config.MultiOntology {
		if _, err := manager.getDB(defaultOntology); err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
	}

	return manager, nil
}

// handleKey maps an ontology key to the connection-map key. In
// single-ontology mode every request shares one handle; the _ontology row
// still decides which key that database answers to.
func (dm *DBManager) handleKey(ontologyKey string) string {
	if dm.config.MultiOntology {
		return ontologyKey
	}
	return defaultOntology
}

// getDB retrieves the connection for an ontology, creating it if necessary.
func (dm *DBManager) getDB(ontologyKey string) (*sql.DB, error) {
	handle := dm.handleKey(ontologyKey)

	dm.mu.RLock()
	db, ok := dm.dbs[handle]
	dm.mu.RUnlock()
	if ok {
		return db, nil
	}

	dm.mu.Lock()

	// Double-check if another goroutine created the DB while we were
	// waiting for the lock.
	db, ok = dm.dbs[handle]
	if ok {
		dm.mu.Unlock()
		return db, nil
	}

	var dbURL string
	if dm.config.MultiOntology {
		if handle == "" {
			dm.mu.Unlock()
			return nil, fmt.Errorf("ontology key cannot be empty in multi-ontology mode")
		}
		// The key becomes a path segment; hold it to the same grammar
		// user-defined keys follow.
		if err := schema.ValidateKey(handle); err != nil {
			dm.mu.Unlock()
			return nil, fmt.Errorf("invalid ontology key: %w", err)
		}
		dbPath := filepath.Join(dm.config.OntologiesDir, handle, "libsql.db")
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			dm.mu.Unlock()
			return nil, fmt.Errorf("failed to create ontology directory for %s: %w", handle, err)
		}
		dbURL = fmt.Sprintf("file:%s", dbPath)
	} else {
		dbURL = dm.config.URL
	}

	var newDB *sql.DB
	var err error

	if strings.HasPrefix(dbURL, "file:") {
		newDB, err = sql.Open("libsql", dbURL)
	} else {
		authURL := dbURL
		if dm.config.AuthToken != "" {
			if u, perr := url.Parse(dbURL); perr == nil {
				q := u.Query()
				q.Set("authToken", dm.config.AuthToken)
				u.RawQuery = q.Encode()
				authURL = u.String()
			} else if strings.Contains(dbURL, "?") {
				authURL = dbURL + "&authToken=" + url.QueryEscape(dm.config.AuthToken)
			} else {
				authURL = dbURL + "?authToken=" + url.QueryEscape(dm.config.AuthToken)
			}
		}
		newDB, err = sql.Open("libsql", authURL)
	}
	if err != nil {
		dm.mu.Unlock()
		return nil, fmt.Errorf("failed to create database connector for ontology %s: %w", handle, err)
	}

	if err := dm.initialize(newDB); err != nil {
		newDB.Close()
		dm.mu.Unlock()
		return nil, fmt.Errorf("failed to initialize database for ontology %s: %w", handle, err)
	}

	if dm.config.MaxOpenConns > 0 {
		newDB.SetMaxOpenConns(dm.config.MaxOpenConns)
	}
	if dm.config.MaxIdleConns > 0 {
		newDB.SetMaxIdleConns(dm.config.MaxIdleConns)
	}
	if dm.config.ConnMaxIdleSec > 0 {
		newDB.SetConnMaxIdleTime(time.Duration(dm.config.ConnMaxIdleSec) * time.Second)
	}
	if dm.config.ConnMaxLifeSec > 0 {
		newDB.SetConnMaxLifetime(time.Duration(dm.config.ConnMaxLifeSec) * time.Second)
	}

	dm.dbs[handle] = newDB
	dm.stmtMu.Lock()
	if _, ok := dm.stmtCache[handle]; !ok {
		dm.stmtCache[handle] = make(map[string]*sql.Stmt)
	}
	dm.stmtMu.Unlock()
	dm.mu.Unlock()

	stats := newDB.Stats()
	metrics.Default().ObservePoolStats(stats.InUse, stats.Idle)
	return newDB, nil
}

// initialize creates the system tables if they don't exist. Instance tables
// are created by schema provisioning.
func (dm *DBManager) initialize(db *sql.DB) error {
	done := metrics.TimeOp("db_initialize")
	success := false
	defer func() { done(success) }()
	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for initialization: %w", err)
	}
	defer tx.Rollback()

	for _, statement := range systemSchema() {
		if _, err := tx.Exec(statement); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	success = true
	return nil
}

// systemSchema returns DDL for the fixed tables every ontology database
// carries: the schema definition tables and the entity id directory.
func systemSchema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS _ontology (
        key TEXT PRIMARY KEY,
        name TEXT NOT NULL DEFAULT '',
        description TEXT NOT NULL DEFAULT '',
        created_at TEXT NOT NULL,
        updated_at TEXT NOT NULL
    )`,

		`CREATE TABLE IF NOT EXISTS _entity_types (
        key TEXT PRIMARY KEY,
        display_name TEXT NOT NULL DEFAULT '',
        description TEXT NOT NULL DEFAULT '',
        position INTEGER NOT NULL DEFAULT 0
    )`,

		`CREATE TABLE IF NOT EXISTS _relation_types (
        key TEXT PRIMARY KEY,
        display_name TEXT NOT NULL DEFAULT '',
        description TEXT NOT NULL DEFAULT '',
        source_key TEXT NOT NULL,
        target_key TEXT NOT NULL,
        position INTEGER NOT NULL DEFAULT 0
    )`,

		`CREATE TABLE IF NOT EXISTS _property_defs (
        owner_kind TEXT NOT NULL,
        owner_key TEXT NOT NULL,
        key TEXT NOT NULL,
        display_name TEXT NOT NULL DEFAULT '',
        description TEXT NOT NULL DEFAULT '',
        data_type TEXT NOT NULL,
        required INTEGER NOT NULL DEFAULT 0,
        default_json TEXT,
        position INTEGER NOT NULL DEFAULT 0,
        PRIMARY KEY (owner_kind, owner_key, key)
    )`,

		// Directory of every entity id, giving global id uniqueness and
		// cross-type lookup for relation endpoints and traversal.
		`CREATE TABLE IF NOT EXISTS _entities (
        _id TEXT PRIMARY KEY,
        entity_type_key TEXT NOT NULL
    )`,
		`CREATE INDEX IF NOT EXISTS idx_entities_type_key ON _entities(entity_type_key)`,
	}
}

// Config exposes the active configuration.
func (dm *DBManager) Config() *Config {
	return dm.config
}

// PoolStats aggregates connection pool stats across ontology handles.
func (dm *DBManager) PoolStats() (inUse, idle int) {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	for _, db := range dm.dbs {
		stats := db.Stats()
		inUse += stats.InUse
		idle += stats.Idle
	}
	return inUse, idle
}

// Ping verifies connectivity for an ontology's database.
func (dm *DBManager) Ping(ctx context.Context, ontologyKey string) error {
	db, err := dm.getDB(ontologyKey)
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

// Close closes all database connections.
func (dm *DBManager) Close() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	var errs []string
	for name, db := range dm.dbs {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("failed to close database for ontology %s: %v", name, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}
