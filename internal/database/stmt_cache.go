package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ontoforge/ontoforge-go/internal/metrics"
)

// getPreparedStmt returns or prepares and caches a statement for the given
// ontology handle.
func (dm *DBManager) getPreparedStmt(ctx context.Context, ontologyKey string, db *sql.DB, sqlText string) (*sql.Stmt, error) {
	handle := dm.handleKey(ontologyKey)

	dm.stmtMu.RLock()
	if cache, ok := dm.stmtCache[handle]; ok {
		if stmt, ok2 := cache[sqlText]; ok2 {
			dm.stmtMu.RUnlock()
			metrics.Default().IncStmtCacheHit("prepare")
			return stmt, nil
		}
	}
	dm.stmtMu.RUnlock()
	metrics.Default().IncStmtCacheMiss("prepare")

	stmt, err := db.PrepareContext(ctx, sqlText)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	dm.stmtMu.Lock()
	if _, ok := dm.stmtCache[handle]; !ok {
		dm.stmtCache[handle] = make(map[string]*sql.Stmt)
	}
	dm.stmtCache[handle][sqlText] = stmt
	dm.stmtMu.Unlock()
	return stmt, nil
}
