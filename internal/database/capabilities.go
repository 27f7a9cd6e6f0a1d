package database

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// capFlags stores capability detection for one ontology handle.
type capFlags struct {
	checked    bool
	vectorTopK bool
}

// vectorTopKAvailable probes whether the ANN index function works for this
// ontology's database, using the given entity label's vector index. The
// result is cached per handle; in-memory test URLs skip the probe.
func (dm *DBManager) vectorTopKAvailable(ctx context.Context, ontologyKey, label string, db *sql.DB) bool {
	handle := dm.handleKey(ontologyKey)

	dm.capMu.RLock()
	caps, ok := dm.caps[handle]
	dm.capMu.RUnlock()
	if ok && caps.checked {
		return caps.vectorTopK
	}

	if strings.Contains(dm.config.URL, "mode=memory") {
		dm.capMu.Lock()
		dm.caps[handle] = capFlags{checked: true, vectorTopK: false}
		dm.capMu.Unlock()
		return false
	}

	zero := dm.vectorZeroString()
	ctx2, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	rows, err := db.QueryContext(ctx2,
		"SELECT id FROM vector_top_k(?, vector32(?), 1) LIMIT 1",
		vectorIndexName(label), zero)
	if rows != nil {
		rows.Close()
	}

	dm.capMu.Lock()
	dm.caps[handle] = capFlags{checked: true, vectorTopK: err == nil}
	dm.capMu.Unlock()
	return err == nil
}
