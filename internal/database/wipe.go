package database

import (
	"context"
	"fmt"

	"github.com/ontoforge/ontoforge-go/internal/apperror"
	"github.com/ontoforge/ontoforge-go/internal/apptype"
	"github.com/ontoforge/ontoforge-go/internal/metrics"
)

// WipeData deletes every instance row in the ontology while leaving the
// provisioned schema intact. Runs in one transaction so a failed wipe
// leaves the data untouched.
func (dm *DBManager) WipeData(ctx context.Context, ontologyKey string, snap *apptype.SchemaSnapshot) (*apptype.WipeResult, error) {
	done := metrics.TimeOp("wipe_data")
	success := false
	defer func() { done(success) }()

	db, err := dm.getDB(ontologyKey)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("failed to begin wipe transaction: %w", err))
	}
	defer tx.Rollback()

	result := &apptype.WipeResult{OntologyKey: ontologyKey}

	for _, key := range snap.RelationTypeKeys() {
		rt := snap.RelationTypes[key]
		res, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %q", relationTable(rt)))
		if err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("failed to wipe relation type %s: %w", rt.Key, err))
		}
		if n, err := res.RowsAffected(); err == nil {
			result.RelationsDeleted += int(n)
		}
	}

	for _, key := range snap.EntityTypeKeys() {
		et := snap.EntityTypes[key]
		res, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %q", entityTable(et)))
		if err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("failed to wipe entity type %s: %w", et.Key, err))
		}
		if n, err := res.RowsAffected(); err == nil {
			result.EntitiesDeleted += int(n)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM _entities"); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("failed to wipe entity directory: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("failed to commit wipe: %w", err))
	}
	success = true
	return result, nil
}
