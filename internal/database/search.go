package database

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/ontoforge/ontoforge-go/internal/apperror"
	"github.com/ontoforge/ontoforge-go/internal/apptype"
	"github.com/ontoforge/ontoforge-go/internal/metrics"
	"github.com/ontoforge/ontoforge-go/internal/schema"
)

// ScoredID is a semantic search candidate before hydration: an entity id
// with its cosine similarity to the query vector.
type ScoredID struct {
	ID    string
	Score float64
}

// SemanticCandidates returns the closest entity ids of one type to the
// query vector, best first. The ANN index path is used when the database
// supports vector_top_k; otherwise a full scan ordered by distance.
func (dm *DBManager) SemanticCandidates(ctx context.Context, ontologyKey string, def *apptype.EntityTypeDef, queryVec []float32, fetchLimit int) ([]ScoredID, error) {
	done := metrics.TimeOp("semantic_candidates")
	success := false
	defer func() { done(success) }()

	db, err := dm.getDB(ontologyKey)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	vec, err := dm.vectorToString(queryVec)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	label := entityTable(def)
	var query string
	var args []any
	if dm.vectorTopKAvailable(ctx, ontologyKey, label, db) {
		query = fmt.Sprintf(`SELECT t.%s, vector_distance_cos(t.%s, vector32(?)) AS distance
			FROM vector_top_k(?, vector32(?), ?) AS v
			JOIN %q t ON t.rowid = v.id
			WHERE t.%s IS NOT NULL
			ORDER BY distance ASC`,
			schema.ColID, schema.ColEmbedding, label, schema.ColEmbedding)
		args = []any{vec, vectorIndexName(label), vec, fetchLimit}
	} else {
		query = fmt.Sprintf(`SELECT %s, vector_distance_cos(%s, vector32(?)) AS distance
			FROM %q
			WHERE %s IS NOT NULL
			ORDER BY distance ASC
			LIMIT ?`,
			schema.ColID, schema.ColEmbedding, label, schema.ColEmbedding)
		args = []any{vec, fetchLimit}
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("failed to run vector search on %s: %w", def.Key, err))
	}
	defer rows.Close()

	candidates := make([]ScoredID, 0, fetchLimit)
	for rows.Next() {
		var id string
		var distance float64
		if err := rows.Scan(&id, &distance); err != nil {
			log.Printf("Warning: failed to scan vector search row: %v", err)
			continue
		}
		candidates = append(candidates, ScoredID{ID: id, Score: 1 - distance})
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewInternal(err)
	}

	success = true
	return candidates, nil
}

// FilterCandidateIDs narrows a candidate id set to those matching the
// prebuilt property filter clauses. Returns the surviving ids as a set.
func (dm *DBManager) FilterCandidateIDs(ctx context.Context, ontologyKey string, def *apptype.EntityTypeDef, ids []string, where []string, args []any) (map[string]bool, error) {
	if len(ids) == 0 {
		return map[string]bool{}, nil
	}

	db, err := dm.getDB(ontologyKey)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	placeholders := strings.Repeat("?, ", len(ids)-1) + "?"
	clauses := append([]string{fmt.Sprintf("%s IN (%s)", schema.ColID, placeholders)}, where...)
	queryArgs := make([]any, 0, len(ids)+len(args))
	for _, id := range ids {
		queryArgs = append(queryArgs, id)
	}
	queryArgs = append(queryArgs, args...)

	query := fmt.Sprintf("SELECT %s FROM %q WHERE %s",
		schema.ColID, entityTable(def), strings.Join(clauses, " AND "))
	rows, err := db.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("failed to filter search candidates: %w", err))
	}
	defer rows.Close()

	surviving := make(map[string]bool, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperror.NewInternal(err)
		}
		surviving[id] = true
	}
	return surviving, rows.Err()
}
