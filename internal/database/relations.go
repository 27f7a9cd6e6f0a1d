package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ontoforge/ontoforge-go/internal/apperror"
	"github.com/ontoforge/ontoforge-go/internal/apptype"
	"github.com/ontoforge/ontoforge-go/internal/metrics"
	"github.com/ontoforge/ontoforge-go/internal/schema"
)

// CreateRelation inserts a relation instance. Endpoint existence and type
// checks happen in the runtime layer, where they accumulate with property
// validation errors.
func (dm *DBManager) CreateRelation(ctx context.Context, ontologyKey string, def *apptype.RelationTypeDef, fromID, toID string, values map[string]any) (apptype.Instance, error) {
	done := metrics.TimeOp("create_relation")
	success := false
	defer func() { done(success) }()

	db, err := dm.getDB(ontologyKey)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	id := uuid.NewString()
	now := nowTimestamp()
	cols := []string{schema.ColID, schema.ColFromID, schema.ColToID, schema.ColCreatedAt, schema.ColUpdatedAt}
	placeholders := []string{"?", "?", "?", "?", "?"}
	args := []any{id, fromID, toID, now, now}
	for _, p := range def.Properties {
		v, ok := values[p.Key]
		if !ok {
			continue
		}
		cols = append(cols, fmt.Sprintf("%q", p.Key))
		placeholders = append(placeholders, "?")
		args = append(args, schema.StorageValue(v))
	}

	insertSQL := fmt.Sprintf("INSERT INTO %q (%s) VALUES (%s)",
		relationTable(def), strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	if _, err := db.ExecContext(ctx, insertSQL, args...); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("failed to insert relation: %w", err))
	}

	result := apptype.Instance{
		apptype.KeyID:              id,
		apptype.KeyRelationTypeKey: def.Key,
		apptype.KeyFromEntityID:    fromID,
		apptype.KeyToEntityID:      toID,
		apptype.KeyCreatedAt:       now,
		apptype.KeyUpdatedAt:       now,
	}
	for _, p := range def.Properties {
		if v, ok := values[p.Key]; ok {
			result[p.Key] = v
		}
	}
	success = true
	return result, nil
}

// GetRelation fetches one relation by id within its type's table.
func (dm *DBManager) GetRelation(ctx context.Context, ontologyKey string, def *apptype.RelationTypeDef, id string) (apptype.Instance, error) {
	done := metrics.TimeOp("get_relation")
	success := false
	defer func() { done(success) }()

	db, err := dm.getDB(ontologyKey)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	query := fmt.Sprintf("SELECT %s FROM %q WHERE %s = ?",
		relationSelectColumns(def), relationTable(def), schema.ColID)
	stmt, err := dm.getPreparedStmt(ctx, ontologyKey, db, query)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	relation, err := scanRelation(stmt.QueryRowContext(ctx, id), def)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NewNotFound("relation", id)
		}
		return nil, apperror.NewInternal(fmt.Errorf("failed to read relation: %w", err))
	}
	success = true
	return relation, nil
}

// ListRelations returns a page of relations matching the prebuilt WHERE
// clauses, plus the total match count.
func (dm *DBManager) ListRelations(ctx context.Context, ontologyKey string, def *apptype.RelationTypeDef, where []string, args []any, orderCol, orderDir string, limit, offset int) (*apptype.Page, error) {
	done := metrics.TimeOp("list_relations")
	success := false
	defer func() { done(success) }()

	db, err := dm.getDB(ontologyKey)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	table := relationTable(def)
	whereSQL := ""
	if len(where) > 0 {
		whereSQL = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	countSQL := fmt.Sprintf("SELECT COUNT(*) FROM %q%s", table, whereSQL)
	if err := db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("failed to count relations: %w", err))
	}

	query := fmt.Sprintf("SELECT %s FROM %q%s ORDER BY %s %s, %s ASC LIMIT ? OFFSET ?",
		relationSelectColumns(def), table, whereSQL, orderCol, orderDir, schema.ColID)
	rows, err := db.QueryContext(ctx, query, append(append([]any{}, args...), limit, offset)...)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("failed to list relations: %w", err))
	}
	defer rows.Close()

	items := make([]apptype.Instance, 0, limit)
	for rows.Next() {
		relation, err := scanRelation(rows, def)
		if err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("failed to scan relation row: %w", err))
		}
		items = append(items, relation)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewInternal(err)
	}

	success = true
	return &apptype.Page{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

// UpdateRelation applies coerced property sets and removals to one
// relation. Endpoints are immutable; only declared properties change.
func (dm *DBManager) UpdateRelation(ctx context.Context, ontologyKey string, def *apptype.RelationTypeDef, id string, sets map[string]any, removals []string) (apptype.Instance, error) {
	done := metrics.TimeOp("update_relation")
	success := false
	defer func() { done(success) }()

	db, err := dm.getDB(ontologyKey)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	assignments := make([]string, 0, len(sets)+len(removals)+1)
	args := make([]any, 0, len(sets)+2)
	for _, p := range def.Properties {
		if v, ok := sets[p.Key]; ok {
			assignments = append(assignments, fmt.Sprintf("%q = ?", p.Key))
			args = append(args, schema.StorageValue(v))
		}
	}
	for _, key := range removals {
		assignments = append(assignments, fmt.Sprintf("%q = NULL", key))
	}
	assignments = append(assignments, schema.ColUpdatedAt+" = ?")
	args = append(args, nowTimestamp(), id)

	updateSQL := fmt.Sprintf("UPDATE %q SET %s WHERE %s = ?",
		relationTable(def), strings.Join(assignments, ", "), schema.ColID)
	res, err := db.ExecContext(ctx, updateSQL, args...)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("failed to update relation: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	if affected == 0 {
		return nil, apperror.NewNotFound("relation", id)
	}

	relation, err := dm.GetRelation(ctx, ontologyKey, def, id)
	if err != nil {
		return nil, err
	}
	success = true
	return relation, nil
}

// DeleteRelation removes one relation row.
func (dm *DBManager) DeleteRelation(ctx context.Context, ontologyKey string, def *apptype.RelationTypeDef, id string) error {
	done := metrics.TimeOp("delete_relation")
	success := false
	defer func() { done(success) }()

	db, err := dm.getDB(ontologyKey)
	if err != nil {
		return apperror.NewInternal(err)
	}

	res, err := db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %q WHERE %s = ?", relationTable(def), schema.ColID), id)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("failed to delete relation: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperror.NewInternal(err)
	}
	if affected == 0 {
		return apperror.NewNotFound("relation", id)
	}
	success = true
	return nil
}
