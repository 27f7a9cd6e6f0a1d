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

// CreateEntity inserts a new entity instance. Values must already be
// coerced to canonical form; embedding may be nil when no provider is
// configured.
func (dm *DBManager) CreateEntity(ctx context.Context, ontologyKey string, def *apptype.EntityTypeDef, values map[string]any, embedding []float32) (apptype.Instance, error) {
	done := metrics.TimeOp("create_entity")
	success := false
	defer func() { done(success) }()

	db, err := dm.getDB(ontologyKey)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	id := uuid.NewString()
	now := nowTimestamp()
	table := entityTable(def)

	cols := []string{schema.ColID, schema.ColCreatedAt, schema.ColUpdatedAt}
	placeholders := []string{"?", "?", "?"}
	args := []any{id, now, now}
	for _, p := range def.Properties {
		v, ok := values[p.Key]
		if !ok {
			continue
		}
		cols = append(cols, fmt.Sprintf("%q", p.Key))
		placeholders = append(placeholders, "?")
		args = append(args, schema.StorageValue(v))
	}
	if embedding != nil {
		vec, err := dm.vectorToString(embedding)
		if err != nil {
			return nil, apperror.NewInternal(err)
		}
		cols = append(cols, schema.ColEmbedding)
		placeholders = append(placeholders, "vector32(?)")
		args = append(args, vec)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO _entities (_id, entity_type_key) VALUES (?, ?)", id, def.Key); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("failed to register entity id: %w", err))
	}
	insertSQL := fmt.Sprintf("INSERT INTO %q (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	if _, err := tx.ExecContext(ctx, insertSQL, args...); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("failed to insert entity: %w", err))
	}
	if err := tx.Commit(); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("failed to commit entity insert: %w", err))
	}

	result := apptype.Instance{
		apptype.KeyID:            id,
		apptype.KeyEntityTypeKey: def.Key,
		apptype.KeyCreatedAt:     now,
		apptype.KeyUpdatedAt:     now,
	}
	for _, p := range def.Properties {
		if v, ok := values[p.Key]; ok {
			result[p.Key] = v
		}
	}
	success = true
	return result, nil
}

// GetEntity fetches one entity by id within its type's table.
func (dm *DBManager) GetEntity(ctx context.Context, ontologyKey string, def *apptype.EntityTypeDef, id string) (apptype.Instance, error) {
	done := metrics.TimeOp("get_entity")
	success := false
	defer func() { done(success) }()

	db, err := dm.getDB(ontologyKey)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	query := fmt.Sprintf("SELECT %s FROM %q WHERE %s = ?",
		entitySelectColumns(def), entityTable(def), schema.ColID)
	stmt, err := dm.getPreparedStmt(ctx, ontologyKey, db, query)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	entity, err := scanEntity(stmt.QueryRowContext(ctx, id), def)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NewNotFound("entity", id)
		}
		return nil, apperror.NewInternal(fmt.Errorf("failed to read entity: %w", err))
	}
	success = true
	return entity, nil
}

// ListEntities returns a page of entities matching the prebuilt WHERE
// clauses, plus the total match count.
func (dm *DBManager) ListEntities(ctx context.Context, ontologyKey string, def *apptype.EntityTypeDef, where []string, args []any, orderCol, orderDir string, limit, offset int) (*apptype.Page, error) {
	done := metrics.TimeOp("list_entities")
	success := false
	defer func() { done(success) }()

	db, err := dm.getDB(ontologyKey)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	table := entityTable(def)
	whereSQL := ""
	if len(where) > 0 {
		whereSQL = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	countSQL := fmt.Sprintf("SELECT COUNT(*) FROM %q%s", table, whereSQL)
	if err := db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("failed to count entities: %w", err))
	}

	query := fmt.Sprintf("SELECT %s FROM %q%s ORDER BY %s %s, %s ASC LIMIT ? OFFSET ?",
		entitySelectColumns(def), table, whereSQL, orderCol, orderDir, schema.ColID)
	rows, err := db.QueryContext(ctx, query, append(append([]any{}, args...), limit, offset)...)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("failed to list entities: %w", err))
	}
	defer rows.Close()

	items := make([]apptype.Instance, 0, limit)
	for rows.Next() {
		entity, err := scanEntity(rows, def)
		if err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("failed to scan entity row: %w", err))
		}
		items = append(items, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewInternal(err)
	}

	success = true
	return &apptype.Page{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

// UpdateEntity applies coerced property sets and removals to one entity
// and returns the fresh row.
func (dm *DBManager) UpdateEntity(ctx context.Context, ontologyKey string, def *apptype.EntityTypeDef, id string, sets map[string]any, removals []string) (apptype.Instance, error) {
	done := metrics.TimeOp("update_entity")
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
		entityTable(def), strings.Join(assignments, ", "), schema.ColID)
	res, err := db.ExecContext(ctx, updateSQL, args...)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("failed to update entity: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	if affected == 0 {
		return nil, apperror.NewNotFound("entity", id)
	}

	entity, err := dm.GetEntity(ctx, ontologyKey, def, id)
	if err != nil {
		return nil, err
	}
	success = true
	return entity, nil
}

// SetEntityEmbedding replaces the stored vector for one entity.
func (dm *DBManager) SetEntityEmbedding(ctx context.Context, ontologyKey string, def *apptype.EntityTypeDef, id string, embedding []float32) error {
	done := metrics.TimeOp("set_entity_embedding")
	success := false
	defer func() { done(success) }()

	db, err := dm.getDB(ontologyKey)
	if err != nil {
		return apperror.NewInternal(err)
	}
	vec, err := dm.vectorToString(embedding)
	if err != nil {
		return apperror.NewInternal(err)
	}

	updateSQL := fmt.Sprintf("UPDATE %q SET %s = vector32(?) WHERE %s = ?",
		entityTable(def), schema.ColEmbedding, schema.ColID)
	res, err := db.ExecContext(ctx, updateSQL, vec, id)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("failed to store embedding: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperror.NewInternal(err)
	}
	if affected == 0 {
		return apperror.NewNotFound("entity", id)
	}
	success = true
	return nil
}

// DeleteEntity removes one entity and every relation row that references
// it, in a single transaction. Returns the number of relations removed.
func (dm *DBManager) DeleteEntity(ctx context.Context, ontologyKey string, snap *apptype.SchemaSnapshot, def *apptype.EntityTypeDef, id string) (int, error) {
	done := metrics.TimeOp("delete_entity")
	success := false
	defer func() { done(success) }()

	db, err := dm.getDB(ontologyKey)
	if err != nil {
		return 0, apperror.NewInternal(err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, apperror.NewInternal(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	relationsDeleted := 0
	for _, key := range snap.RelationTypeKeys() {
		rt := snap.RelationTypes[key]
		if rt.SourceKey != def.Key && rt.TargetKey != def.Key {
			continue
		}
		deleteSQL := fmt.Sprintf("DELETE FROM %q WHERE %s = ? OR %s = ?",
			relationTable(rt), schema.ColFromID, schema.ColToID)
		res, err := tx.ExecContext(ctx, deleteSQL, id, id)
		if err != nil {
			return 0, apperror.NewInternal(fmt.Errorf("failed to cascade relations for %s: %w", rt.Key, err))
		}
		if n, err := res.RowsAffected(); err == nil {
			relationsDeleted += int(n)
		}
	}

	res, err := tx.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %q WHERE %s = ?", entityTable(def), schema.ColID), id)
	if err != nil {
		return 0, apperror.NewInternal(fmt.Errorf("failed to delete entity: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, apperror.NewInternal(err)
	}
	if affected == 0 {
		return 0, apperror.NewNotFound("entity", id)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM _entities WHERE _id = ?", id); err != nil {
		return 0, apperror.NewInternal(fmt.Errorf("failed to deregister entity id: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return 0, apperror.NewInternal(fmt.Errorf("failed to commit entity delete: %w", err))
	}
	success = true
	return relationsDeleted, nil
}

// EntityTypeOf resolves an entity id to its type key via the id directory.
func (dm *DBManager) EntityTypeOf(ctx context.Context, ontologyKey, id string) (string, error) {
	db, err := dm.getDB(ontologyKey)
	if err != nil {
		return "", apperror.NewInternal(err)
	}
	stmt, err := dm.getPreparedStmt(ctx, ontologyKey, db,
		"SELECT entity_type_key FROM _entities WHERE _id = ?")
	if err != nil {
		return "", apperror.NewInternal(err)
	}
	var typeKey string
	if err := stmt.QueryRowContext(ctx, id).Scan(&typeKey); err != nil {
		if err == sql.ErrNoRows {
			return "", apperror.NewNotFound("entity", id)
		}
		return "", apperror.NewInternal(fmt.Errorf("failed to resolve entity type: %w", err))
	}
	return typeKey, nil
}
