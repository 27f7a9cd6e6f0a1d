package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ontoforge/ontoforge-go/internal/apperror"
	"github.com/ontoforge/ontoforge-go/internal/apptype"
	"github.com/ontoforge/ontoforge-go/internal/metrics"
	"github.com/ontoforge/ontoforge-go/internal/schema"
)

const (
	ownerKindEntity   = "entity"
	ownerKindRelation = "relation"
)

// ReadFullSchema loads the provisioned schema for an ontology. It is the
// schema cache's Source implementation.
func (dm *DBManager) ReadFullSchema(ctx context.Context, ontologyKey string) (*apptype.SchemaSnapshot, error) {
	done := metrics.TimeOp("read_schema")
	success := false
	defer func() { done(success) }()

	db, err := dm.getDB(ontologyKey)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	var info apptype.OntologyInfo
	row := db.QueryRowContext(ctx, "SELECT key, name, description FROM _ontology LIMIT 1")
	if err := row.Scan(&info.Key, &info.Name, &info.Description); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NewNotFound("ontology", ontologyKey)
		}
		return nil, apperror.NewInternal(fmt.Errorf("failed to read ontology row: %w", err))
	}
	if info.Key != ontologyKey {
		// Single-ontology databases answer only to their provisioned key.
		return nil, apperror.NewNotFound("ontology", ontologyKey)
	}

	props, err := dm.readPropertyDefs(ctx, db)
	if err != nil {
		return nil, err
	}

	snap := &apptype.SchemaSnapshot{
		Ontology:      info,
		EntityTypes:   make(map[string]*apptype.EntityTypeDef),
		RelationTypes: make(map[string]*apptype.RelationTypeDef),
	}

	rows, err := db.QueryContext(ctx, "SELECT key, display_name, description FROM _entity_types ORDER BY position, key")
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("failed to read entity types: %w", err))
	}
	defer rows.Close()
	for rows.Next() {
		def := &apptype.EntityTypeDef{}
		if err := rows.Scan(&def.Key, &def.DisplayName, &def.Description); err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("failed to scan entity type: %w", err))
		}
		def.Properties = props[ownerKindEntity][def.Key]
		snap.EntityTypes[def.Key] = def
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewInternal(err)
	}

	relRows, err := db.QueryContext(ctx, "SELECT key, display_name, description, source_key, target_key FROM _relation_types ORDER BY position, key")
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("failed to read relation types: %w", err))
	}
	defer relRows.Close()
	for relRows.Next() {
		def := &apptype.RelationTypeDef{}
		if err := relRows.Scan(&def.Key, &def.DisplayName, &def.Description, &def.SourceKey, &def.TargetKey); err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("failed to scan relation type: %w", err))
		}
		def.Properties = props[ownerKindRelation][def.Key]
		snap.RelationTypes[def.Key] = def
	}
	if err := relRows.Err(); err != nil {
		return nil, apperror.NewInternal(err)
	}

	success = true
	return snap, nil
}

// readPropertyDefs loads all property definitions grouped by owner, in
// schema insertion order.
func (dm *DBManager) readPropertyDefs(ctx context.Context, db *sql.DB) (map[string]map[string][]apptype.PropertyDef, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT owner_kind, owner_key, key, display_name, description, data_type, required, default_json FROM _property_defs ORDER BY owner_kind, owner_key, position, key")
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("failed to read property defs: %w", err))
	}
	defer rows.Close()

	out := map[string]map[string][]apptype.PropertyDef{
		ownerKindEntity:   {},
		ownerKindRelation: {},
	}
	for rows.Next() {
		var ownerKind, ownerKey, dataType string
		var required int
		var defaultJSON sql.NullString
		def := apptype.PropertyDef{}
		if err := rows.Scan(&ownerKind, &ownerKey, &def.Key, &def.DisplayName, &def.Description, &dataType, &required, &defaultJSON); err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("failed to scan property def: %w", err))
		}
		dt, err := apptype.ParseDataType(dataType)
		if err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("property %s.%s: %w", ownerKey, def.Key, err))
		}
		def.Type = dt
		def.Required = required != 0
		if defaultJSON.Valid && defaultJSON.String != "" {
			var raw any
			if err := json.Unmarshal([]byte(defaultJSON.String), &raw); err != nil {
				return nil, apperror.NewInternal(fmt.Errorf("property %s.%s default: %w", ownerKey, def.Key, err))
			}
			canonical, err := schema.CoerceValue(raw, dt)
			if err != nil {
				return nil, apperror.NewInternal(fmt.Errorf("property %s.%s default: %w", ownerKey, def.Key, err))
			}
			def.Default = canonical
		}
		if _, ok := out[ownerKind]; !ok {
			out[ownerKind] = map[string][]apptype.PropertyDef{}
		}
		out[ownerKind][ownerKey] = append(out[ownerKind][ownerKey], def)
	}
	return out, rows.Err()
}

// ImportSchema validates a schema document and provisions it into the
// ontology's database: schema rows are replaced wholesale and instance
// tables are created or migrated to match. The caller invalidates the
// schema cache afterwards.
func (dm *DBManager) ImportSchema(ctx context.Context, ontologyKey string, doc *apptype.SchemaDocument) (*apptype.ProvisionResult, error) {
	done := metrics.TimeOp("import_schema")
	success := false
	defer func() { done(success) }()

	if doc.Ontology.Key != "" && doc.Ontology.Key != ontologyKey {
		return nil, apperror.NewValidation(
			fmt.Sprintf("Schema document is for ontology '%s', not '%s'", doc.Ontology.Key, ontologyKey), nil)
	}
	if err := schema.ValidateKey(ontologyKey); err != nil {
		return nil, apperror.NewValidation(fmt.Sprintf("Invalid ontology key: %v", err), nil)
	}
	if err := validateSchemaDocument(doc); err != nil {
		return nil, err
	}

	db, err := dm.getDB(ontologyKey)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	// A single-ontology database can hold exactly one ontology.
	var existingKey string
	if err := db.QueryRowContext(ctx, "SELECT key FROM _ontology LIMIT 1").Scan(&existingKey); err == nil {
		if existingKey != ontologyKey {
			return nil, apperror.NewConflict(
				fmt.Sprintf("database already provisioned for ontology '%s'", existingKey))
		}
	} else if err != sql.ErrNoRows {
		return nil, apperror.NewInternal(err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("failed to begin provision transaction: %w", err))
	}
	defer tx.Rollback()

	now := nowTimestamp()
	name := doc.Ontology.Name
	if name == "" {
		name = ontologyKey
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO _ontology (key, name, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET name = excluded.name, description = excluded.description, updated_at = excluded.updated_at`,
		ontologyKey, name, doc.Ontology.Description, now, now)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("failed to write ontology row: %w", err))
	}

	for _, table := range []string{"_entity_types", "_relation_types", "_property_defs"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("failed to reset %s: %w", table, err))
		}
	}

	propCount := 0
	for i, et := range doc.EntityTypes {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO _entity_types (key, display_name, description, position) VALUES (?, ?, ?, ?)",
			et.Key, et.DisplayName, et.Description, i); err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("failed to write entity type %s: %w", et.Key, err))
		}
		n, err := insertPropertyDefs(ctx, tx, ownerKindEntity, et.Key, et.Properties)
		if err != nil {
			return nil, err
		}
		propCount += n
	}
	for i, rt := range doc.RelationTypes {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO _relation_types (key, display_name, description, source_key, target_key, position) VALUES (?, ?, ?, ?, ?, ?)",
			rt.Key, rt.DisplayName, rt.Description, rt.Source, rt.Target, i); err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("failed to write relation type %s: %w", rt.Key, err))
		}
		n, err := insertPropertyDefs(ctx, tx, ownerKindRelation, rt.Key, rt.Properties)
		if err != nil {
			return nil, err
		}
		propCount += n
	}

	if err := tx.Commit(); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("failed to commit schema rows: %w", err))
	}

	if err := dm.ensureInstanceTables(ctx, db, doc); err != nil {
		return nil, err
	}

	success = true
	return &apptype.ProvisionResult{
		OntologyKey:   ontologyKey,
		EntityTypes:   len(doc.EntityTypes),
		RelationTypes: len(doc.RelationTypes),
		Properties:    propCount,
	}, nil
}

func insertPropertyDefs(ctx context.Context, tx *sql.Tx, ownerKind, ownerKey string, specs []apptype.PropertySpec) (int, error) {
	for i, p := range specs {
		var defaultJSON any
		if p.Default != nil {
			b, err := json.Marshal(p.Default)
			if err != nil {
				return 0, apperror.NewInternal(fmt.Errorf("failed to encode default for %s.%s: %w", ownerKey, p.Key, err))
			}
			defaultJSON = string(b)
		}
		required := 0
		if p.Required {
			required = 1
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO _property_defs (owner_kind, owner_key, key, display_name, description, data_type, required, default_json, position) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
			ownerKind, ownerKey, p.Key, p.DisplayName, p.Description, p.Type, required, defaultJSON, i); err != nil {
			return 0, apperror.NewInternal(fmt.Errorf("failed to write property %s.%s: %w", ownerKey, p.Key, err))
		}
	}
	return len(specs), nil
}

// validateSchemaDocument checks keys, data types, defaults, label
// collisions, and relation endpoint references. All field errors are
// accumulated into one Validation error; duplicate keys are Conflicts.
func validateSchemaDocument(doc *apptype.SchemaDocument) error {
	fields := make(map[string]string)

	entityKeys := make([]string, 0, len(doc.EntityTypes))
	seenEntity := make(map[string]bool)
	for _, et := range doc.EntityTypes {
		if err := schema.ValidateKey(et.Key); err != nil {
			fields["entityTypes."+et.Key] = err.Error()
			continue
		}
		if seenEntity[et.Key] {
			return apperror.NewConflict(fmt.Sprintf("duplicate entity type key '%s'", et.Key))
		}
		seenEntity[et.Key] = true
		entityKeys = append(entityKeys, et.Key)
		validatePropertySpecs(et.Key, et.Properties, fields)
	}

	if err := schema.CheckLabelCollisions(entityKeys); err != nil {
		return err
	}

	seenRelation := make(map[string]bool)
	for _, rt := range doc.RelationTypes {
		if err := schema.ValidateKey(rt.Key); err != nil {
			fields["relationTypes."+rt.Key] = err.Error()
			continue
		}
		if seenRelation[rt.Key] {
			return apperror.NewConflict(fmt.Sprintf("duplicate relation type key '%s'", rt.Key))
		}
		seenRelation[rt.Key] = true
		if !seenEntity[rt.Source] {
			fields[rt.Key+".source"] = fmt.Sprintf("unknown entity type '%s'", rt.Source)
		}
		if !seenEntity[rt.Target] {
			fields[rt.Key+".target"] = fmt.Sprintf("unknown entity type '%s'", rt.Target)
		}
		validatePropertySpecs(rt.Key, rt.Properties, fields)
	}

	if len(fields) > 0 {
		return apperror.NewValidation("Invalid schema document", fields)
	}
	return nil
}

func validatePropertySpecs(ownerKey string, specs []apptype.PropertySpec, fields map[string]string) {
	seen := make(map[string]bool)
	for _, p := range specs {
		ref := ownerKey + "." + p.Key
		if err := schema.ValidateKey(p.Key); err != nil {
			fields[ref] = err.Error()
			continue
		}
		if seen[p.Key] {
			fields[ref] = "duplicate property key"
			continue
		}
		seen[p.Key] = true
		dt, err := apptype.ParseDataType(p.Type)
		if err != nil {
			fields[ref] = err.Error()
			continue
		}
		if p.Default != nil {
			if _, err := schema.CoerceValue(p.Default, dt); err != nil {
				fields[ref] = fmt.Sprintf("invalid default: %v", err)
			}
		}
	}
}

// ensureInstanceTables creates or migrates the per-type instance tables a
// schema document requires. Existing columns are never dropped; new
// properties arrive as added columns.
func (dm *DBManager) ensureInstanceTables(ctx context.Context, db *sql.DB, doc *apptype.SchemaDocument) error {
	for _, et := range doc.EntityTypes {
		label := schema.StorageLabel(et.Key)
		ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
        _id TEXT PRIMARY KEY,
        _created_at TEXT NOT NULL,
        _updated_at TEXT NOT NULL,
        _embedding F32_BLOB(%d)
    )`, label, dm.config.EmbeddingDims)
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return apperror.NewInternal(fmt.Errorf("failed to create table for entity type %s: %w", et.Key, err))
		}
		if err := dm.ensureColumns(ctx, db, label, et.Properties); err != nil {
			return err
		}
		indexes := []string{
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %q ON %q(_created_at)`, "idx_"+label+"__created_at", label),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %q ON %q(libsql_vector_idx(_embedding))`, vectorIndexName(label), label),
		}
		for _, stmt := range indexes {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return apperror.NewInternal(fmt.Errorf("failed to create index for %s: %w", et.Key, err))
			}
		}
	}

	for _, rt := range doc.RelationTypes {
		table := schema.RelationTable(rt.Key)
		ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
        _id TEXT PRIMARY KEY,
        _from_id TEXT NOT NULL,
        _to_id TEXT NOT NULL,
        _created_at TEXT NOT NULL,
        _updated_at TEXT NOT NULL
    )`, table)
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return apperror.NewInternal(fmt.Errorf("failed to create table for relation type %s: %w", rt.Key, err))
		}
		if err := dm.ensureColumns(ctx, db, table, rt.Properties); err != nil {
			return err
		}
		indexes := []string{
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %q ON %q(_from_id)`, "idx_"+table+"__from", table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %q ON %q(_to_id)`, "idx_"+table+"__to", table),
		}
		for _, stmt := range indexes {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return apperror.NewInternal(fmt.Errorf("failed to create index for %s: %w", rt.Key, err))
			}
		}
	}
	return nil
}

// ensureColumns adds any property columns missing from an instance table.
func (dm *DBManager) ensureColumns(ctx context.Context, db *sql.DB, table string, specs []apptype.PropertySpec) error {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("failed to inspect table %s: %w", table, err))
	}
	defer rows.Close()

	existing := make(map[string]bool)
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return apperror.NewInternal(fmt.Errorf("failed to scan table info for %s: %w", table, err))
		}
		existing[strings.ToLower(name)] = true
	}
	if err := rows.Err(); err != nil {
		return apperror.NewInternal(err)
	}

	for _, p := range specs {
		if existing[strings.ToLower(p.Key)] {
			continue
		}
		dt, err := apptype.ParseDataType(p.Type)
		if err != nil {
			return apperror.NewValidation(fmt.Sprintf("Invalid data type for property '%s'", p.Key), nil)
		}
		stmt := fmt.Sprintf(`ALTER TABLE %q ADD COLUMN %q %s`, table, p.Key, columnAffinity(dt))
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return apperror.NewInternal(fmt.Errorf("failed to add column %s.%s: %w", table, p.Key, err))
		}
	}
	return nil
}

func columnAffinity(dt apptype.DataType) string {
	switch dt {
	case apptype.TypeInteger, apptype.TypeBoolean:
		return "INTEGER"
	case apptype.TypeFloat:
		return "REAL"
	default:
		return "TEXT"
	}
}
