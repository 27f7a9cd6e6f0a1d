package database

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/ontoforge/ontoforge-go/internal/apptype"
	"github.com/ontoforge/ontoforge-go/internal/schema"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func entityTable(def *apptype.EntityTypeDef) string {
	return schema.StorageLabel(def.Key)
}

func relationTable(def *apptype.RelationTypeDef) string {
	return schema.RelationTable(def.Key)
}

func vectorIndexName(label string) string {
	return fmt.Sprintf("idx_%s__embedding", label)
}

// entitySelectColumns lists the columns an entity read selects, in scan
// order. The _embedding column is deliberately absent: vectors never cross
// the storage read boundary.
func entitySelectColumns(def *apptype.EntityTypeDef) string {
	cols := []string{schema.ColID, schema.ColCreatedAt, schema.ColUpdatedAt}
	for _, p := range def.Properties {
		cols = append(cols, fmt.Sprintf("%q", p.Key))
	}
	return strings.Join(cols, ", ")
}

func relationSelectColumns(def *apptype.RelationTypeDef) string {
	cols := []string{schema.ColID, schema.ColFromID, schema.ColToID, schema.ColCreatedAt, schema.ColUpdatedAt}
	for _, p := range def.Properties {
		cols = append(cols, fmt.Sprintf("%q", p.Key))
	}
	return strings.Join(cols, ", ")
}

// propertyHolders builds scan destinations for a property list, one typed
// null-holder per property.
func propertyHolders(defs []apptype.PropertyDef) []any {
	holders := make([]any, len(defs))
	for i, d := range defs {
		switch d.Type {
		case apptype.TypeInteger, apptype.TypeBoolean:
			holders[i] = new(sql.NullInt64)
		case apptype.TypeFloat:
			holders[i] = new(sql.NullFloat64)
		default:
			holders[i] = new(sql.NullString)
		}
	}
	return holders
}

// applyProperties copies scanned holder values into the instance map,
// translating storage representations back to canonical ones.
func applyProperties(m apptype.Instance, defs []apptype.PropertyDef, holders []any) {
	for i, d := range defs {
		switch h := holders[i].(type) {
		case *sql.NullInt64:
			if !h.Valid {
				continue
			}
			if d.Type == apptype.TypeBoolean {
				m[d.Key] = h.Int64 != 0
			} else {
				m[d.Key] = h.Int64
			}
		case *sql.NullFloat64:
			if h.Valid {
				m[d.Key] = h.Float64
			}
		case *sql.NullString:
			if h.Valid {
				m[d.Key] = h.String
			}
		}
	}
}

// scanEntity reads one entity row into an instance payload.
func scanEntity(s rowScanner, def *apptype.EntityTypeDef) (apptype.Instance, error) {
	var id string
	var created, updated sql.NullString
	holders := propertyHolders(def.Properties)
	dest := append([]any{&id, &created, &updated}, holders...)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	m := apptype.Instance{
		apptype.KeyID:            id,
		apptype.KeyEntityTypeKey: def.Key,
		apptype.KeyCreatedAt:     created.String,
		apptype.KeyUpdatedAt:     updated.String,
	}
	applyProperties(m, def.Properties, holders)
	return m, nil
}

// scanRelation reads one relation row into an instance payload.
func scanRelation(s rowScanner, def *apptype.RelationTypeDef) (apptype.Instance, error) {
	var id, fromID, toID string
	var created, updated sql.NullString
	holders := propertyHolders(def.Properties)
	dest := append([]any{&id, &fromID, &toID, &created, &updated}, holders...)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	m := apptype.Instance{
		apptype.KeyID:              id,
		apptype.KeyRelationTypeKey: def.Key,
		apptype.KeyFromEntityID:    fromID,
		apptype.KeyToEntityID:      toID,
		apptype.KeyCreatedAt:       created.String,
		apptype.KeyUpdatedAt:       updated.String,
	}
	applyProperties(m, def.Properties, holders)
	return m, nil
}
