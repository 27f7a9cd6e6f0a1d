package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ontoforge/ontoforge-go/internal/apperror"
	"github.com/ontoforge/ontoforge-go/internal/apptype"
)

// comparisonOps maps filter suffixes to SQL comparison operators. The
// "contains" suffix is handled separately.
var comparisonOps = map[string]string{
	"gt":  ">",
	"gte": ">=",
	"lt":  "<",
	"lte": "<=",
}

// Storage column names for instance system fields.
const (
	ColID        = "_id"
	ColCreatedAt = "_created_at"
	ColUpdatedAt = "_updated_at"
	ColEmbedding = "_embedding"
	ColFromID    = "_from_id"
	ColToID      = "_to_id"
)

// splitFilterKey splits a filter key on its last "__" into property key and
// operator suffix. A suffix that is not a known operator is treated as part
// of the property name, so "notes__final__contains" filters "notes__final"
// only if that property exists; otherwise the property key is "notes__final".
func splitFilterKey(key string) (prop, op string) {
	idx := strings.LastIndex(key, "__")
	if idx <= 0 {
		return key, ""
	}
	suffix := key[idx+2:]
	if _, ok := comparisonOps[suffix]; ok || suffix == "contains" {
		return key[:idx], suffix
	}
	return key, ""
}

// BuildFilterClauses turns a filter map into SQL fragments plus bound
// arguments. Column identifiers come only from the validated schema; values
// are always bound as parameters. Fragments are AND-combined by the caller.
// Unknown properties and uncoercible values accumulate into one Validation
// error. Filter keys are processed in sorted order so the produced SQL is
// deterministic.
func BuildFilterClauses(typeKey string, defs []apptype.PropertyDef, filters map[string]string) ([]string, []any, error) {
	if len(filters) == 0 {
		return nil, nil, nil
	}

	byKey := make(map[string]apptype.PropertyDef, len(defs))
	for _, d := range defs {
		byKey[d.Key] = d
	}

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make(map[string]string)
	var clauses []string
	var args []any

	for _, rawKey := range keys {
		propKey, op := splitFilterKey(rawKey)
		def, ok := byKey[propKey]
		if !ok {
			fields[rawKey] = fmt.Sprintf(msgUnknownProperty, typeKey)
			continue
		}
		rawValue := filters[rawKey]

		if op == "contains" {
			clauses = append(clauses, fmt.Sprintf(`instr(lower(CAST(%q AS TEXT)), lower(?)) > 0`, def.Key))
			args = append(args, rawValue)
			continue
		}

		value, err := CoerceValue(rawValue, def.Type)
		if err != nil {
			fields[rawKey] = err.Error()
			continue
		}
		if op == "" {
			clauses = append(clauses, fmt.Sprintf(`%q = ?`, def.Key))
		} else {
			clauses = append(clauses, fmt.Sprintf(`%q %s ?`, def.Key, comparisonOps[op]))
		}
		args = append(args, StorageValue(value))
	}

	if len(fields) > 0 {
		return nil, nil, apperror.NewValidation(fmt.Sprintf("Invalid filters for type '%s'", typeKey), fields)
	}
	return clauses, args, nil
}

// BuildTextQueryClause builds a case-insensitive substring match ORed across
// every string-typed property. With no string-typed properties the clause
// matches nothing.
func BuildTextQueryClause(defs []apptype.PropertyDef, query string) (string, []any) {
	var parts []string
	var args []any
	for _, d := range defs {
		if d.Type != apptype.TypeString {
			continue
		}
		parts = append(parts, fmt.Sprintf(`instr(lower(%q), lower(?)) > 0`, d.Key))
		args = append(args, query)
	}
	if len(parts) == 0 {
		return "1 = 0", nil
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

// SortColumn validates a sort field and returns the storage column to order
// by. Both public and internal spellings of the system timestamps are
// accepted; any other field must be a defined property.
func SortColumn(typeKey string, defs []apptype.PropertyDef, field string) (string, error) {
	switch field {
	case "createdAt", "_createdAt":
		return ColCreatedAt, nil
	case "updatedAt", "_updatedAt":
		return ColUpdatedAt, nil
	}
	for _, d := range defs {
		if d.Key == field {
			return fmt.Sprintf("%q", d.Key), nil
		}
	}
	return "", apperror.NewValidation(
		fmt.Sprintf("Invalid sort field '%s' for type '%s'", field, typeKey),
		map[string]string{"sort": fmt.Sprintf(msgUnknownProperty, typeKey)},
	)
}

// NormalizeOrder validates a sort order, defaulting to ascending.
func NormalizeOrder(order string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(order)) {
	case "", "asc":
		return "ASC", nil
	case "desc":
		return "DESC", nil
	}
	return "", apperror.NewValidation(
		fmt.Sprintf("Invalid sort order '%s'", order),
		map[string]string{"order": "must be 'asc' or 'desc'"},
	)
}

// StorageValue converts a coerced value to its storage representation.
// Booleans are stored as 0/1 integers; everything else binds as-is.
func StorageValue(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return int64(1)
		}
		return int64(0)
	}
	return v
}
