// Package schema implements the ontology-facing half of the runtime: the
// naming convention mapper, value coercion and validation, filter and sort
// building, text representations for embedding, and the per-ontology
// schema cache.
package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ontoforge/ontoforge-go/internal/apperror"
)

const maxKeyLength = 64

var keyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// reservedTables are system table names an entity type label or relation
// table must never shadow. System tables are underscore-prefixed, so user
// keys cannot collide with them, but the list guards future additions.
var reservedTables = map[string]struct{}{
	"_ontology":       {},
	"_entity_types":   {},
	"_relation_types": {},
	"_property_defs":  {},
	"_entities":       {},
	"sqlite_master":   {},
	"sqlite_sequence": {},
}

// ValidateKey checks a user-defined type or property key against the
// snake_case grammar.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	if len(key) > maxKeyLength {
		return fmt.Errorf("key %q exceeds %d characters", key, maxKeyLength)
	}
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("key %q must match %s", key, keyPattern.String())
	}
	return nil
}

// StorageLabel maps a snake_case entity type key to its PascalCase storage
// label: "employment_contract" -> "EmploymentContract".
func StorageLabel(key string) string {
	parts := strings.Split(key, "_")
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}

// RelationIdentifier maps a snake_case relation type key to its UPPER_SNAKE
// storage identifier: "works_for" -> "WORKS_FOR".
func RelationIdentifier(key string) string {
	return strings.ToUpper(key)
}

// RelationTable is the storage table for a relation type. The "rel_" prefix
// keeps relation tables out of the (case-insensitive) entity label namespace.
func RelationTable(key string) string {
	return "rel_" + RelationIdentifier(key)
}

// CheckLabelCollisions rejects entity type keys whose storage labels collide
// under case folding, and labels that shadow reserved tables. Table names
// are case-insensitive in storage, so "foo_bar" and "foobar" both folding to
// "foobar" must be caught at provisioning time.
func CheckLabelCollisions(entityTypeKeys []string) error {
	seen := make(map[string]string, len(entityTypeKeys))
	for _, key := range entityTypeKeys {
		label := StorageLabel(key)
		folded := strings.ToLower(label)
		if _, ok := reservedTables[folded]; ok {
			return apperror.NewConflict(fmt.Sprintf("entity type %q maps to reserved storage label %q", key, label))
		}
		if prev, ok := seen[folded]; ok && prev != key {
			return apperror.NewConflict(fmt.Sprintf("entity types %q and %q map to colliding storage labels", prev, key))
		}
		seen[folded] = key
	}
	return nil
}
