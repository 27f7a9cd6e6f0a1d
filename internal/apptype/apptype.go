package apptype

import (
	"fmt"
	"sort"
)

// DataType is the closed set of property value types an ontology may declare.
type DataType string

const (
	TypeString   DataType = "string"
	TypeInteger  DataType = "integer"
	TypeFloat    DataType = "float"
	TypeBoolean  DataType = "boolean"
	TypeDate     DataType = "date"
	TypeDateTime DataType = "datetime"
)

// ParseDataType validates a raw type name from a schema document.
func ParseDataType(s string) (DataType, error) {
	switch DataType(s) {
	case TypeString, TypeInteger, TypeFloat, TypeBoolean, TypeDate, TypeDateTime:
		return DataType(s), nil
	}
	return "", fmt.Errorf("unknown data type: %q", s)
}

// Public system keys carried on instance payloads.
const (
	KeyID              = "_id"
	KeyEntityTypeKey   = "_entityTypeKey"
	KeyRelationTypeKey = "_relationTypeKey"
	KeyCreatedAt       = "_createdAt"
	KeyUpdatedAt       = "_updatedAt"
	KeyFromEntityID    = "fromEntityId"
	KeyToEntityID      = "toEntityId"
	KeyDirection       = "direction"
	KeyScore           = "score"
)

// PropertyDef describes a single property of an entity or relation type.
type PropertyDef struct {
	Key         string   `json:"key"`
	DisplayName string   `json:"displayName,omitempty"`
	Description string   `json:"description,omitempty"`
	Type        DataType `json:"type"`
	Required    bool     `json:"required"`
	Default     any      `json:"default,omitempty"`
}

// EntityTypeDef describes an entity type. Properties preserve schema
// insertion order.
type EntityTypeDef struct {
	Key         string        `json:"key"`
	DisplayName string        `json:"displayName,omitempty"`
	Description string        `json:"description,omitempty"`
	Properties  []PropertyDef `json:"properties"`
}

// Property looks up a property definition by key.
func (d *EntityTypeDef) Property(key string) (PropertyDef, bool) {
	for _, p := range d.Properties {
		if p.Key == key {
			return p, true
		}
	}
	return PropertyDef{}, false
}

// RelationTypeDef describes a directed relation type between two entity types.
type RelationTypeDef struct {
	Key         string        `json:"key"`
	DisplayName string        `json:"displayName,omitempty"`
	Description string        `json:"description,omitempty"`
	SourceKey   string        `json:"sourceKey"`
	TargetKey   string        `json:"targetKey"`
	Properties  []PropertyDef `json:"properties"`
}

// Property looks up a property definition by key.
func (d *RelationTypeDef) Property(key string) (PropertyDef, bool) {
	for _, p := range d.Properties {
		if p.Key == key {
			return p, true
		}
	}
	return PropertyDef{}, false
}

// OntologyInfo identifies the tenant schema a snapshot belongs to.
type OntologyInfo struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// SchemaSnapshot is an immutable, in-memory view of one ontology's schema.
// Snapshots are replaced wholesale on reload; callers must not mutate them.
type SchemaSnapshot struct {
	Ontology      OntologyInfo                `json:"ontology"`
	EntityTypes   map[string]*EntityTypeDef   `json:"entityTypes"`
	RelationTypes map[string]*RelationTypeDef `json:"relationTypes"`
}

// EntityType returns the definition for an entity type key.
func (s *SchemaSnapshot) EntityType(key string) (*EntityTypeDef, bool) {
	d, ok := s.EntityTypes[key]
	return d, ok
}

// RelationType returns the definition for a relation type key.
func (s *SchemaSnapshot) RelationType(key string) (*RelationTypeDef, bool) {
	d, ok := s.RelationTypes[key]
	return d, ok
}

// EntityTypeKeys returns entity type keys in sorted order for deterministic
// iteration (fan-out search, wipe, cascade delete).
func (s *SchemaSnapshot) EntityTypeKeys() []string {
	keys := make([]string, 0, len(s.EntityTypes))
	for k := range s.EntityTypes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RelationTypeKeys returns relation type keys in sorted order.
func (s *SchemaSnapshot) RelationTypeKeys() []string {
	keys := make([]string, 0, len(s.RelationTypes))
	for k := range s.RelationTypes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Instance payloads are open maps: system keys plus schema-defined properties.
type Instance = map[string]any

// Page is the standard paginated list envelope.
type Page struct {
	Items  []Instance `json:"items"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

// Neighbor pairs a connecting relation with the entity on its far end.
type Neighbor struct {
	Relation Instance `json:"relation"`
	Entity   Instance `json:"entity"`
}

// Neighborhood is the result of a 1-hop traversal from a center entity.
type Neighborhood struct {
	Entity    Instance   `json:"entity"`
	Neighbors []Neighbor `json:"neighbors"`
}

// ScoredEntity is one semantic search hit.
type ScoredEntity struct {
	Entity Instance `json:"entity"`
	Score  float64  `json:"score"`
}

// SearchResult is the semantic search envelope.
type SearchResult struct {
	Results []ScoredEntity `json:"results"`
	Query   string         `json:"query"`
	Total   int            `json:"total"`
}

// WipeResult reports how many instance rows a wipe removed.
type WipeResult struct {
	OntologyKey      string `json:"ontologyKey"`
	EntitiesDeleted  int    `json:"entitiesDeleted"`
	RelationsDeleted int    `json:"relationsDeleted"`
}

// DeleteEntityResult reports a cascade delete.
type DeleteEntityResult struct {
	ID               string `json:"id"`
	RelationsDeleted int    `json:"relationsDeleted"`
}

// Schema document types: the input format for provisioning an ontology.

// PropertySpec declares a property in a schema document.
type PropertySpec struct {
	Key         string `json:"key" yaml:"key"`
	DisplayName string `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Type        string `json:"type" yaml:"type"`
	Required    bool   `json:"required,omitempty" yaml:"required,omitempty"`
	Default     any    `json:"default,omitempty" yaml:"default,omitempty"`
}

// EntityTypeSpec declares an entity type in a schema document.
type EntityTypeSpec struct {
	Key         string         `json:"key" yaml:"key"`
	DisplayName string         `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Properties  []PropertySpec `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// RelationTypeSpec declares a relation type in a schema document.
type RelationTypeSpec struct {
	Key         string         `json:"key" yaml:"key"`
	DisplayName string         `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Source      string         `json:"source" yaml:"source"`
	Target      string         `json:"target" yaml:"target"`
	Properties  []PropertySpec `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// OntologySpec names the ontology a schema document provisions.
type OntologySpec struct {
	Key         string `json:"key" yaml:"key"`
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// SchemaDocument is a full ontology schema to provision.
type SchemaDocument struct {
	Ontology      OntologySpec       `json:"ontology" yaml:"ontology"`
	EntityTypes   []EntityTypeSpec   `json:"entityTypes,omitempty" yaml:"entityTypes,omitempty"`
	RelationTypes []RelationTypeSpec `json:"relationTypes,omitempty" yaml:"relationTypes,omitempty"`
}

// ProvisionResult reports what a schema import wrote.
type ProvisionResult struct {
	OntologyKey   string `json:"ontologyKey"`
	EntityTypes   int    `json:"entityTypes"`
	RelationTypes int    `json:"relationTypes"`
	Properties    int    `json:"properties"`
}
