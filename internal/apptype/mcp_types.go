package apptype

// OntologyArgs provides a standard way to pass ontology context to tools.
type OntologyArgs struct {
	OntologyKey string `json:"ontologyKey,omitempty" jsonschema:"The ontology to operate on. If not provided, the default ontology is used."`
}

// GetSchemaArgs represents the arguments for the get_schema tool
type GetSchemaArgs struct {
	OntologyArgs OntologyArgs `json:"ontologyArgs,omitempty" jsonschema:"Ontology context for the operation."`
}

// ProvisionArgs represents the arguments for the provision_ontology tool
type ProvisionArgs struct {
	OntologyArgs OntologyArgs   `json:"ontologyArgs,omitempty" jsonschema:"Ontology context for the operation."`
	Schema       SchemaDocument `json:"schema" jsonschema:"The full schema document to provision into the ontology."`
}

// CreateEntityArgs represents the arguments for the create_entity tool
type CreateEntityArgs struct {
	OntologyArgs  OntologyArgs   `json:"ontologyArgs,omitempty" jsonschema:"Ontology context for the operation."`
	EntityTypeKey string         `json:"entityTypeKey" jsonschema:"The entity type key, e.g. 'person'."`
	Properties    map[string]any `json:"properties,omitempty" jsonschema:"Property values keyed by property key."`
}

// ListEntitiesArgs represents the arguments for the list_entities tool
type ListEntitiesArgs struct {
	OntologyArgs  OntologyArgs      `json:"ontologyArgs,omitempty" jsonschema:"Ontology context for the operation."`
	EntityTypeKey string            `json:"entityTypeKey" jsonschema:"The entity type key to list instances of."`
	Limit         int               `json:"limit,omitempty" jsonschema:"Maximum number of items to return (1-200, default 50)."`
	Offset        int               `json:"offset,omitempty" jsonschema:"Number of items to skip."`
	Sort          string            `json:"sort,omitempty" jsonschema:"Sort field: a property key or createdAt/updatedAt."`
	Order         string            `json:"order,omitempty" jsonschema:"Sort order: asc or desc."`
	Query         string            `json:"query,omitempty" jsonschema:"Free-text query matched against string properties."`
	Filters       map[string]string `json:"filters,omitempty" jsonschema:"Property filters, keys may carry a __gt/__gte/__lt/__lte/__contains suffix."`
	Fields        []string          `json:"fields,omitempty" jsonschema:"Property keys to include in each item; _id is always kept."`
}

// GetEntityArgs represents the arguments for the get_entity tool
type GetEntityArgs struct {
	OntologyArgs  OntologyArgs `json:"ontologyArgs,omitempty" jsonschema:"Ontology context for the operation."`
	EntityTypeKey string       `json:"entityTypeKey" jsonschema:"The entity type key."`
	ID            string       `json:"id" jsonschema:"The entity id."`
	Fields        []string     `json:"fields,omitempty" jsonschema:"Property keys to include; _id is always kept."`
}

// UpdateEntityArgs represents the arguments for the update_entity tool.
// A null property value removes that property.
type UpdateEntityArgs struct {
	OntologyArgs  OntologyArgs   `json:"ontologyArgs,omitempty" jsonschema:"Ontology context for the operation."`
	EntityTypeKey string         `json:"entityTypeKey" jsonschema:"The entity type key."`
	ID            string         `json:"id" jsonschema:"The entity id."`
	Properties    map[string]any `json:"properties,omitempty" jsonschema:"Partial property updates; null removes a property."`
}

// DeleteEntityArgs represents the arguments for the delete_entity tool
type DeleteEntityArgs struct {
	OntologyArgs  OntologyArgs `json:"ontologyArgs,omitempty" jsonschema:"Ontology context for the operation."`
	EntityTypeKey string       `json:"entityTypeKey" jsonschema:"The entity type key."`
	ID            string       `json:"id" jsonschema:"The entity id to delete (relations are removed too)."`
}

// CreateRelationArgs represents the arguments for the create_relation tool
type CreateRelationArgs struct {
	OntologyArgs    OntologyArgs   `json:"ontologyArgs,omitempty" jsonschema:"Ontology context for the operation."`
	RelationTypeKey string         `json:"relationTypeKey" jsonschema:"The relation type key, e.g. 'works_for'."`
	FromEntityID    string         `json:"fromEntityId" jsonschema:"Id of the source entity."`
	ToEntityID      string         `json:"toEntityId" jsonschema:"Id of the target entity."`
	Properties      map[string]any `json:"properties,omitempty" jsonschema:"Property values keyed by property key."`
}

// ListRelationsArgs represents the arguments for the list_relations tool
type ListRelationsArgs struct {
	OntologyArgs    OntologyArgs      `json:"ontologyArgs,omitempty" jsonschema:"Ontology context for the operation."`
	RelationTypeKey string            `json:"relationTypeKey" jsonschema:"The relation type key to list instances of."`
	FromEntityID    string            `json:"fromEntityId,omitempty" jsonschema:"Only relations starting at this entity."`
	ToEntityID      string            `json:"toEntityId,omitempty" jsonschema:"Only relations ending at this entity."`
	Limit           int               `json:"limit,omitempty" jsonschema:"Maximum number of items to return (1-200, default 50)."`
	Offset          int               `json:"offset,omitempty" jsonschema:"Number of items to skip."`
	Sort            string            `json:"sort,omitempty" jsonschema:"Sort field: a property key or createdAt/updatedAt."`
	Order           string            `json:"order,omitempty" jsonschema:"Sort order: asc or desc."`
	Filters         map[string]string `json:"filters,omitempty" jsonschema:"Property filters, keys may carry a __gt/__gte/__lt/__lte/__contains suffix."`
}

// GetRelationArgs represents the arguments for the get_relation tool
type GetRelationArgs struct {
	OntologyArgs    OntologyArgs `json:"ontologyArgs,omitempty" jsonschema:"Ontology context for the operation."`
	RelationTypeKey string       `json:"relationTypeKey" jsonschema:"The relation type key."`
	ID              string       `json:"id" jsonschema:"The relation id."`
}

// UpdateRelationArgs represents the arguments for the update_relation tool
type UpdateRelationArgs struct {
	OntologyArgs    OntologyArgs   `json:"ontologyArgs,omitempty" jsonschema:"Ontology context for the operation."`
	RelationTypeKey string         `json:"relationTypeKey" jsonschema:"The relation type key."`
	ID              string         `json:"id" jsonschema:"The relation id."`
	Properties      map[string]any `json:"properties,omitempty" jsonschema:"Partial property updates; null removes a property."`
}

// DeleteRelationArgs represents the arguments for the delete_relation tool
type DeleteRelationArgs struct {
	OntologyArgs    OntologyArgs `json:"ontologyArgs,omitempty" jsonschema:"Ontology context for the operation."`
	RelationTypeKey string       `json:"relationTypeKey" jsonschema:"The relation type key."`
	ID              string       `json:"id" jsonschema:"The relation id to delete."`
}

// GetNeighborsArgs represents the arguments for the get_neighbors tool
type GetNeighborsArgs struct {
	OntologyArgs    OntologyArgs `json:"ontologyArgs,omitempty" jsonschema:"Ontology context for the operation."`
	EntityTypeKey   string       `json:"entityTypeKey" jsonschema:"Entity type key of the center entity."`
	ID              string       `json:"id" jsonschema:"Id of the center entity."`
	Direction       string       `json:"direction,omitempty" jsonschema:"Which edges to follow: outgoing|incoming|both (default both)."`
	RelationTypeKey string       `json:"relationTypeKey,omitempty" jsonschema:"Restrict traversal to one relation type."`
	Limit           int          `json:"limit,omitempty" jsonschema:"Maximum number of neighbors (1-200, default 50)."`
	Fields          []string     `json:"fields,omitempty" jsonschema:"Property keys to keep on neighbor entities."`
	RelationFields  []string     `json:"relationFields,omitempty" jsonschema:"Property keys to keep on connecting relations."`
}

// SemanticSearchArgs represents the arguments for the semantic_search tool
type SemanticSearchArgs struct {
	OntologyArgs  OntologyArgs      `json:"ontologyArgs,omitempty" jsonschema:"Ontology context for the operation."`
	Query         string            `json:"query" jsonschema:"Natural language query to embed and match."`
	EntityTypeKey string            `json:"entityTypeKey,omitempty" jsonschema:"Restrict search to one entity type; otherwise all types are searched."`
	Limit         int               `json:"limit,omitempty" jsonschema:"Maximum number of results (1-100, default 10)."`
	MinScore      float64           `json:"minScore,omitempty" jsonschema:"Drop results scoring below this similarity (0-1)."`
	Filters       map[string]string `json:"filters,omitempty" jsonschema:"Property filters applied to candidates."`
	Fields        []string          `json:"fields,omitempty" jsonschema:"Property keys to keep on result entities."`
}

// WipeDataArgs represents the arguments for the wipe_data tool
type WipeDataArgs struct {
	OntologyArgs OntologyArgs `json:"ontologyArgs,omitempty" jsonschema:"Ontology context for the operation."`
	Confirm      bool         `json:"confirm" jsonschema:"Must be true; wipes every entity and relation instance."`
}

// Health
type HealthArgs struct{}

type HealthResult struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	Revision      string `json:"revision"`
	BuildDate     string `json:"buildDate"`
	MultiOntology bool   `json:"multiOntology"`
	EmbeddingDims int    `json:"embeddingDims"`
}
