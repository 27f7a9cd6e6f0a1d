// Package ontoruntime provides a library-first API for the ontology
// instance engine without any transport: embed it to provision schemas
// and work with typed instances directly.
package ontoruntime

import (
	"context"
	"log/slog"

	"github.com/ontoforge/ontoforge-go/internal/apptype"
	"github.com/ontoforge/ontoforge-go/internal/database"
	"github.com/ontoforge/ontoforge-go/internal/embeddings"
	"github.com/ontoforge/ontoforge-go/internal/runtime"
)

// Re-exported parameter types.
type (
	ListParams     = runtime.ListParams
	NeighborParams = runtime.NeighborParams
	SearchParams   = runtime.SearchParams
)

// Service provides engine operations for embedding in other programs.
type Service struct {
	db  *database.DBManager
	svc *runtime.Service
}

// NewService constructs a Service with the provided config. The
// embeddings provider is taken from the environment; pass a logger or
// nil for the default.
func NewService(cfg *Config, log *slog.Logger) (*Service, error) {
	dm, err := database.NewDBManager(cfg.toInternal())
	if err != nil {
		return nil, err
	}
	svc := runtime.NewService(dm, embeddings.NewFromEnv(), log)
	return &Service{db: dm, svc: svc}, nil
}

// Close releases resources.
func (s *Service) Close() error { return s.db.Close() }

// Schema returns the provisioned schema for an ontology.
func (s *Service) Schema(ctx context.Context, ontologyKey string) (*apptype.SchemaSnapshot, error) {
	return s.svc.Schema(ctx, ontologyKey)
}

// Provision imports a schema document.
func (s *Service) Provision(ctx context.Context, ontologyKey string, doc *apptype.SchemaDocument) (*apptype.ProvisionResult, error) {
	return s.svc.Provision(ctx, ontologyKey, doc)
}

// CreateEntity stores a new entity instance.
func (s *Service) CreateEntity(ctx context.Context, ontologyKey, entityTypeKey string, properties map[string]any) (apptype.Instance, error) {
	return s.svc.CreateEntity(ctx, ontologyKey, entityTypeKey, properties)
}

// GetEntity fetches one entity by id.
func (s *Service) GetEntity(ctx context.Context, ontologyKey, entityTypeKey, id string, fields []string) (apptype.Instance, error) {
	return s.svc.GetEntity(ctx, ontologyKey, entityTypeKey, id, fields)
}

// ListEntities returns a filtered page of one entity type.
func (s *Service) ListEntities(ctx context.Context, ontologyKey, entityTypeKey string, params ListParams) (*apptype.Page, error) {
	return s.svc.ListEntities(ctx, ontologyKey, entityTypeKey, params)
}

// UpdateEntity applies a partial update to an entity.
func (s *Service) UpdateEntity(ctx context.Context, ontologyKey, entityTypeKey, id string, properties map[string]any) (apptype.Instance, error) {
	return s.svc.UpdateEntity(ctx, ontologyKey, entityTypeKey, id, properties)
}

// DeleteEntity removes an entity and its relations.
func (s *Service) DeleteEntity(ctx context.Context, ontologyKey, entityTypeKey, id string) (*apptype.DeleteEntityResult, error) {
	return s.svc.DeleteEntity(ctx, ontologyKey, entityTypeKey, id)
}

// CreateRelation stores a new relation instance.
func (s *Service) CreateRelation(ctx context.Context, ontologyKey, relationTypeKey, fromID, toID string, properties map[string]any) (apptype.Instance, error) {
	return s.svc.CreateRelation(ctx, ontologyKey, relationTypeKey, fromID, toID, properties)
}

// GetRelation fetches one relation by id.
func (s *Service) GetRelation(ctx context.Context, ontologyKey, relationTypeKey, id string, fields []string) (apptype.Instance, error) {
	return s.svc.GetRelation(ctx, ontologyKey, relationTypeKey, id, fields)
}

// ListRelations returns a filtered page of one relation type.
func (s *Service) ListRelations(ctx context.Context, ontologyKey, relationTypeKey string, params ListParams) (*apptype.Page, error) {
	return s.svc.ListRelations(ctx, ontologyKey, relationTypeKey, params)
}

// UpdateRelation applies a partial update to a relation's properties.
func (s *Service) UpdateRelation(ctx context.Context, ontologyKey, relationTypeKey, id string, properties map[string]any) (apptype.Instance, error) {
	return s.svc.UpdateRelation(ctx, ontologyKey, relationTypeKey, id, properties)
}

// DeleteRelation removes one relation.
func (s *Service) DeleteRelation(ctx context.Context, ontologyKey, relationTypeKey, id string) error {
	return s.svc.DeleteRelation(ctx, ontologyKey, relationTypeKey, id)
}

// Neighbors returns an entity's 1-hop neighborhood.
func (s *Service) Neighbors(ctx context.Context, ontologyKey, entityTypeKey, id string, params NeighborParams) (*apptype.Neighborhood, error) {
	return s.svc.Neighbors(ctx, ontologyKey, entityTypeKey, id, params)
}

// SemanticSearch searches entities by embedded meaning.
func (s *Service) SemanticSearch(ctx context.Context, ontologyKey string, params SearchParams) (*apptype.SearchResult, error) {
	return s.svc.SemanticSearch(ctx, ontologyKey, params)
}

// Wipe deletes all instance data in an ontology, keeping the schema.
func (s *Service) Wipe(ctx context.Context, ontologyKey string, confirm bool) (*apptype.WipeResult, error) {
	return s.svc.Wipe(ctx, ontologyKey, confirm)
}
