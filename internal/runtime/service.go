// Package runtime implements the instance engine: every operation the
// transports expose runs through here. The service composes the schema
// cache, the coercion and filter builders, the storage layer, and the
// embeddings provider into validated, schema-aware CRUD, traversal, and
// search.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ontoforge/ontoforge-go/internal/apperror"
	"github.com/ontoforge/ontoforge-go/internal/apptype"
	"github.com/ontoforge/ontoforge-go/internal/database"
	"github.com/ontoforge/ontoforge-go/internal/embeddings"
	"github.com/ontoforge/ontoforge-go/internal/schema"
)

// List and search pagination bounds.
const (
	defaultListLimit = 50
	maxListLimit     = 200

	defaultSearchLimit = 10
	maxSearchLimit     = 100

	defaultEmbedTimeout = 10 * time.Second
)

// Service is the ontology-driven instance engine.
type Service struct {
	db           *database.DBManager
	schemas      *schema.Cache
	embedder     embeddings.Provider
	log          *slog.Logger
	embedTimeout time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithEmbedTimeout bounds how long a single embedding call may take.
func WithEmbedTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.embedTimeout = d
		}
	}
}

// NewService wires the engine together. A nil embeddings provider is
// valid: writes skip embedding and semantic search reports a bad request.
// A provider whose dimensionality differs from the storage layer's is
// adapted by padding or truncation.
func NewService(db *database.DBManager, embedder embeddings.Provider, log *slog.Logger, opts ...Option) *Service {
	if log == nil {
		log = slog.Default()
	}
	if embedder != nil && embedder.Dimensions() != db.Config().EmbeddingDims {
		log.Warn("adapting embeddings provider dimensionality",
			slog.String("provider", embedder.Name()),
			slog.Int("providerDims", embedder.Dimensions()),
			slog.Int("storageDims", db.Config().EmbeddingDims),
		)
		embedder = embeddings.WrapToDims(embedder, db.Config().EmbeddingDims)
	}
	s := &Service{
		db:           db,
		schemas:      schema.NewCache(db),
		embedder:     embedder,
		log:          log,
		embedTimeout: defaultEmbedTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EmbeddingsEnabled reports whether a provider is configured.
func (s *Service) EmbeddingsEnabled() bool {
	return s.embedder != nil
}

// Ping checks storage connectivity for an ontology.
func (s *Service) Ping(ctx context.Context, ontologyKey string) error {
	return s.db.Ping(ctx, ontologyKey)
}

// Schema returns the cached schema snapshot for an ontology.
func (s *Service) Schema(ctx context.Context, ontologyKey string) (*apptype.SchemaSnapshot, error) {
	return s.schemas.Snapshot(ctx, ontologyKey)
}

// Provision imports a schema document and refreshes the cache.
func (s *Service) Provision(ctx context.Context, ontologyKey string, doc *apptype.SchemaDocument) (*apptype.ProvisionResult, error) {
	result, err := s.db.ImportSchema(ctx, ontologyKey, doc)
	if err != nil {
		return nil, err
	}
	s.schemas.Invalidate(ontologyKey)
	s.log.Info("ontology provisioned",
		slog.String("ontologyKey", ontologyKey),
		slog.Int("entityTypes", result.EntityTypes),
		slog.Int("relationTypes", result.RelationTypes),
	)
	return result, nil
}

func (s *Service) entityType(ctx context.Context, ontologyKey, typeKey string) (*apptype.SchemaSnapshot, *apptype.EntityTypeDef, error) {
	snap, err := s.schemas.Snapshot(ctx, ontologyKey)
	if err != nil {
		return nil, nil, err
	}
	def, ok := snap.EntityType(typeKey)
	if !ok {
		return nil, nil, apperror.NewNotFound("entity type", typeKey)
	}
	return snap, def, nil
}

func (s *Service) relationType(ctx context.Context, ontologyKey, typeKey string) (*apptype.SchemaSnapshot, *apptype.RelationTypeDef, error) {
	snap, err := s.schemas.Snapshot(ctx, ontologyKey)
	if err != nil {
		return nil, nil, err
	}
	def, ok := snap.RelationType(typeKey)
	if !ok {
		return nil, nil, apperror.NewNotFound("relation type", typeKey)
	}
	return snap, def, nil
}

// embedEntity computes the embedding for an entity's text representation.
// Embedding failure never fails a write: the entity is stored without a
// vector and a warning is logged.
func (s *Service) embedEntity(ctx context.Context, def *apptype.EntityTypeDef, values map[string]any) []float32 {
	if s.embedder == nil {
		return nil
	}
	text := schema.BuildTextRepr(s.log, def.Key, def.Properties, values)
	ctx, cancel := context.WithTimeout(ctx, s.embedTimeout)
	defer cancel()
	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil || len(vectors) != 1 {
		s.log.Warn("embedding failed, storing entity without vector",
			slog.String("entityTypeKey", def.Key),
			slog.Any("error", err),
		)
		return nil
	}
	return vectors[0]
}

// CreateEntity validates, coerces, embeds, and stores a new entity.
func (s *Service) CreateEntity(ctx context.Context, ontologyKey, entityTypeKey string, properties map[string]any) (apptype.Instance, error) {
	_, def, err := s.entityType(ctx, ontologyKey, entityTypeKey)
	if err != nil {
		return nil, err
	}
	coerced, err := schema.ValidateProperties(def.Key, def.Properties, properties, false)
	if err != nil {
		return nil, err
	}
	embedding := s.embedEntity(ctx, def, coerced.Values)
	return s.db.CreateEntity(ctx, ontologyKey, def, coerced.Values, embedding)
}

// GetEntity fetches one entity, optionally projected to a field subset.
func (s *Service) GetEntity(ctx context.Context, ontologyKey, entityTypeKey, id string, fields []string) (apptype.Instance, error) {
	_, def, err := s.entityType(ctx, ontologyKey, entityTypeKey)
	if err != nil {
		return nil, err
	}
	entity, err := s.db.GetEntity(ctx, ontologyKey, def, id)
	if err != nil {
		return nil, err
	}
	return projectEntity(def, entity, fields)
}

// ListParams carries list query options shared by entities and relations.
type ListParams struct {
	Limit   int
	Offset  int
	Sort    string
	Order   string
	Query   string
	Filters map[string]string
	Fields  []string

	// Relation lists only: narrow by endpoint.
	FromID string
	ToID   string
}

// ListEntities returns a filtered, sorted page of one entity type.
func (s *Service) ListEntities(ctx context.Context, ontologyKey, entityTypeKey string, params ListParams) (*apptype.Page, error) {
	_, def, err := s.entityType(ctx, ontologyKey, entityTypeKey)
	if err != nil {
		return nil, err
	}

	limit := clampLimit(params.Limit, defaultListLimit, maxListLimit)
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}
	orderCol, orderDir, err := resolveSort(def.Key, def.Properties, params.Sort, params.Order)
	if err != nil {
		return nil, err
	}
	where, args, err := schema.BuildFilterClauses(def.Key, def.Properties, params.Filters)
	if err != nil {
		return nil, err
	}
	if params.Query != "" {
		clause, queryArgs := schema.BuildTextQueryClause(def.Properties, params.Query)
		where = append(where, clause)
		args = append(args, queryArgs...)
	}

	page, err := s.db.ListEntities(ctx, ontologyKey, def, where, args, orderCol, orderDir, limit, offset)
	if err != nil {
		return nil, err
	}
	if page.Items, err = projectEntities(def, page.Items, params.Fields); err != nil {
		return nil, err
	}
	return page, nil
}

// UpdateEntity applies a partial update. Nil values remove optional
// properties. The embedding is recomputed when any string-typed property
// changed.
func (s *Service) UpdateEntity(ctx context.Context, ontologyKey, entityTypeKey, id string, properties map[string]any) (apptype.Instance, error) {
	_, def, err := s.entityType(ctx, ontologyKey, entityTypeKey)
	if err != nil {
		return nil, err
	}
	coerced, err := schema.ValidateProperties(def.Key, def.Properties, properties, true)
	if err != nil {
		return nil, err
	}
	if len(coerced.Values) == 0 && len(coerced.Removals) == 0 {
		// Empty patch: return the current row untouched.
		return s.db.GetEntity(ctx, ontologyKey, def, id)
	}

	entity, err := s.db.UpdateEntity(ctx, ontologyKey, def, id, coerced.Values, coerced.Removals)
	if err != nil {
		return nil, err
	}

	if s.embedder != nil && touchesStringProperty(def, coerced) {
		if embedding := s.embedEntity(ctx, def, entity); embedding != nil {
			if err := s.db.SetEntityEmbedding(ctx, ontologyKey, def, id, embedding); err != nil {
				s.log.Warn("failed to refresh embedding after update",
					slog.String("entityTypeKey", def.Key),
					slog.String("id", id),
					slog.Any("error", err),
				)
			}
		}
	}
	return entity, nil
}

// touchesStringProperty reports whether a coerced patch changes any
// string-typed property, which is what the text representation is built
// from.
func touchesStringProperty(def *apptype.EntityTypeDef, coerced *schema.Coerced) bool {
	for _, p := range def.Properties {
		if p.Type != apptype.TypeString {
			continue
		}
		if _, ok := coerced.Values[p.Key]; ok {
			return true
		}
	}
	for _, key := range coerced.Removals {
		if p, ok := def.Property(key); ok && p.Type == apptype.TypeString {
			return true
		}
	}
	return false
}

// DeleteEntity removes an entity and cascades over its relations.
func (s *Service) DeleteEntity(ctx context.Context, ontologyKey, entityTypeKey, id string) (*apptype.DeleteEntityResult, error) {
	snap, def, err := s.entityType(ctx, ontologyKey, entityTypeKey)
	if err != nil {
		return nil, err
	}
	relationsDeleted, err := s.db.DeleteEntity(ctx, ontologyKey, snap, def, id)
	if err != nil {
		return nil, err
	}
	return &apptype.DeleteEntityResult{ID: id, RelationsDeleted: relationsDeleted}, nil
}

// CreateRelation validates and stores a new relation between two entities.
// Endpoint problems (missing entity, wrong entity type) are reported as
// field errors alongside property errors, all in one Validation response.
func (s *Service) CreateRelation(ctx context.Context, ontologyKey, relationTypeKey, fromID, toID string, properties map[string]any) (apptype.Instance, error) {
	_, def, err := s.relationType(ctx, ontologyKey, relationTypeKey)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]string)
	coerced, err := schema.ValidateProperties(def.Key, def.Properties, properties, false)
	if err != nil {
		ae, ok := apperror.As(err)
		if !ok || ae.Code != apperror.CodeValidation {
			return nil, err
		}
		for key, msg := range ae.Fields {
			fields[key] = msg
		}
	}
	if err := s.checkEndpoint(ctx, ontologyKey, apptype.KeyFromEntityID, "Source", fromID, def.SourceKey, def.Key, fields); err != nil {
		return nil, err
	}
	if err := s.checkEndpoint(ctx, ontologyKey, apptype.KeyToEntityID, "Target", toID, def.TargetKey, def.Key, fields); err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		return nil, apperror.NewValidation(
			fmt.Sprintf("Invalid relation for type '%s'", def.Key), fields)
	}
	return s.db.CreateRelation(ctx, ontologyKey, def, fromID, toID, coerced.Values)
}

// checkEndpoint records a field error when a relation endpoint is missing,
// unknown, or of the wrong entity type. Storage failures propagate.
func (s *Service) checkEndpoint(ctx context.Context, ontologyKey, fieldKey, role, id, wantTypeKey, relationTypeKey string, fields map[string]string) error {
	if id == "" {
		fields[fieldKey] = "Required"
		return nil
	}
	gotTypeKey, err := s.db.EntityTypeOf(ctx, ontologyKey, id)
	if err != nil {
		if apperror.IsNotFound(err) {
			fields[fieldKey] = fmt.Sprintf("%s entity '%s' not found", role, id)
			return nil
		}
		return err
	}
	if gotTypeKey != wantTypeKey {
		fields[fieldKey] = fmt.Sprintf("entity is of type '%s', relation '%s' requires %s type '%s'",
			gotTypeKey, relationTypeKey, strings.ToLower(role), wantTypeKey)
	}
	return nil
}

// GetRelation fetches one relation, optionally projected.
func (s *Service) GetRelation(ctx context.Context, ontologyKey, relationTypeKey, id string, fields []string) (apptype.Instance, error) {
	_, def, err := s.relationType(ctx, ontologyKey, relationTypeKey)
	if err != nil {
		return nil, err
	}
	relation, err := s.db.GetRelation(ctx, ontologyKey, def, id)
	if err != nil {
		return nil, err
	}
	return projectRelation(def, relation, fields)
}

// ListRelations returns a filtered, sorted page of one relation type.
func (s *Service) ListRelations(ctx context.Context, ontologyKey, relationTypeKey string, params ListParams) (*apptype.Page, error) {
	_, def, err := s.relationType(ctx, ontologyKey, relationTypeKey)
	if err != nil {
		return nil, err
	}

	limit := clampLimit(params.Limit, defaultListLimit, maxListLimit)
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}
	orderCol, orderDir, err := resolveSort(def.Key, def.Properties, params.Sort, params.Order)
	if err != nil {
		return nil, err
	}
	where, args, err := schema.BuildFilterClauses(def.Key, def.Properties, params.Filters)
	if err != nil {
		return nil, err
	}
	if params.FromID != "" {
		where = append(where, schema.ColFromID+" = ?")
		args = append(args, params.FromID)
	}
	if params.ToID != "" {
		where = append(where, schema.ColToID+" = ?")
		args = append(args, params.ToID)
	}

	page, err := s.db.ListRelations(ctx, ontologyKey, def, where, args, orderCol, orderDir, limit, offset)
	if err != nil {
		return nil, err
	}
	if page.Items, err = projectRelations(def, page.Items, params.Fields); err != nil {
		return nil, err
	}
	return page, nil
}

// UpdateRelation applies a partial update to a relation's properties.
func (s *Service) UpdateRelation(ctx context.Context, ontologyKey, relationTypeKey, id string, properties map[string]any) (apptype.Instance, error) {
	_, def, err := s.relationType(ctx, ontologyKey, relationTypeKey)
	if err != nil {
		return nil, err
	}
	coerced, err := schema.ValidateProperties(def.Key, def.Properties, properties, true)
	if err != nil {
		return nil, err
	}
	if len(coerced.Values) == 0 && len(coerced.Removals) == 0 {
		return s.db.GetRelation(ctx, ontologyKey, def, id)
	}
	return s.db.UpdateRelation(ctx, ontologyKey, def, id, coerced.Values, coerced.Removals)
}

// DeleteRelation removes one relation.
func (s *Service) DeleteRelation(ctx context.Context, ontologyKey, relationTypeKey, id string) error {
	_, def, err := s.relationType(ctx, ontologyKey, relationTypeKey)
	if err != nil {
		return err
	}
	return s.db.DeleteRelation(ctx, ontologyKey, def, id)
}

// NeighborParams carries 1-hop traversal options.
type NeighborParams struct {
	Direction       string
	RelationTypeKey string
	Limit           int
	Fields          []string
	RelationFields  []string
}

// Neighbors fetches the center entity and its 1-hop neighborhood.
func (s *Service) Neighbors(ctx context.Context, ontologyKey, entityTypeKey, id string, params NeighborParams) (*apptype.Neighborhood, error) {
	snap, def, err := s.entityType(ctx, ontologyKey, entityTypeKey)
	if err != nil {
		return nil, err
	}

	direction := params.Direction
	if direction == "" {
		direction = database.DirectionBoth
	}
	switch direction {
	case database.DirectionOutgoing, database.DirectionIncoming, database.DirectionBoth:
	default:
		return nil, apperror.NewValidation(
			fmt.Sprintf("Invalid direction '%s'", params.Direction),
			map[string]string{"direction": "must be 'outgoing', 'incoming', or 'both'"})
	}
	if params.RelationTypeKey != "" {
		if _, ok := snap.RelationType(params.RelationTypeKey); !ok {
			return nil, apperror.NewNotFound("relation type", params.RelationTypeKey)
		}
	}
	limit := clampLimit(params.Limit, defaultListLimit, maxListLimit)

	center, err := s.db.GetEntity(ctx, ontologyKey, def, id)
	if err != nil {
		return nil, err
	}
	neighbors, err := s.db.Neighbors(ctx, ontologyKey, snap, def, id, direction, params.RelationTypeKey, limit)
	if err != nil {
		return nil, err
	}

	for i := range neighbors {
		farDef, ok := snap.EntityType(neighbors[i].Entity[apptype.KeyEntityTypeKey].(string))
		if !ok {
			continue
		}
		if neighbors[i].Entity, err = projectNeighborEntity(farDef, neighbors[i].Entity, params.Fields); err != nil {
			return nil, err
		}
		relDef, ok := snap.RelationType(neighbors[i].Relation[apptype.KeyRelationTypeKey].(string))
		if !ok {
			continue
		}
		if neighbors[i].Relation, err = projectRelation(relDef, neighbors[i].Relation, params.RelationFields); err != nil {
			return nil, err
		}
	}
	if center, err = projectEntity(def, center, params.Fields); err != nil {
		return nil, err
	}
	return &apptype.Neighborhood{Entity: center, Neighbors: neighbors}, nil
}

// Wipe deletes all instance data in an ontology. Requires confirm.
func (s *Service) Wipe(ctx context.Context, ontologyKey string, confirm bool) (*apptype.WipeResult, error) {
	if !confirm {
		return nil, apperror.NewBadRequest("wipe requires confirm=true")
	}
	snap, err := s.schemas.Snapshot(ctx, ontologyKey)
	if err != nil {
		return nil, err
	}
	result, err := s.db.WipeData(ctx, ontologyKey, snap)
	if err != nil {
		return nil, err
	}
	s.log.Info("ontology data wiped",
		slog.String("ontologyKey", ontologyKey),
		slog.Int("entitiesDeleted", result.EntitiesDeleted),
		slog.Int("relationsDeleted", result.RelationsDeleted),
	)
	return result, nil
}

// clampLimit applies default and upper bounds to a requested page size.
func clampLimit(requested, def, max int) int {
	if requested <= 0 {
		return def
	}
	if requested > max {
		return max
	}
	return requested
}

// resolveSort maps the public sort field and order to storage column and
// direction, defaulting to newest first.
func resolveSort(typeKey string, defs []apptype.PropertyDef, sortField, order string) (string, string, error) {
	if sortField == "" {
		sortField = "createdAt"
		if order == "" {
			order = "desc"
		}
	}
	col, err := schema.SortColumn(typeKey, defs, sortField)
	if err != nil {
		return "", "", err
	}
	dir, err := schema.NormalizeOrder(order)
	if err != nil {
		return "", "", err
	}
	return col, dir, nil
}
