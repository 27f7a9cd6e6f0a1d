// Package server exposes the instance engine over the Model Context
// Protocol: one tool per runtime operation, with JSON schemas generated
// from the argument types.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ontoforge/ontoforge-go/internal/apperror"
	"github.com/ontoforge/ontoforge-go/internal/apptype"
	"github.com/ontoforge/ontoforge-go/internal/buildinfo"
	"github.com/ontoforge/ontoforge-go/internal/database"
	"github.com/ontoforge/ontoforge-go/internal/metrics"
	"github.com/ontoforge/ontoforge-go/internal/runtime"
)

const defaultOntology = "default"

// MCPServer handles MCP protocol communication
type MCPServer struct {
	server *mcp.Server
	svc    *runtime.Service
	db     *database.DBManager
}

// NewMCPServer creates a new MCP server
func NewMCPServer(svc *runtime.Service, db *database.DBManager) *MCPServer {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "ontoforge-go",
		Version: buildinfo.Version,
	}, nil)

	mcpServer := &MCPServer{
		server: server,
		svc:    svc,
		db:     db,
	}

	// initialize metrics from env (no-op if disabled)
	metrics.InitFromEnv()
	mcpServer.setupToolHandlers()
	return mcpServer
}

func mustSchemaFor[T any](name string) *jsonschema.Schema {
	s, err := jsonschema.For[T]()
	if err != nil {
		panic(fmt.Sprintf("failed to create schema for %s: %v", name, err))
	}
	return s
}

// setupToolHandlers registers all MCP tools
func (s *MCPServer) setupToolHandlers() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "get_schema",
		Title:        "Get Schema",
		Description:  "Return the provisioned ontology schema: entity types, relation types, and their properties.",
		InputSchema:  mustSchemaFor[apptype.GetSchemaArgs]("GetSchemaArgs"),
		OutputSchema: mustSchemaFor[apptype.SchemaSnapshot]("SchemaSnapshot"),
	}, s.handleGetSchema)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "provision_ontology",
		Title:        "Provision Ontology",
		Description:  "Provision or update an ontology from a schema document. Existing instance data is preserved; new properties become new columns.",
		InputSchema:  mustSchemaFor[apptype.ProvisionArgs]("ProvisionArgs"),
		OutputSchema: mustSchemaFor[apptype.ProvisionResult]("ProvisionResult"),
	}, s.handleProvision)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "create_entity",
		Title:       "Create Entity",
		Description: "Create an entity instance of a schema-defined type. Properties are validated and coerced against the schema.",
		InputSchema: mustSchemaFor[apptype.CreateEntityArgs]("CreateEntityArgs"),
	}, s.handleCreateEntity)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "list_entities",
		Title:        "List Entities",
		Description:  "List entity instances of one type with filters, free-text query, sorting, and pagination.",
		InputSchema:  mustSchemaFor[apptype.ListEntitiesArgs]("ListEntitiesArgs"),
		OutputSchema: mustSchemaFor[apptype.Page]("Page"),
	}, s.handleListEntities)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_entity",
		Title:       "Get Entity",
		Description: "Fetch a single entity by id.",
		InputSchema: mustSchemaFor[apptype.GetEntityArgs]("GetEntityArgs"),
	}, s.handleGetEntity)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "update_entity",
		Title:       "Update Entity",
		Description: "Partially update an entity. Null property values remove optional properties.",
		InputSchema: mustSchemaFor[apptype.UpdateEntityArgs]("UpdateEntityArgs"),
	}, s.handleUpdateEntity)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "delete_entity",
		Title:        "Delete Entity",
		Description:  "Delete an entity and every relation attached to it.",
		InputSchema:  mustSchemaFor[apptype.DeleteEntityArgs]("DeleteEntityArgs"),
		OutputSchema: mustSchemaFor[apptype.DeleteEntityResult]("DeleteEntityResult"),
	}, s.handleDeleteEntity)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "create_relation",
		Title:       "Create Relation",
		Description: "Create a typed relation between two existing entities. Endpoint types must match the relation type's source and target.",
		InputSchema: mustSchemaFor[apptype.CreateRelationArgs]("CreateRelationArgs"),
	}, s.handleCreateRelation)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "list_relations",
		Title:        "List Relations",
		Description:  "List relation instances of one type, optionally narrowed by endpoint entity ids.",
		InputSchema:  mustSchemaFor[apptype.ListRelationsArgs]("ListRelationsArgs"),
		OutputSchema: mustSchemaFor[apptype.Page]("Page (relations)"),
	}, s.handleListRelations)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_relation",
		Title:       "Get Relation",
		Description: "Fetch a single relation by id.",
		InputSchema: mustSchemaFor[apptype.GetRelationArgs]("GetRelationArgs"),
	}, s.handleGetRelation)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "update_relation",
		Title:       "Update Relation",
		Description: "Partially update a relation's properties. Endpoints are immutable.",
		InputSchema: mustSchemaFor[apptype.UpdateRelationArgs]("UpdateRelationArgs"),
	}, s.handleUpdateRelation)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "delete_relation",
		Title:       "Delete Relation",
		Description: "Delete a single relation by id.",
		InputSchema: mustSchemaFor[apptype.DeleteRelationArgs]("DeleteRelationArgs"),
	}, s.handleDeleteRelation)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "get_neighbors",
		Title:        "Get Neighbors",
		Description:  "Fetch an entity and its 1-hop neighborhood: connecting relations plus the entities on their far ends.",
		InputSchema:  mustSchemaFor[apptype.GetNeighborsArgs]("GetNeighborsArgs"),
		OutputSchema: mustSchemaFor[apptype.Neighborhood]("Neighborhood"),
	}, s.handleGetNeighbors)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "semantic_search",
		Title:        "Semantic Search",
		Description:  "Search entities by meaning: the query is embedded and matched against stored entity vectors by cosine similarity.",
		InputSchema:  mustSchemaFor[apptype.SemanticSearchArgs]("SemanticSearchArgs"),
		OutputSchema: mustSchemaFor[apptype.SearchResult]("SearchResult"),
	}, s.handleSemanticSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "wipe_data",
		Title:        "Wipe Data",
		Description:  "Delete every entity and relation instance in the ontology. The schema is preserved. Requires confirm=true.",
		InputSchema:  mustSchemaFor[apptype.WipeDataArgs]("WipeDataArgs"),
		OutputSchema: mustSchemaFor[apptype.WipeResult]("WipeResult"),
	}, s.handleWipeData)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "health_check",
		Title:        "Health Check",
		Description:  "Returns server and configuration information.",
		InputSchema:  mustSchemaFor[apptype.HealthArgs]("HealthArgs"),
		OutputSchema: mustSchemaFor[apptype.HealthResult]("HealthResult"),
	}, s.handleHealth)
}

func (s *MCPServer) getOntologyKey(provided string) string {
	if provided != "" {
		return provided
	}
	return defaultOntology
}

// toolError renders an application error for the MCP client, surfacing
// per-field validation detail in the message.
func toolError(action string, err error) error {
	if appErr, ok := apperror.As(err); ok {
		return fmt.Errorf("%s: %s", action, appErr.FieldSummary())
	}
	return fmt.Errorf("%s: %w", action, err)
}

func (s *MCPServer) handleGetSchema(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.GetSchemaArgs],
) (*mcp.CallToolResultFor[apptype.SchemaSnapshot], error) {
	done := metrics.TimeTool("get_schema")
	var success bool
	defer func() { done(success) }()
	ontologyKey := s.getOntologyKey(params.Arguments.OntologyArgs.OntologyKey)

	snap, err := s.svc.Schema(ctx, ontologyKey)
	if err != nil {
		return nil, toolError("failed to read schema", err)
	}
	success = true
	return &mcp.CallToolResultFor[apptype.SchemaSnapshot]{
		Content:           []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Schema for ontology %q", ontologyKey)}},
		StructuredContent: *snap,
	}, nil
}

func (s *MCPServer) handleProvision(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.ProvisionArgs],
) (*mcp.CallToolResultFor[apptype.ProvisionResult], error) {
	done := metrics.TimeTool("provision_ontology")
	var success bool
	defer func() { done(success) }()
	doc := params.Arguments.Schema
	ontologyKey := s.getOntologyKey(params.Arguments.OntologyArgs.OntologyKey)
	if params.Arguments.OntologyArgs.OntologyKey == "" && doc.Ontology.Key != "" {
		ontologyKey = doc.Ontology.Key
	}

	result, err := s.svc.Provision(ctx, ontologyKey, &doc)
	if err != nil {
		return nil, toolError("failed to provision ontology", err)
	}
	success = true
	return &mcp.CallToolResultFor[apptype.ProvisionResult]{
		Content: []mcp.Content{&mcp.TextContent{
			Text: fmt.Sprintf("Provisioned ontology %q: %d entity types, %d relation types, %d properties",
				result.OntologyKey, result.EntityTypes, result.RelationTypes, result.Properties),
		}},
		StructuredContent: *result,
	}, nil
}

func (s *MCPServer) handleCreateEntity(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.CreateEntityArgs],
) (*mcp.CallToolResultFor[apptype.Instance], error) {
	done := metrics.TimeTool("create_entity")
	var success bool
	defer func() { done(success) }()
	ontologyKey := s.getOntologyKey(params.Arguments.OntologyArgs.OntologyKey)

	entity, err := s.svc.CreateEntity(ctx, ontologyKey, params.Arguments.EntityTypeKey, params.Arguments.Properties)
	if err != nil {
		return nil, toolError("failed to create entity", err)
	}
	success = true
	return &mcp.CallToolResultFor[apptype.Instance]{
		Content: []mcp.Content{&mcp.TextContent{
			Text: fmt.Sprintf("Created %s %v", params.Arguments.EntityTypeKey, entity[apptype.KeyID]),
		}},
		StructuredContent: entity,
	}, nil
}

func (s *MCPServer) handleListEntities(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.ListEntitiesArgs],
) (*mcp.CallToolResultFor[apptype.Page], error) {
	done := metrics.TimeTool("list_entities")
	var success bool
	defer func() { done(success) }()
	ontologyKey := s.getOntologyKey(params.Arguments.OntologyArgs.OntologyKey)

	page, err := s.svc.ListEntities(ctx, ontologyKey, params.Arguments.EntityTypeKey, runtime.ListParams{
		Limit:   params.Arguments.Limit,
		Offset:  params.Arguments.Offset,
		Sort:    params.Arguments.Sort,
		Order:   params.Arguments.Order,
		Query:   params.Arguments.Query,
		Filters: params.Arguments.Filters,
		Fields:  params.Arguments.Fields,
	})
	if err != nil {
		return nil, toolError("failed to list entities", err)
	}
	success = true
	return &mcp.CallToolResultFor[apptype.Page]{
		Content: []mcp.Content{&mcp.TextContent{
			Text: fmt.Sprintf("Found %d %s instances (showing %d)", page.Total, params.Arguments.EntityTypeKey, len(page.Items)),
		}},
		StructuredContent: *page,
	}, nil
}

func (s *MCPServer) handleGetEntity(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.GetEntityArgs],
) (*mcp.CallToolResultFor[apptype.Instance], error) {
	done := metrics.TimeTool("get_entity")
	var success bool
	defer func() { done(success) }()
	ontologyKey := s.getOntologyKey(params.Arguments.OntologyArgs.OntologyKey)

	entity, err := s.svc.GetEntity(ctx, ontologyKey, params.Arguments.EntityTypeKey, params.Arguments.ID, params.Arguments.Fields)
	if err != nil {
		return nil, toolError("failed to get entity", err)
	}
	success = true
	return &mcp.CallToolResultFor[apptype.Instance]{
		Content:           []mcp.Content{&mcp.TextContent{Text: "Entity fetched"}},
		StructuredContent: entity,
	}, nil
}

func (s *MCPServer) handleUpdateEntity(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.UpdateEntityArgs],
) (*mcp.CallToolResultFor[apptype.Instance], error) {
	done := metrics.TimeTool("update_entity")
	var success bool
	defer func() { done(success) }()
	ontologyKey := s.getOntologyKey(params.Arguments.OntologyArgs.OntologyKey)

	entity, err := s.svc.UpdateEntity(ctx, ontologyKey, params.Arguments.EntityTypeKey, params.Arguments.ID, params.Arguments.Properties)
	if err != nil {
		return nil, toolError("failed to update entity", err)
	}
	success = true
	return &mcp.CallToolResultFor[apptype.Instance]{
		Content: []mcp.Content{&mcp.TextContent{
			Text: fmt.Sprintf("Updated %s %s", params.Arguments.EntityTypeKey, params.Arguments.ID),
		}},
		StructuredContent: entity,
	}, nil
}

func (s *MCPServer) handleDeleteEntity(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.DeleteEntityArgs],
) (*mcp.CallToolResultFor[apptype.DeleteEntityResult], error) {
	done := metrics.TimeTool("delete_entity")
	var success bool
	defer func() { done(success) }()
	ontologyKey := s.getOntologyKey(params.Arguments.OntologyArgs.OntologyKey)

	result, err := s.svc.DeleteEntity(ctx, ontologyKey, params.Arguments.EntityTypeKey, params.Arguments.ID)
	if err != nil {
		return nil, toolError("failed to delete entity", err)
	}
	success = true
	return &mcp.CallToolResultFor[apptype.DeleteEntityResult]{
		Content: []mcp.Content{&mcp.TextContent{
			Text: fmt.Sprintf("Deleted %s %s and %d connected relations",
				params.Arguments.EntityTypeKey, result.ID, result.RelationsDeleted),
		}},
		StructuredContent: *result,
	}, nil
}

func (s *MCPServer) handleCreateRelation(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.CreateRelationArgs],
) (*mcp.CallToolResultFor[apptype.Instance], error) {
	done := metrics.TimeTool("create_relation")
	var success bool
	defer func() { done(success) }()
	ontologyKey := s.getOntologyKey(params.Arguments.OntologyArgs.OntologyKey)

	relation, err := s.svc.CreateRelation(ctx, ontologyKey, params.Arguments.RelationTypeKey,
		params.Arguments.FromEntityID, params.Arguments.ToEntityID, params.Arguments.Properties)
	if err != nil {
		return nil, toolError("failed to create relation", err)
	}
	success = true
	return &mcp.CallToolResultFor[apptype.Instance]{
		Content: []mcp.Content{&mcp.TextContent{
			Text: fmt.Sprintf("Created %s: %s -> %s", params.Arguments.RelationTypeKey,
				params.Arguments.FromEntityID, params.Arguments.ToEntityID),
		}},
		StructuredContent: relation,
	}, nil
}

func (s *MCPServer) handleListRelations(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.ListRelationsArgs],
) (*mcp.CallToolResultFor[apptype.Page], error) {
	done := metrics.TimeTool("list_relations")
	var success bool
	defer func() { done(success) }()
	ontologyKey := s.getOntologyKey(params.Arguments.OntologyArgs.OntologyKey)

	page, err := s.svc.ListRelations(ctx, ontologyKey, params.Arguments.RelationTypeKey, runtime.ListParams{
		Limit:   params.Arguments.Limit,
		Offset:  params.Arguments.Offset,
		Sort:    params.Arguments.Sort,
		Order:   params.Arguments.Order,
		Filters: params.Arguments.Filters,
		FromID:  params.Arguments.FromEntityID,
		ToID:    params.Arguments.ToEntityID,
	})
	if err != nil {
		return nil, toolError("failed to list relations", err)
	}
	success = true
	return &mcp.CallToolResultFor[apptype.Page]{
		Content: []mcp.Content{&mcp.TextContent{
			Text: fmt.Sprintf("Found %d %s instances (showing %d)", page.Total, params.Arguments.RelationTypeKey, len(page.Items)),
		}},
		StructuredContent: *page,
	}, nil
}

func (s *MCPServer) handleGetRelation(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.GetRelationArgs],
) (*mcp.CallToolResultFor[apptype.Instance], error) {
	done := metrics.TimeTool("get_relation")
	var success bool
	defer func() { done(success) }()
	ontologyKey := s.getOntologyKey(params.Arguments.OntologyArgs.OntologyKey)

	relation, err := s.svc.GetRelation(ctx, ontologyKey, params.Arguments.RelationTypeKey, params.Arguments.ID, nil)
	if err != nil {
		return nil, toolError("failed to get relation", err)
	}
	success = true
	return &mcp.CallToolResultFor[apptype.Instance]{
		Content:           []mcp.Content{&mcp.TextContent{Text: "Relation fetched"}},
		StructuredContent: relation,
	}, nil
}

func (s *MCPServer) handleUpdateRelation(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.UpdateRelationArgs],
) (*mcp.CallToolResultFor[apptype.Instance], error) {
	done := metrics.TimeTool("update_relation")
	var success bool
	defer func() { done(success) }()
	ontologyKey := s.getOntologyKey(params.Arguments.OntologyArgs.OntologyKey)

	relation, err := s.svc.UpdateRelation(ctx, ontologyKey, params.Arguments.RelationTypeKey, params.Arguments.ID, params.Arguments.Properties)
	if err != nil {
		return nil, toolError("failed to update relation", err)
	}
	success = true
	return &mcp.CallToolResultFor[apptype.Instance]{
		Content: []mcp.Content{&mcp.TextContent{
			Text: fmt.Sprintf("Updated %s %s", params.Arguments.RelationTypeKey, params.Arguments.ID),
		}},
		StructuredContent: relation,
	}, nil
}

func (s *MCPServer) handleDeleteRelation(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.DeleteRelationArgs],
) (*mcp.CallToolResultFor[any], error) {
	done := metrics.TimeTool("delete_relation")
	var success bool
	defer func() { done(success) }()
	ontologyKey := s.getOntologyKey(params.Arguments.OntologyArgs.OntologyKey)

	if err := s.svc.DeleteRelation(ctx, ontologyKey, params.Arguments.RelationTypeKey, params.Arguments.ID); err != nil {
		return nil, toolError("failed to delete relation", err)
	}
	success = true
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{
			Text: fmt.Sprintf("Deleted %s %s", params.Arguments.RelationTypeKey, params.Arguments.ID),
		}},
	}, nil
}

func (s *MCPServer) handleGetNeighbors(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.GetNeighborsArgs],
) (*mcp.CallToolResultFor[apptype.Neighborhood], error) {
	done := metrics.TimeTool("get_neighbors")
	var success bool
	defer func() { done(success) }()
	ontologyKey := s.getOntologyKey(params.Arguments.OntologyArgs.OntologyKey)

	hood, err := s.svc.Neighbors(ctx, ontologyKey, params.Arguments.EntityTypeKey, params.Arguments.ID, runtime.NeighborParams{
		Direction:       params.Arguments.Direction,
		RelationTypeKey: params.Arguments.RelationTypeKey,
		Limit:           params.Arguments.Limit,
		Fields:          params.Arguments.Fields,
		RelationFields:  params.Arguments.RelationFields,
	})
	if err != nil {
		return nil, toolError("failed to get neighbors", err)
	}
	success = true
	return &mcp.CallToolResultFor[apptype.Neighborhood]{
		Content: []mcp.Content{&mcp.TextContent{
			Text: fmt.Sprintf("Found %d neighbors", len(hood.Neighbors)),
		}},
		StructuredContent: *hood,
	}, nil
}

func (s *MCPServer) handleSemanticSearch(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.SemanticSearchArgs],
) (*mcp.CallToolResultFor[apptype.SearchResult], error) {
	done := metrics.TimeTool("semantic_search")
	var success bool
	defer func() { done(success) }()
	ontologyKey := s.getOntologyKey(params.Arguments.OntologyArgs.OntologyKey)

	result, err := s.svc.SemanticSearch(ctx, ontologyKey, runtime.SearchParams{
		Query:         params.Arguments.Query,
		EntityTypeKey: params.Arguments.EntityTypeKey,
		Limit:         params.Arguments.Limit,
		MinScore:      params.Arguments.MinScore,
		Filters:       params.Arguments.Filters,
		Fields:        params.Arguments.Fields,
	})
	if err != nil {
		return nil, toolError("search failed", err)
	}
	success = true
	return &mcp.CallToolResultFor[apptype.SearchResult]{
		Content: []mcp.Content{&mcp.TextContent{
			Text: fmt.Sprintf("Found %d results", result.Total),
		}},
		StructuredContent: *result,
	}, nil
}

func (s *MCPServer) handleWipeData(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.WipeDataArgs],
) (*mcp.CallToolResultFor[apptype.WipeResult], error) {
	done := metrics.TimeTool("wipe_data")
	var success bool
	defer func() { done(success) }()
	ontologyKey := s.getOntologyKey(params.Arguments.OntologyArgs.OntologyKey)

	result, err := s.svc.Wipe(ctx, ontologyKey, params.Arguments.Confirm)
	if err != nil {
		return nil, toolError("failed to wipe data", err)
	}
	success = true
	return &mcp.CallToolResultFor[apptype.WipeResult]{
		Content: []mcp.Content{&mcp.TextContent{
			Text: fmt.Sprintf("Wiped ontology %q: %d entities, %d relations",
				result.OntologyKey, result.EntitiesDeleted, result.RelationsDeleted),
		}},
		StructuredContent: *result,
	}, nil
}

// handleHealth returns basic server health information
func (s *MCPServer) handleHealth(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.HealthArgs],
) (*mcp.CallToolResultFor[apptype.HealthResult], error) {
	done := metrics.TimeTool("health_check")
	defer func() { done(true) }()
	cfg := s.db.Config()
	// observe current pool gauges
	inUse, idle := s.db.PoolStats()
	metrics.Default().ObservePoolStats(inUse, idle)
	res := &apptype.HealthResult{
		Name:          "ontoforge-go",
		Version:       buildinfo.Version,
		Revision:      buildinfo.Revision,
		BuildDate:     buildinfo.BuildDate,
		MultiOntology: cfg.MultiOntology,
		EmbeddingDims: cfg.EmbeddingDims,
	}
	return &mcp.CallToolResultFor[apptype.HealthResult]{
		Content:           []mcp.Content{&mcp.TextContent{Text: "ok"}},
		StructuredContent: *res,
	}, nil
}

// reportPoolStats keeps the pool gauges fresh while the server runs.
func (s *MCPServer) reportPoolStats(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				inUse, idle := s.db.PoolStats()
				metrics.Default().ObservePoolStats(inUse, idle)
			}
		}
	}()
}

// Run starts the MCP server with stdio transport
func (s *MCPServer) Run(ctx context.Context) error {
	s.reportPoolStats(ctx)
	transport := mcp.NewStdioTransport()
	return s.server.Run(ctx, transport)
}

// RunSSE starts the MCP server over SSE at the given address and endpoint
func (s *MCPServer) RunSSE(ctx context.Context, addr string, endpoint string) error {
	s.reportPoolStats(ctx)
	handler := mcp.NewSSEHandler(func(r *http.Request) *mcp.Server { return s.server })
	mux := http.NewServeMux()
	mux.Handle(endpoint, handler)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("SSE MCP server listening on %s%s", addr, endpoint)
	return srv.ListenAndServe()
}
