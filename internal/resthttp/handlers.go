package resthttp

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ontoforge/ontoforge-go/internal/apperror"
	"github.com/ontoforge/ontoforge-go/internal/apptype"
	"github.com/ontoforge/ontoforge-go/internal/buildinfo"
	"github.com/ontoforge/ontoforge-go/internal/runtime"
)

const filterParamPrefix = "filter."

func ontologyKey(c echo.Context) string {
	return c.Param("ontology")
}

// parseIntParam reads an optional integer query parameter.
func parseIntParam(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.NewBadRequest(fmt.Sprintf("invalid %s parameter: %q", name, raw))
	}
	return n, nil
}

// parseFields splits a comma-separated fields parameter.
func parseFields(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	fields := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			fields = append(fields, p)
		}
	}
	return fields
}

// parseFilters collects filter.<key>=<value> query parameters.
func parseFilters(c echo.Context) map[string]string {
	var filters map[string]string
	for name, values := range c.QueryParams() {
		if !strings.HasPrefix(name, filterParamPrefix) || len(values) == 0 {
			continue
		}
		key := strings.TrimPrefix(name, filterParamPrefix)
		if key == "" {
			continue
		}
		if filters == nil {
			filters = make(map[string]string)
		}
		filters[key] = values[0]
	}
	return filters
}

func parseListParams(c echo.Context) (runtime.ListParams, error) {
	limit, err := parseIntParam(c, "limit")
	if err != nil {
		return runtime.ListParams{}, err
	}
	offset, err := parseIntParam(c, "offset")
	if err != nil {
		return runtime.ListParams{}, err
	}
	return runtime.ListParams{
		Limit:   limit,
		Offset:  offset,
		Sort:    c.QueryParam("sort"),
		Order:   c.QueryParam("order"),
		Query:   c.QueryParam("q"),
		Filters: parseFilters(c),
		Fields:  parseFields(c.QueryParam("fields")),
		FromID:  c.QueryParam("fromEntityId"),
		ToID:    c.QueryParam("toEntityId"),
	}, nil
}

func (s *Server) handleHealthz(c echo.Context) error {
	cfg := s.db.Config()
	status := "ok"
	if !cfg.MultiOntology {
		if err := s.svc.Ping(c.Request().Context(), "default"); err != nil {
			status = "degraded"
		}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":        status,
		"name":          "ontoforge-go",
		"version":       buildinfo.Version,
		"revision":      buildinfo.Revision,
		"multiOntology": cfg.MultiOntology,
		"embeddings":    s.svc.EmbeddingsEnabled(),
	})
}

func (s *Server) handleGetSchema(c echo.Context) error {
	snap, err := s.svc.Schema(c.Request().Context(), ontologyKey(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, snap)
}

func (s *Server) handleProvision(c echo.Context) error {
	var doc apptype.SchemaDocument
	if err := c.Bind(&doc); err != nil {
		return apperror.NewBadRequest("invalid schema document body")
	}
	result, err := s.svc.Provision(c.Request().Context(), ontologyKey(c), &doc)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleCreateEntity(c echo.Context) error {
	var properties map[string]any
	if err := c.Bind(&properties); err != nil {
		return apperror.NewBadRequest("invalid entity body")
	}
	entity, err := s.svc.CreateEntity(c.Request().Context(), ontologyKey(c), c.Param("type"), properties)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, entity)
}

func (s *Server) handleListEntities(c echo.Context) error {
	params, err := parseListParams(c)
	if err != nil {
		return err
	}
	page, err := s.svc.ListEntities(c.Request().Context(), ontologyKey(c), c.Param("type"), params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

func (s *Server) handleGetEntity(c echo.Context) error {
	entity, err := s.svc.GetEntity(c.Request().Context(), ontologyKey(c), c.Param("type"), c.Param("id"),
		parseFields(c.QueryParam("fields")))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entity)
}

func (s *Server) handleUpdateEntity(c echo.Context) error {
	var properties map[string]any
	if err := c.Bind(&properties); err != nil {
		return apperror.NewBadRequest("invalid entity body")
	}
	entity, err := s.svc.UpdateEntity(c.Request().Context(), ontologyKey(c), c.Param("type"), c.Param("id"), properties)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entity)
}

func (s *Server) handleDeleteEntity(c echo.Context) error {
	result, err := s.svc.DeleteEntity(c.Request().Context(), ontologyKey(c), c.Param("type"), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleNeighbors(c echo.Context) error {
	limit, err := parseIntParam(c, "limit")
	if err != nil {
		return err
	}
	hood, err := s.svc.Neighbors(c.Request().Context(), ontologyKey(c), c.Param("type"), c.Param("id"),
		runtime.NeighborParams{
			Direction:       c.QueryParam("direction"),
			RelationTypeKey: c.QueryParam("relationType"),
			Limit:           limit,
			Fields:          parseFields(c.QueryParam("fields")),
			RelationFields:  parseFields(c.QueryParam("relationFields")),
		})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, hood)
}

func (s *Server) handleCreateRelation(c echo.Context) error {
	var body struct {
		FromEntityID string         `json:"fromEntityId"`
		ToEntityID   string         `json:"toEntityId"`
		Properties   map[string]any `json:"properties"`
	}
	if err := c.Bind(&body); err != nil {
		return apperror.NewBadRequest("invalid relation body")
	}
	relation, err := s.svc.CreateRelation(c.Request().Context(), ontologyKey(c), c.Param("type"),
		body.FromEntityID, body.ToEntityID, body.Properties)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, relation)
}

func (s *Server) handleListRelations(c echo.Context) error {
	params, err := parseListParams(c)
	if err != nil {
		return err
	}
	page, err := s.svc.ListRelations(c.Request().Context(), ontologyKey(c), c.Param("type"), params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

func (s *Server) handleGetRelation(c echo.Context) error {
	relation, err := s.svc.GetRelation(c.Request().Context(), ontologyKey(c), c.Param("type"), c.Param("id"),
		parseFields(c.QueryParam("fields")))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, relation)
}

func (s *Server) handleUpdateRelation(c echo.Context) error {
	var properties map[string]any
	if err := c.Bind(&properties); err != nil {
		return apperror.NewBadRequest("invalid relation body")
	}
	relation, err := s.svc.UpdateRelation(c.Request().Context(), ontologyKey(c), c.Param("type"), c.Param("id"), properties)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, relation)
}

func (s *Server) handleDeleteRelation(c echo.Context) error {
	if err := s.svc.DeleteRelation(c.Request().Context(), ontologyKey(c), c.Param("type"), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleSearch(c echo.Context) error {
	var body struct {
		Query         string            `json:"query"`
		EntityTypeKey string            `json:"entityTypeKey"`
		Limit         int               `json:"limit"`
		MinScore      float64           `json:"minScore"`
		Filters       map[string]string `json:"filters"`
		Fields        []string          `json:"fields"`
	}
	if err := c.Bind(&body); err != nil {
		return apperror.NewBadRequest("invalid search body")
	}
	result, err := s.svc.SemanticSearch(c.Request().Context(), ontologyKey(c), runtime.SearchParams{
		Query:         body.Query,
		EntityTypeKey: body.EntityTypeKey,
		Limit:         body.Limit,
		MinScore:      body.MinScore,
		Filters:       body.Filters,
		Fields:        body.Fields,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleWipe(c echo.Context) error {
	confirm := c.QueryParam("confirm") == "true"
	if !confirm {
		var body struct {
			Confirm bool `json:"confirm"`
		}
		if err := c.Bind(&body); err == nil {
			confirm = body.Confirm
		}
	}
	result, err := s.svc.Wipe(c.Request().Context(), ontologyKey(c), confirm)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}
