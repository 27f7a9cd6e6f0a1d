package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ontoforge/ontoforge-go/internal/apperror"
	"github.com/ontoforge/ontoforge-go/internal/apptype"
	"github.com/ontoforge/ontoforge-go/internal/database"
)

const testOntology = "library"

// stubEmbedder maps known substrings of the embedding input to fixed
// vectors so tests control similarity exactly. A non-nil err makes every
// Embed call fail.
type stubEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (s *stubEmbedder) Name() string    { return "stub" }
func (s *stubEmbedder) Dimensions() int { return 4 }

func (s *stubEmbedder) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(inputs))
	for i, input := range inputs {
		vec := []float32{0, 0, 0, 1}
		for needle, v := range s.vectors {
			if strings.Contains(input, needle) {
				vec = v
				break
			}
		}
		out[i] = vec
	}
	return out, nil
}

func testSchemaDoc() *apptype.SchemaDocument {
	return &apptype.SchemaDocument{
		Ontology: apptype.OntologySpec{Key: testOntology, Name: "Library"},
		EntityTypes: []apptype.EntityTypeSpec{
			{
				Key: "book",
				Properties: []apptype.PropertySpec{
					{Key: "title", Type: "string", Required: true},
					{Key: "pages", Type: "integer"},
					{Key: "available", Type: "boolean", Default: true},
					{Key: "condition", Type: "string", Required: true, Default: "good"},
				},
			},
			{
				Key: "author",
				Properties: []apptype.PropertySpec{
					{Key: "name", Type: "string", Required: true},
				},
			},
		},
		RelationTypes: []apptype.RelationTypeSpec{
			{
				Key:    "written_by",
				Source: "book",
				Target: "author",
				Properties: []apptype.PropertySpec{
					{Key: "role", Type: "string"},
				},
			},
			{
				Key:    "references",
				Source: "book",
				Target: "book",
				Properties: []apptype.PropertySpec{
					{Key: "note", Type: "string"},
				},
			},
		},
	}
}

func setupService(t *testing.T, embedder *stubEmbedder) (*Service, func()) {
	t.Helper()
	config := database.NewConfig()
	config.URL = fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	config.EmbeddingDims = 4
	dm, err := database.NewDBManager(config)
	require.NoError(t, err)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	var svc *Service
	if embedder != nil {
		svc = NewService(dm, embedder, log)
	} else {
		svc = NewService(dm, nil, log)
	}
	_, err = svc.Provision(context.Background(), testOntology, testSchemaDoc())
	require.NoError(t, err)

	return svc, func() { assert.NoError(t, dm.Close()) }
}

func TestCreateEntityValidatesAndDefaults(t *testing.T) {
	svc, cleanup := setupService(t, nil)
	defer cleanup()
	ctx := context.Background()

	_, err := svc.CreateEntity(ctx, testOntology, "book", map[string]any{"pages": 100})
	require.Error(t, err)
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
	assert.Equal(t, "Required property missing", appErr.Fields["title"])

	created, err := svc.CreateEntity(ctx, testOntology, "book", map[string]any{
		"title": "Anathem",
		"pages": "937", // coercible string
	})
	require.NoError(t, err)
	assert.Equal(t, "Anathem", created["title"])
	assert.Equal(t, int64(937), created["pages"])
	assert.Equal(t, "good", created["condition"], "required default applies")
	_, hasAvailable := created["available"]
	assert.False(t, hasAvailable, "absent optional property is omitted even with a default")

	_, err = svc.CreateEntity(ctx, testOntology, "movie", map[string]any{"title": "x"})
	assert.True(t, apperror.IsNotFound(err))
}

func TestUpdateEntityPartialSemantics(t *testing.T) {
	svc, cleanup := setupService(t, nil)
	defer cleanup()
	ctx := context.Background()

	created, err := svc.CreateEntity(ctx, testOntology, "book", map[string]any{
		"title": "Blindsight",
		"pages": 384,
	})
	require.NoError(t, err)
	id := created[apptype.KeyID].(string)

	// nil removes an optional property; untouched properties survive.
	updated, err := svc.UpdateEntity(ctx, testOntology, "book", id, map[string]any{"pages": nil})
	require.NoError(t, err)
	_, hasPages := updated["pages"]
	assert.False(t, hasPages)
	assert.Equal(t, "Blindsight", updated["title"])

	// Nulling a required property is rejected.
	_, err = svc.UpdateEntity(ctx, testOntology, "book", id, map[string]any{"title": nil})
	require.Error(t, err)
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, "Cannot set required property to null", appErr.Fields["title"])

	// An empty patch is a no-op returning the current row.
	same, err := svc.UpdateEntity(ctx, testOntology, "book", id, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, updated[apptype.KeyUpdatedAt], same[apptype.KeyUpdatedAt])
}

func TestListEntitiesDefaultsAndClamps(t *testing.T) {
	svc, cleanup := setupService(t, nil)
	defer cleanup()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.CreateEntity(ctx, testOntology, "book", map[string]any{
			"title": fmt.Sprintf("Book %d", i),
			"pages": 100 * (i + 1),
		})
		require.NoError(t, err)
	}

	// Default sort is newest first.
	page, err := svc.ListEntities(ctx, testOntology, "book", ListParams{})
	require.NoError(t, err)
	assert.Equal(t, defaultListLimit, page.Limit)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, "Book 2", page.Items[0]["title"])

	// Requested limits clamp to the maximum.
	page, err = svc.ListEntities(ctx, testOntology, "book", ListParams{Limit: 100000})
	require.NoError(t, err)
	assert.Equal(t, maxListLimit, page.Limit)

	// Filters and text query combine.
	page, err = svc.ListEntities(ctx, testOntology, "book", ListParams{
		Filters: map[string]string{"pages__gte": "200"},
		Query:   "book 1",
	})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, "Book 1", page.Items[0]["title"])

	// Unknown sort field is a validation error.
	_, err = svc.ListEntities(ctx, testOntology, "book", ListParams{Sort: "publisher"})
	assert.True(t, apperror.IsValidation(err))
}

func TestFieldProjection(t *testing.T) {
	svc, cleanup := setupService(t, nil)
	defer cleanup()
	ctx := context.Background()

	created, err := svc.CreateEntity(ctx, testOntology, "book", map[string]any{
		"title": "Solaris",
		"pages": 204,
	})
	require.NoError(t, err)
	id := created[apptype.KeyID].(string)

	got, err := svc.GetEntity(ctx, testOntology, "book", id, []string{"title"})
	require.NoError(t, err)
	assert.Equal(t, "Solaris", got["title"])
	assert.Equal(t, id, got[apptype.KeyID])
	_, hasPages := got["pages"]
	assert.False(t, hasPages)
	// Only the id survives beyond the requested fields.
	_, hasCreated := got[apptype.KeyCreatedAt]
	assert.False(t, hasCreated)
	_, hasType := got[apptype.KeyEntityTypeKey]
	assert.False(t, hasType)

	_, err = svc.GetEntity(ctx, testOntology, "book", id, []string{"publisher"})
	assert.True(t, apperror.IsValidation(err))
}

func TestNeighborProjectionKeepsTypeAndDirection(t *testing.T) {
	svc, cleanup := setupService(t, nil)
	defer cleanup()
	ctx := context.Background()

	primary, err := svc.CreateEntity(ctx, testOntology, "book", map[string]any{"title": "Primary"})
	require.NoError(t, err)
	cited, err := svc.CreateEntity(ctx, testOntology, "book", map[string]any{"title": "Cited"})
	require.NoError(t, err)
	primaryID := primary[apptype.KeyID].(string)
	_, err = svc.CreateRelation(ctx, testOntology, "references",
		primaryID, cited[apptype.KeyID].(string), map[string]any{"note": "see ch. 3"})
	require.NoError(t, err)

	hood, err := svc.Neighbors(ctx, testOntology, "book", primaryID, NeighborParams{
		Fields:         []string{"title"},
		RelationFields: []string{"note"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Primary", hood.Entity["title"])
	_, hasType := hood.Entity[apptype.KeyEntityTypeKey]
	assert.False(t, hasType, "center keeps only id plus requested fields")

	require.Len(t, hood.Neighbors, 1)
	neighbor := hood.Neighbors[0]
	assert.Equal(t, "Cited", neighbor.Entity["title"])
	assert.Equal(t, "book", neighbor.Entity[apptype.KeyEntityTypeKey], "neighbor entities keep their type key")
	_, hasCreated := neighbor.Entity[apptype.KeyCreatedAt]
	assert.False(t, hasCreated)

	assert.Equal(t, "see ch. 3", neighbor.Relation["note"])
	assert.Equal(t, database.DirectionOutgoing, neighbor.Relation[apptype.KeyDirection])
	assert.Equal(t, "references", neighbor.Relation[apptype.KeyRelationTypeKey])
	_, hasFrom := neighbor.Relation[apptype.KeyFromEntityID]
	assert.False(t, hasFrom, "relation keeps only id, type key, and direction")
}

func TestRelationsAndNeighbors(t *testing.T) {
	svc, cleanup := setupService(t, nil)
	defer cleanup()
	ctx := context.Background()

	book, err := svc.CreateEntity(ctx, testOntology, "book", map[string]any{"title": "Roadside Picnic"})
	require.NoError(t, err)
	author, err := svc.CreateEntity(ctx, testOntology, "author", map[string]any{"name": "Strugatsky"})
	require.NoError(t, err)
	bookID := book[apptype.KeyID].(string)
	authorID := author[apptype.KeyID].(string)

	_, err = svc.CreateRelation(ctx, testOntology, "written_by", bookID, "", nil)
	assert.True(t, apperror.IsValidation(err))

	rel, err := svc.CreateRelation(ctx, testOntology, "written_by", bookID, authorID,
		map[string]any{"role": "author"})
	require.NoError(t, err)
	assert.Equal(t, "author", rel["role"])

	hood, err := svc.Neighbors(ctx, testOntology, "book", bookID, NeighborParams{})
	require.NoError(t, err)
	assert.Equal(t, bookID, hood.Entity[apptype.KeyID])
	require.Len(t, hood.Neighbors, 1)
	assert.Equal(t, "Strugatsky", hood.Neighbors[0].Entity["name"])
	assert.Equal(t, database.DirectionOutgoing, hood.Neighbors[0].Relation[apptype.KeyDirection])

	_, err = svc.Neighbors(ctx, testOntology, "book", bookID, NeighborParams{Direction: "sideways"})
	assert.True(t, apperror.IsValidation(err))
	_, err = svc.Neighbors(ctx, testOntology, "book", bookID, NeighborParams{RelationTypeKey: "published_by"})
	assert.True(t, apperror.IsNotFound(err))

	// Relation lists narrow by endpoint.
	page, err := svc.ListRelations(ctx, testOntology, "written_by", ListParams{FromID: bookID})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	page, err = svc.ListRelations(ctx, testOntology, "written_by", ListParams{FromID: authorID})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)

	// Deleting the book cascades over the relation.
	deleted, err := svc.DeleteEntity(ctx, testOntology, "book", bookID)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted.RelationsDeleted)
}

func TestCreateRelationAccumulatesEndpointAndPropertyErrors(t *testing.T) {
	svc, cleanup := setupService(t, nil)
	defer cleanup()
	ctx := context.Background()

	book, err := svc.CreateEntity(ctx, testOntology, "book", map[string]any{"title": "Neuromancer"})
	require.NoError(t, err)
	author, err := svc.CreateEntity(ctx, testOntology, "author", map[string]any{"name": "Gibson"})
	require.NoError(t, err)
	bookID := book[apptype.KeyID].(string)
	authorID := author[apptype.KeyID].(string)

	// Swapped endpoints plus an unknown property: every problem is reported
	// together as field errors in one validation response.
	_, err = svc.CreateRelation(ctx, testOntology, "written_by", authorID, bookID,
		map[string]any{"bogus": 1})
	require.Error(t, err)
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
	assert.Contains(t, appErr.Fields, apptype.KeyFromEntityID)
	assert.Contains(t, appErr.Fields, apptype.KeyToEntityID)
	assert.Contains(t, appErr.Fields, "bogus")

	// A missing endpoint is a field error, not a top-level not-found.
	_, err = svc.CreateRelation(ctx, testOntology, "written_by", bookID, "ghost", nil)
	require.Error(t, err)
	appErr, ok = apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
	assert.Contains(t, appErr.Fields[apptype.KeyToEntityID], "not found")

	// Valid endpoints still pass.
	_, err = svc.CreateRelation(ctx, testOntology, "written_by", bookID, authorID, nil)
	require.NoError(t, err)
}

func TestWipeRequiresConfirm(t *testing.T) {
	svc, cleanup := setupService(t, nil)
	defer cleanup()
	ctx := context.Background()

	_, err := svc.CreateEntity(ctx, testOntology, "book", map[string]any{"title": "Ubik"})
	require.NoError(t, err)

	_, err = svc.Wipe(ctx, testOntology, false)
	require.Error(t, err)
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeBadRequest, appErr.Code)

	result, err := svc.Wipe(ctx, testOntology, true)
	require.NoError(t, err)
	assert.Equal(t, 1, result.EntitiesDeleted)
}
