package database

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ontoforge/ontoforge-go/internal/apperror"
	"github.com/ontoforge/ontoforge-go/internal/apptype"
	"github.com/ontoforge/ontoforge-go/internal/schema"
)

const testOntology = "library"

// libraryDoc is the schema most tests provision: books written by authors.
func libraryDoc() *apptype.SchemaDocument {
	return &apptype.SchemaDocument{
		Ontology: apptype.OntologySpec{Key: testOntology, Name: "Library"},
		EntityTypes: []apptype.EntityTypeSpec{
			{
				Key: "book",
				Properties: []apptype.PropertySpec{
					{Key: "title", Type: "string", Required: true},
					{Key: "pages", Type: "integer"},
					{Key: "rating", Type: "float"},
					{Key: "available", Type: "boolean", Default: true},
					{Key: "published", Type: "date"},
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
				Key:    "cites",
				Source: "book",
				Target: "book",
			},
		},
	}
}

// setupTestDB provisions the library schema into a fresh in-memory database.
// Each test gets its own named database; `cache=shared` keeps the in-memory
// database alive across the pool's connections.
func setupTestDB(t *testing.T) (*DBManager, *apptype.SchemaSnapshot, func()) {
	t.Helper()
	config := NewConfig()
	config.URL = fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	config.EmbeddingDims = 4
	dm, err := NewDBManager(config)
	require.NoError(t, err)

	_, err = dm.ImportSchema(context.Background(), testOntology, libraryDoc())
	require.NoError(t, err)
	snap, err := dm.ReadFullSchema(context.Background(), testOntology)
	require.NoError(t, err)

	cleanup := func() {
		assert.NoError(t, dm.Close())
	}
	return dm, snap, cleanup
}

func mustCreateBook(t *testing.T, dm *DBManager, snap *apptype.SchemaSnapshot, values map[string]any) apptype.Instance {
	t.Helper()
	def, ok := snap.EntityType("book")
	require.True(t, ok)
	entity, err := dm.CreateEntity(context.Background(), testOntology, def, values, nil)
	require.NoError(t, err)
	return entity
}

func TestProvisionAndReadSchema(t *testing.T) {
	dm, snap, cleanup := setupTestDB(t)
	defer cleanup()

	assert.Equal(t, testOntology, snap.Ontology.Key)
	assert.Equal(t, "Library", snap.Ontology.Name)

	book, ok := snap.EntityType("book")
	require.True(t, ok)
	require.Len(t, book.Properties, 5)
	// Property order follows the schema document.
	assert.Equal(t, "title", book.Properties[0].Key)
	assert.True(t, book.Properties[0].Required)
	assert.Equal(t, "available", book.Properties[3].Key)
	assert.Equal(t, true, book.Properties[3].Default)

	rel, ok := snap.RelationType("written_by")
	require.True(t, ok)
	assert.Equal(t, "book", rel.SourceKey)
	assert.Equal(t, "author", rel.TargetKey)

	// The database answers only to its provisioned ontology key.
	_, err := dm.ReadFullSchema(context.Background(), "someone_else")
	assert.True(t, apperror.IsNotFound(err))
}

func TestImportSchemaRejectsBadDocuments(t *testing.T) {
	dm, _, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	// Relation endpoint referencing an unknown entity type.
	doc := libraryDoc()
	doc.RelationTypes[0].Target = "publisher"
	_, err := dm.ImportSchema(ctx, testOntology, doc)
	require.Error(t, err)
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
	assert.Contains(t, appErr.Fields["written_by.target"], "publisher")

	// Keys that fold to the same storage label collide.
	doc = libraryDoc()
	doc.EntityTypes = append(doc.EntityTypes, apptype.EntityTypeSpec{Key: "bo_ok"})
	doc.EntityTypes = append(doc.EntityTypes, apptype.EntityTypeSpec{Key: "bo_o_k"})
	_, err = dm.ImportSchema(ctx, testOntology, doc)
	assert.True(t, apperror.IsConflict(err))

	// A provisioned database refuses a different ontology key.
	_, err = dm.ImportSchema(ctx, "other_ontology", libraryDoc())
	require.Error(t, err)
}

func TestEntityCRUD(t *testing.T) {
	dm, snap, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	def := snap.EntityTypes["book"]

	created := mustCreateBook(t, dm, snap, map[string]any{
		"title":     "The Go Programming Language",
		"pages":     int64(380),
		"available": true,
	})
	id := created[apptype.KeyID].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "book", created[apptype.KeyEntityTypeKey])
	assert.NotEmpty(t, created[apptype.KeyCreatedAt])

	got, err := dm.GetEntity(ctx, testOntology, def, id)
	require.NoError(t, err)
	assert.Equal(t, "The Go Programming Language", got["title"])
	assert.Equal(t, int64(380), got["pages"])
	assert.Equal(t, true, got["available"])
	_, hasRating := got["rating"]
	assert.False(t, hasRating)

	updated, err := dm.UpdateEntity(ctx, testOntology, def, id,
		map[string]any{"rating": 4.5, "available": false}, []string{"pages"})
	require.NoError(t, err)
	assert.Equal(t, 4.5, updated["rating"])
	assert.Equal(t, false, updated["available"])
	_, hasPages := updated["pages"]
	assert.False(t, hasPages)
	assert.NotEqual(t, created[apptype.KeyUpdatedAt], updated[apptype.KeyUpdatedAt])

	_, err = dm.UpdateEntity(ctx, testOntology, def, "missing-id",
		map[string]any{"rating": 1.0}, nil)
	assert.True(t, apperror.IsNotFound(err))

	relationsDeleted, err := dm.DeleteEntity(ctx, testOntology, snap, def, id)
	require.NoError(t, err)
	assert.Equal(t, 0, relationsDeleted)

	_, err = dm.GetEntity(ctx, testOntology, def, id)
	assert.True(t, apperror.IsNotFound(err))
	_, err = dm.EntityTypeOf(ctx, testOntology, id)
	assert.True(t, apperror.IsNotFound(err))
}

func TestListEntitiesFilterAndSort(t *testing.T) {
	dm, snap, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	def := snap.EntityTypes["book"]

	titles := []string{"Alpha", "Beta", "Gamma"}
	for i, title := range titles {
		mustCreateBook(t, dm, snap, map[string]any{
			"title": title,
			"pages": int64(100 * (i + 1)),
		})
	}

	// No filters: everything, sorted by pages descending.
	page, err := dm.ListEntities(ctx, testOntology, def, nil, nil, `"pages"`, "DESC", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Items, 3)
	assert.Equal(t, "Gamma", page.Items[0]["title"])
	assert.Equal(t, "Alpha", page.Items[2]["title"])

	// Range filter built the same way the runtime layer does.
	where, args, err := schema.BuildFilterClauses("book", def.Properties, map[string]string{"pages__gte": "200"})
	require.NoError(t, err)
	page, err = dm.ListEntities(ctx, testOntology, def, where, args, schema.ColCreatedAt, "ASC", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, "Beta", page.Items[0]["title"])

	// Pagination: total counts all matches, not just the page.
	page, err = dm.ListEntities(ctx, testOntology, def, nil, nil, schema.ColCreatedAt, "ASC", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Gamma", page.Items[0]["title"])
}

func TestRelationsCRUDAndCascade(t *testing.T) {
	dm, snap, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	bookDef := snap.EntityTypes["book"]
	authorDef := snap.EntityTypes["author"]
	relDef := snap.RelationTypes["written_by"]

	book := mustCreateBook(t, dm, snap, map[string]any{"title": "Dune"})
	author, err := dm.CreateEntity(ctx, testOntology, authorDef, map[string]any{"name": "Frank Herbert"}, nil)
	require.NoError(t, err)
	bookID := book[apptype.KeyID].(string)
	authorID := author[apptype.KeyID].(string)

	rel, err := dm.CreateRelation(ctx, testOntology, relDef, bookID, authorID,
		map[string]any{"role": "primary"})
	require.NoError(t, err)
	relID := rel[apptype.KeyID].(string)
	assert.Equal(t, bookID, rel[apptype.KeyFromEntityID])
	assert.Equal(t, authorID, rel[apptype.KeyToEntityID])

	got, err := dm.GetRelation(ctx, testOntology, relDef, relID)
	require.NoError(t, err)
	assert.Equal(t, "primary", got["role"])

	updated, err := dm.UpdateRelation(ctx, testOntology, relDef, relID, nil, []string{"role"})
	require.NoError(t, err)
	_, hasRole := updated["role"]
	assert.False(t, hasRole)

	page, err := dm.ListRelations(ctx, testOntology, relDef,
		[]string{schema.ColFromID + " = ?"}, []any{bookID}, schema.ColCreatedAt, "ASC", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	// Deleting an endpoint entity cascades over its relations.
	relationsDeleted, err := dm.DeleteEntity(ctx, testOntology, snap, bookDef, bookID)
	require.NoError(t, err)
	assert.Equal(t, 1, relationsDeleted)
	_, err = dm.GetRelation(ctx, testOntology, relDef, relID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestNeighbors(t *testing.T) {
	dm, snap, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	authorDef := snap.EntityTypes["author"]
	relDef := snap.RelationTypes["written_by"]

	author, err := dm.CreateEntity(ctx, testOntology, authorDef, map[string]any{"name": "Ursula K. Le Guin"}, nil)
	require.NoError(t, err)
	authorID := author[apptype.KeyID].(string)

	bookIDs := make([]string, 0, 3)
	for _, title := range []string{"A Wizard of Earthsea", "The Dispossessed", "The Left Hand of Darkness"} {
		book := mustCreateBook(t, dm, snap, map[string]any{"title": title})
		bookID := book[apptype.KeyID].(string)
		bookIDs = append(bookIDs, bookID)
		_, err := dm.CreateRelation(ctx, testOntology, relDef, bookID, authorID, nil)
		require.NoError(t, err)
	}

	// Books written_by the author are its incoming neighbors.
	neighbors, err := dm.Neighbors(ctx, testOntology, snap, authorDef, authorID, DirectionBoth, "", 10)
	require.NoError(t, err)
	require.Len(t, neighbors, 3)
	for _, n := range neighbors {
		assert.Equal(t, DirectionIncoming, n.Relation[apptype.KeyDirection])
		assert.Equal(t, "book", n.Entity[apptype.KeyEntityTypeKey])
	}

	// The author has no outgoing edges.
	neighbors, err = dm.Neighbors(ctx, testOntology, snap, authorDef, authorID, DirectionOutgoing, "", 10)
	require.NoError(t, err)
	assert.Empty(t, neighbors)

	// From a book's side the edge is outgoing, and the limit caps the result.
	bookDef := snap.EntityTypes["book"]
	neighbors, err = dm.Neighbors(ctx, testOntology, snap, bookDef, bookIDs[0], DirectionBoth, "", 10)
	require.NoError(t, err)
	require.Len(t, neighbors, 1)
	assert.Equal(t, DirectionOutgoing, neighbors[0].Relation[apptype.KeyDirection])
	assert.Equal(t, "Ursula K. Le Guin", neighbors[0].Entity["name"])

	neighbors, err = dm.Neighbors(ctx, testOntology, snap, authorDef, authorID, DirectionBoth, "", 2)
	require.NoError(t, err)
	assert.Len(t, neighbors, 2)
}

func TestNeighborsBudgetSplit(t *testing.T) {
	dm, snap, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	bookDef := snap.EntityTypes["book"]
	citesDef := snap.RelationTypes["cites"]

	center := mustCreateBook(t, dm, snap, map[string]any{"title": "Survey"})
	centerID := center[apptype.KeyID].(string)
	for i := 0; i < 3; i++ {
		cited := mustCreateBook(t, dm, snap, map[string]any{"title": fmt.Sprintf("Cited %d", i)})
		_, err := dm.CreateRelation(ctx, testOntology, citesDef, centerID, cited[apptype.KeyID].(string), nil)
		require.NoError(t, err)
		citing := mustCreateBook(t, dm, snap, map[string]any{"title": fmt.Sprintf("Citing %d", i)})
		_, err = dm.CreateRelation(ctx, testOntology, citesDef, citing[apptype.KeyID].(string), centerID, nil)
		require.NoError(t, err)
	}

	// With both directions and a limit below the total, outgoing edges are
	// collected first and incoming edges fill whatever budget remains.
	neighbors, err := dm.Neighbors(ctx, testOntology, snap, bookDef, centerID, DirectionBoth, "", 4)
	require.NoError(t, err)
	require.Len(t, neighbors, 4)
	for i, n := range neighbors {
		want := DirectionOutgoing
		if i >= 3 {
			want = DirectionIncoming
		}
		assert.Equal(t, want, n.Relation[apptype.KeyDirection], "neighbor %d", i)
	}

	neighbors, err = dm.Neighbors(ctx, testOntology, snap, bookDef, centerID, DirectionBoth, "", 10)
	require.NoError(t, err)
	assert.Len(t, neighbors, 6)
}

func TestSemanticCandidates(t *testing.T) {
	dm, snap, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	def := snap.EntityTypes["book"]

	vectors := map[string][]float32{
		"North": {1, 0, 0, 0},
		"East":  {0, 1, 0, 0},
		"NNE":   {0.9, 0.1, 0, 0},
	}
	ids := make(map[string]string)
	for title, vec := range vectors {
		book := mustCreateBook(t, dm, snap, map[string]any{"title": title, "pages": int64(len(title))})
		id := book[apptype.KeyID].(string)
		ids[title] = id
		require.NoError(t, dm.SetEntityEmbedding(ctx, testOntology, def, id, vec))
	}
	// A book without an embedding must never appear as a candidate.
	mustCreateBook(t, dm, snap, map[string]any{"title": "Unembedded"})

	candidates, err := dm.SemanticCandidates(ctx, testOntology, def, []float32{1, 0, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, candidates, 3)
	assert.Equal(t, ids["North"], candidates[0].ID)
	assert.Equal(t, ids["NNE"], candidates[1].ID)
	assert.Equal(t, ids["East"], candidates[2].ID)
	assert.InDelta(t, 1.0, candidates[0].Score, 1e-6)
	assert.Greater(t, candidates[1].Score, candidates[2].Score)

	// Candidate filtering narrows by property, preserving nothing else.
	where, args, err := schema.BuildFilterClauses("book", def.Properties, map[string]string{"pages__gte": "4"})
	require.NoError(t, err)
	allIDs := []string{ids["North"], ids["East"], ids["NNE"]}
	surviving, err := dm.FilterCandidateIDs(ctx, testOntology, def, allIDs, where, args)
	require.NoError(t, err)
	assert.True(t, surviving[ids["North"]])
	assert.True(t, surviving[ids["East"]])
	assert.False(t, surviving[ids["NNE"]])
}

func TestWipeData(t *testing.T) {
	dm, snap, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	authorDef := snap.EntityTypes["author"]
	relDef := snap.RelationTypes["written_by"]

	book := mustCreateBook(t, dm, snap, map[string]any{"title": "Hyperion"})
	author, err := dm.CreateEntity(ctx, testOntology, authorDef, map[string]any{"name": "Dan Simmons"}, nil)
	require.NoError(t, err)
	_, err = dm.CreateRelation(ctx, testOntology, relDef,
		book[apptype.KeyID].(string), author[apptype.KeyID].(string), nil)
	require.NoError(t, err)

	result, err := dm.WipeData(ctx, testOntology, snap)
	require.NoError(t, err)
	assert.Equal(t, 2, result.EntitiesDeleted)
	assert.Equal(t, 1, result.RelationsDeleted)

	// Schema survives; data is gone.
	snap2, err := dm.ReadFullSchema(ctx, testOntology)
	require.NoError(t, err)
	assert.Len(t, snap2.EntityTypes, 2)
	page, err := dm.ListEntities(ctx, testOntology, snap.EntityTypes["book"], nil, nil, schema.ColCreatedAt, "ASC", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
}

func TestMultiOntologyIsolation(t *testing.T) {
	dir, err := os.MkdirTemp("", "ontoforge-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	config := &Config{
		OntologiesDir: dir,
		MultiOntology: true,
		EmbeddingDims: 4,
	}
	dm, err := NewDBManager(config)
	require.NoError(t, err)
	defer dm.Close()

	ctx := context.Background()
	docA := libraryDoc()
	docA.Ontology.Key = "tenant_a"
	docB := libraryDoc()
	docB.Ontology.Key = "tenant_b"
	_, err = dm.ImportSchema(ctx, "tenant_a", docA)
	require.NoError(t, err)
	_, err = dm.ImportSchema(ctx, "tenant_b", docB)
	require.NoError(t, err)

	snapA, err := dm.ReadFullSchema(ctx, "tenant_a")
	require.NoError(t, err)
	defA := snapA.EntityTypes["book"]
	entity, err := dm.CreateEntity(ctx, "tenant_a", defA, map[string]any{"title": "Only in A"}, nil)
	require.NoError(t, err)

	snapB, err := dm.ReadFullSchema(ctx, "tenant_b")
	require.NoError(t, err)
	_, err = dm.GetEntity(ctx, "tenant_b", snapB.EntityTypes["book"], entity[apptype.KeyID].(string))
	assert.True(t, apperror.IsNotFound(err))

	// Ontology keys become filesystem paths; bad keys never reach the disk.
	_, err = dm.ReadFullSchema(ctx, "../escape")
	require.Error(t, err)
}

func TestSchemaMigrationAddsColumns(t *testing.T) {
	dm, snap, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	created := mustCreateBook(t, dm, snap, map[string]any{"title": "First Edition"})

	// Re-provision with an extra property; existing rows survive.
	doc := libraryDoc()
	doc.EntityTypes[0].Properties = append(doc.EntityTypes[0].Properties,
		apptype.PropertySpec{Key: "isbn", Type: "string"})
	_, err := dm.ImportSchema(ctx, testOntology, doc)
	require.NoError(t, err)

	snap2, err := dm.ReadFullSchema(ctx, testOntology)
	require.NoError(t, err)
	def := snap2.EntityTypes["book"]
	require.Len(t, def.Properties, 6)

	got, err := dm.GetEntity(ctx, testOntology, def, created[apptype.KeyID].(string))
	require.NoError(t, err)
	assert.Equal(t, "First Edition", got["title"])

	updated, err := dm.UpdateEntity(ctx, testOntology, def, created[apptype.KeyID].(string),
		map[string]any{"isbn": "978-0441013593"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "978-0441013593", updated["isbn"])
}
