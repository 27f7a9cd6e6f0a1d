package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ontoforge/ontoforge-go/internal/apperror"
	"github.com/ontoforge/ontoforge-go/internal/apptype"
)

func searchEmbedder() *stubEmbedder {
	return &stubEmbedder{vectors: map[string][]float32{
		"north star":   {1, 0, 0, 0},
		"eastern wind": {0, 1, 0, 0},
		"near north":   {0.6, 0.8, 0, 0},
	}}
}

func TestSemanticSearchRanksByCosine(t *testing.T) {
	svc, cleanup := setupService(t, searchEmbedder())
	defer cleanup()
	ctx := context.Background()

	for _, title := range []string{"north star", "eastern wind", "near north"} {
		_, err := svc.CreateEntity(ctx, testOntology, "book", map[string]any{
			"title": title,
			"pages": len(title),
		})
		require.NoError(t, err)
	}

	result, err := svc.SemanticSearch(ctx, testOntology, SearchParams{
		Query:         "north star",
		EntityTypeKey: "book",
	})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(result.Results), 2)
	assert.Equal(t, "north star", result.Results[0].Entity["title"])
	assert.InDelta(t, 1.0, result.Results[0].Score, 1e-6)
	assert.Equal(t, "near north", result.Results[1].Entity["title"])
	assert.Greater(t, result.Results[0].Score, result.Results[1].Score)
	assert.Equal(t, "north star", result.Query)

	// MinScore cuts the tail.
	result, err = svc.SemanticSearch(ctx, testOntology, SearchParams{
		Query:         "north star",
		EntityTypeKey: "book",
		MinScore:      0.95,
	})
	require.NoError(t, err)
	require.Len(t, result.Results, 1)
	assert.Equal(t, "north star", result.Results[0].Entity["title"])

	// Limit truncates after ranking.
	result, err = svc.SemanticSearch(ctx, testOntology, SearchParams{
		Query:         "north star",
		EntityTypeKey: "book",
		Limit:         1,
	})
	require.NoError(t, err)
	assert.Len(t, result.Results, 1)
}

func TestSemanticSearchFanOutAndFilters(t *testing.T) {
	svc, cleanup := setupService(t, searchEmbedder())
	defer cleanup()
	ctx := context.Background()

	_, err := svc.CreateEntity(ctx, testOntology, "book", map[string]any{
		"title": "north star", "pages": 100,
	})
	require.NoError(t, err)
	_, err = svc.CreateEntity(ctx, testOntology, "book", map[string]any{
		"title": "near north", "pages": 500,
	})
	require.NoError(t, err)
	_, err = svc.CreateEntity(ctx, testOntology, "author", map[string]any{
		"name": "north star",
	})
	require.NoError(t, err)

	// No type given: results merge across all entity types by score.
	result, err := svc.SemanticSearch(ctx, testOntology, SearchParams{
		Query:    "north star",
		MinScore: 0.99,
	})
	require.NoError(t, err)
	require.Len(t, result.Results, 2)
	types := []string{
		result.Results[0].Entity[apptype.KeyEntityTypeKey].(string),
		result.Results[1].Entity[apptype.KeyEntityTypeKey].(string),
	}
	assert.Contains(t, types, "book")
	assert.Contains(t, types, "author")

	// A filter on a property only books define skips the author type
	// instead of failing the whole search.
	result, err = svc.SemanticSearch(ctx, testOntology, SearchParams{
		Query:   "north star",
		Filters: map[string]string{"pages__gte": "400"},
	})
	require.NoError(t, err)
	require.Len(t, result.Results, 1)
	assert.Equal(t, "near north", result.Results[0].Entity["title"])

	// With an explicit type, the same unknown-property filter is an error.
	_, err = svc.SemanticSearch(ctx, testOntology, SearchParams{
		Query:         "north star",
		EntityTypeKey: "author",
		Filters:       map[string]string{"pages__gte": "400"},
	})
	assert.True(t, apperror.IsValidation(err))
}

func TestSemanticSearchRequiresProviderAndQuery(t *testing.T) {
	svc, cleanup := setupService(t, nil)
	defer cleanup()
	ctx := context.Background()

	// No provider configured: a validation failure, not an internal one.
	_, err := svc.SemanticSearch(ctx, testOntology, SearchParams{Query: "anything"})
	require.Error(t, err)
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)

	svc2, cleanup2 := setupService(t, searchEmbedder())
	defer cleanup2()
	_, err = svc2.SemanticSearch(ctx, testOntology, SearchParams{})
	assert.True(t, apperror.IsValidation(err))
}

func TestSemanticSearchEmbedFailureIsValidation(t *testing.T) {
	svc, cleanup := setupService(t, &stubEmbedder{err: errors.New("provider unreachable")})
	defer cleanup()

	_, err := svc.SemanticSearch(context.Background(), testOntology, SearchParams{Query: "north star"})
	require.Error(t, err)
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
	assert.Contains(t, appErr.Fields, "query")
}

func TestCandidateFetchLimit(t *testing.T) {
	assert.Equal(t, 10, candidateFetchLimit(10, false))
	assert.Equal(t, 50, candidateFetchLimit(10, true))
	assert.Equal(t, maxCandidateFetch, candidateFetchLimit(200, true))
}
