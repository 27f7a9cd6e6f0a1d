package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ontoforge/ontoforge-go/internal/apperror"
	"github.com/ontoforge/ontoforge-go/internal/apptype"
)

func filterDefs() []apptype.PropertyDef {
	return []apptype.PropertyDef{
		{Key: "name", Type: apptype.TypeString},
		{Key: "age", Type: apptype.TypeInteger},
		{Key: "active", Type: apptype.TypeBoolean},
		{Key: "notes__final", Type: apptype.TypeString},
	}
}

func TestBuildFilterClausesOperators(t *testing.T) {
	clauses, args, err := BuildFilterClauses("person", filterDefs(), map[string]string{
		"age__gte": "21",
		"age__lt":  "65",
		"name":     "Ada",
	})
	require.NoError(t, err)
	require.Len(t, clauses, 3)
	require.Len(t, args, 3)

	// Sorted filter keys: age__gte, age__lt, name.
	assert.Equal(t, `"age" >= ?`, clauses[0])
	assert.Equal(t, int64(21), args[0])
	assert.Equal(t, `"age" < ?`, clauses[1])
	assert.Equal(t, `"name" = ?`, clauses[2])
	assert.Equal(t, "Ada", args[2])
}

func TestBuildFilterClausesContains(t *testing.T) {
	clauses, args, err := BuildFilterClauses("person", filterDefs(), map[string]string{
		"name__contains": "100% Match",
	})
	require.NoError(t, err)
	require.Len(t, clauses, 1)
	assert.Contains(t, clauses[0], "instr(lower(CAST(")
	// The value travels as a parameter, so LIKE wildcards and quotes in it
	// are inert.
	assert.Equal(t, "100% Match", args[0])
}

func TestBuildFilterClausesSplitsOnLastSeparator(t *testing.T) {
	// "notes__final" is itself a property; its key must survive intact.
	clauses, _, err := BuildFilterClauses("person", filterDefs(), map[string]string{
		"notes__final": "v",
	})
	require.NoError(t, err)
	assert.Equal(t, `"notes__final" = ?`, clauses[0])

	clauses, _, err = BuildFilterClauses("person", filterDefs(), map[string]string{
		"notes__final__contains": "v",
	})
	require.NoError(t, err)
	assert.True(t, strings.Contains(clauses[0], `"notes__final"`))
}

func TestBuildFilterClausesUnknownProperty(t *testing.T) {
	_, _, err := BuildFilterClauses("person", filterDefs(), map[string]string{
		"salary__gt": "10",
		"age__gte":   "bad",
	})
	require.Error(t, err)
	ae, ok := apperror.As(err)
	require.True(t, ok)
	assert.Contains(t, ae.Fields, "salary__gt")
	assert.Contains(t, ae.Fields, "age__gte", "all filter errors are accumulated")
}

func TestBuildFilterClausesBooleanStorage(t *testing.T) {
	_, args, err := BuildFilterClauses("person", filterDefs(), map[string]string{
		"active": "true",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), args[0], "booleans bind as 0/1")
}

func TestBuildFilterClausesInjectionSafety(t *testing.T) {
	clauses, args, err := BuildFilterClauses("person", filterDefs(), map[string]string{
		"name": `'; DROP TABLE "Person"; --`,
	})
	require.NoError(t, err)
	assert.Equal(t, `"name" = ?`, clauses[0], "identifiers come from the schema, values from parameters")
	assert.Equal(t, `'; DROP TABLE "Person"; --`, args[0])
}

func TestBuildTextQueryClause(t *testing.T) {
	clause, args := BuildTextQueryClause(filterDefs(), "ada")
	assert.Contains(t, clause, " OR ")
	assert.Len(t, args, 2, "one term per string-typed property")

	clause, args = BuildTextQueryClause([]apptype.PropertyDef{
		{Key: "age", Type: apptype.TypeInteger},
	}, "ada")
	assert.Equal(t, "1 = 0", clause, "no string properties means match nothing")
	assert.Empty(t, args)
}

func TestSortColumn(t *testing.T) {
	for _, spelling := range []string{"createdAt", "_createdAt"} {
		col, err := SortColumn("person", filterDefs(), spelling)
		require.NoError(t, err)
		assert.Equal(t, ColCreatedAt, col)
	}
	col, err := SortColumn("person", filterDefs(), "updatedAt")
	require.NoError(t, err)
	assert.Equal(t, ColUpdatedAt, col)

	col, err = SortColumn("person", filterDefs(), "age")
	require.NoError(t, err)
	assert.Equal(t, `"age"`, col)

	_, err = SortColumn("person", filterDefs(), "salary")
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestNormalizeOrder(t *testing.T) {
	o, err := NormalizeOrder("")
	require.NoError(t, err)
	assert.Equal(t, "ASC", o)

	o, err = NormalizeOrder("DESC")
	require.NoError(t, err)
	assert.Equal(t, "DESC", o)

	_, err = NormalizeOrder("sideways")
	assert.Error(t, err)
}
