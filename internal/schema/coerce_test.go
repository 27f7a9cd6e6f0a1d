package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ontoforge/ontoforge-go/internal/apperror"
	"github.com/ontoforge/ontoforge-go/internal/apptype"
)

func TestCoerceInteger(t *testing.T) {
	v, err := CoerceValue(float64(42), apptype.TypeInteger)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	v, err = CoerceValue("17", apptype.TypeInteger)
	require.NoError(t, err)
	assert.Equal(t, int64(17), v)

	// Numeric strings with an integral float value are accepted.
	v, err = CoerceValue("17.0", apptype.TypeInteger)
	require.NoError(t, err)
	assert.Equal(t, int64(17), v)

	_, err = CoerceValue(float64(3.5), apptype.TypeInteger)
	assert.Error(t, err)

	_, err = CoerceValue(true, apptype.TypeInteger)
	assert.Error(t, err, "booleans never coerce to numbers")
}

func TestCoerceFloat(t *testing.T) {
	v, err := CoerceValue(int64(3), apptype.TypeFloat)
	require.NoError(t, err)
	assert.Equal(t, float64(3), v)

	v, err = CoerceValue("2.5", apptype.TypeFloat)
	require.NoError(t, err)
	assert.Equal(t, 2.5, v)

	_, err = CoerceValue(false, apptype.TypeFloat)
	assert.Error(t, err)
}

func TestCoerceBoolean(t *testing.T) {
	v, err := CoerceValue(true, apptype.TypeBoolean)
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = CoerceValue(" True ", apptype.TypeBoolean)
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = CoerceValue("false", apptype.TypeBoolean)
	require.NoError(t, err)
	assert.Equal(t, false, v)

	_, err = CoerceValue("yes", apptype.TypeBoolean)
	assert.Error(t, err)
	_, err = CoerceValue(float64(1), apptype.TypeBoolean)
	assert.Error(t, err, "numbers never coerce to booleans")
}

func TestCoerceString(t *testing.T) {
	v, err := CoerceValue(float64(42), apptype.TypeString)
	require.NoError(t, err)
	assert.Equal(t, "42", v, "integral floats render without decimal point")

	v, err = CoerceValue(true, apptype.TypeString)
	require.NoError(t, err)
	assert.Equal(t, "true", v)
}

func TestCoerceTemporal(t *testing.T) {
	v, err := CoerceValue("2024-03-01", apptype.TypeDate)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", v)

	_, err = CoerceValue("03/01/2024", apptype.TypeDate)
	assert.Error(t, err)
	_, err = CoerceValue(float64(1709251200), apptype.TypeDate)
	assert.Error(t, err, "epoch timestamps are rejected")

	v, err = CoerceValue("2024-03-01T10:00:00Z", apptype.TypeDateTime)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T10:00:00Z", v)

	// Offset-less ISO 8601 datetimes are accepted and kept naive.
	v, err = CoerceValue("2024-06-01T10:00:00", apptype.TypeDateTime)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01T10:00:00", v)

	v, err = CoerceValue("2024-06-01T10:00:00.25", apptype.TypeDateTime)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01T10:00:00.25", v)

	_, err = CoerceValue("2024-03-01 10:00", apptype.TypeDateTime)
	assert.Error(t, err)
}

func TestCoerceUnknownType(t *testing.T) {
	_, err := CoerceValue("x", apptype.DataType("decimal"))
	require.Error(t, err)
}

func personDefs() []apptype.PropertyDef {
	return []apptype.PropertyDef{
		{Key: "name", Type: apptype.TypeString, Required: true},
		{Key: "age", Type: apptype.TypeInteger},
		{Key: "active", Type: apptype.TypeBoolean, Default: true},
		{Key: "bio", Type: apptype.TypeString},
		{Key: "tier", Type: apptype.TypeString, Required: true, Default: "basic"},
	}
}

func TestValidatePropertiesCreate(t *testing.T) {
	coerced, err := ValidateProperties("person", personDefs(), map[string]any{
		"name": "Ada",
		"age":  float64(36),
	}, false)
	require.NoError(t, err)
	assert.Equal(t, "Ada", coerced.Values["name"])
	assert.Equal(t, int64(36), coerced.Values["age"])
	assert.Equal(t, "basic", coerced.Values["tier"], "required property falls back to its default")
	_, hasActive := coerced.Values["active"]
	assert.False(t, hasActive, "absent optional property is omitted, default or not")
	_, hasBio := coerced.Values["bio"]
	assert.False(t, hasBio, "optional property without default stays absent")
	assert.Empty(t, coerced.Removals)
}

func TestValidatePropertiesCreateNullMeansNotProvided(t *testing.T) {
	coerced, err := ValidateProperties("person", personDefs(), map[string]any{
		"name":   "Ada",
		"active": nil,
		"tier":   nil,
	}, false)
	require.NoError(t, err)
	assert.Equal(t, "basic", coerced.Values["tier"], "null falls back to the default on a required property")
	_, hasActive := coerced.Values["active"]
	assert.False(t, hasActive, "null on an optional property is omitted in create mode")
	assert.Empty(t, coerced.Removals)
}

func TestValidatePropertiesAccumulatesAllErrors(t *testing.T) {
	_, err := ValidateProperties("person", personDefs(), map[string]any{
		"age":     "not-a-number",
		"unknown": "x",
	}, false)
	require.Error(t, err)
	ae, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, ae.Code)
	assert.Contains(t, ae.Fields, "name")
	assert.Equal(t, "Required property missing", ae.Fields["name"])
	assert.Contains(t, ae.Fields, "age")
	assert.Contains(t, ae.Fields, "unknown")
	assert.Equal(t, "Unknown property: not defined in type 'person'", ae.Fields["unknown"])
}

func TestValidatePropertiesPartial(t *testing.T) {
	coerced, err := ValidateProperties("person", personDefs(), map[string]any{
		"age": nil,
		"bio": "builder",
	}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"age"}, coerced.Removals, "null removes optional properties")
	assert.Equal(t, "builder", coerced.Values["bio"])
	_, hasName := coerced.Values["name"]
	assert.False(t, hasName, "untouched keys stay untouched")
}

func TestValidatePropertiesPartialNullRequired(t *testing.T) {
	_, err := ValidateProperties("person", personDefs(), map[string]any{
		"name": nil,
	}, true)
	require.Error(t, err)
	ae, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, "Cannot set required property to null", ae.Fields["name"])
}

func TestValidatePropertiesDoesNotMutateInput(t *testing.T) {
	input := map[string]any{"name": "Ada", "age": float64(36)}
	_, err := ValidateProperties("person", personDefs(), input, false)
	require.NoError(t, err)
	assert.Equal(t, float64(36), input["age"], "input map is never mutated")
}
