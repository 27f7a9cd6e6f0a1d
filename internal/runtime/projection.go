package runtime

import (
	"fmt"

	"github.com/ontoforge/ontoforge-go/internal/apperror"
	"github.com/ontoforge/ontoforge-go/internal/apptype"
)

// A projected entity keeps only its id beyond the requested fields.
var entitySystemKeys = []string{apptype.KeyID}

// Neighbor entities additionally carry their type key, since a traversal
// can return entities of several types.
var neighborEntitySystemKeys = []string{apptype.KeyID, apptype.KeyEntityTypeKey}

// A projected relation keeps id, type key, and (on traversal results) the
// computed direction.
var relationSystemKeys = []string{
	apptype.KeyID, apptype.KeyRelationTypeKey, apptype.KeyDirection,
}

// project reduces an instance to the requested property fields plus the
// system keys, which always survive projection. A requested field must be
// a defined property of the type.
func project(typeKey string, has func(string) bool, systemKeys []string, instance apptype.Instance, fields []string) (apptype.Instance, error) {
	if len(fields) == 0 {
		return instance, nil
	}

	errFields := make(map[string]string)
	out := make(apptype.Instance, len(fields)+len(systemKeys))
	for _, key := range systemKeys {
		if v, ok := instance[key]; ok {
			out[key] = v
		}
	}
	for _, field := range fields {
		if !has(field) {
			errFields[field] = fmt.Sprintf("Unknown property: not defined in type '%s'", typeKey)
			continue
		}
		if v, ok := instance[field]; ok {
			out[field] = v
		}
	}
	if len(errFields) > 0 {
		return nil, apperror.NewValidation(
			fmt.Sprintf("Invalid fields for type '%s'", typeKey), errFields)
	}
	return out, nil
}

func projectEntity(def *apptype.EntityTypeDef, instance apptype.Instance, fields []string) (apptype.Instance, error) {
	has := func(key string) bool { _, ok := def.Property(key); return ok }
	return project(def.Key, has, entitySystemKeys, instance, fields)
}

func projectNeighborEntity(def *apptype.EntityTypeDef, instance apptype.Instance, fields []string) (apptype.Instance, error) {
	has := func(key string) bool { _, ok := def.Property(key); return ok }
	return project(def.Key, has, neighborEntitySystemKeys, instance, fields)
}

func projectRelation(def *apptype.RelationTypeDef, instance apptype.Instance, fields []string) (apptype.Instance, error) {
	has := func(key string) bool { _, ok := def.Property(key); return ok }
	return project(def.Key, has, relationSystemKeys, instance, fields)
}

func projectEntities(def *apptype.EntityTypeDef, items []apptype.Instance, fields []string) ([]apptype.Instance, error) {
	if len(fields) == 0 {
		return items, nil
	}
	out := make([]apptype.Instance, len(items))
	for i, item := range items {
		projected, err := projectEntity(def, item, fields)
		if err != nil {
			return nil, err
		}
		out[i] = projected
	}
	return out, nil
}

func projectRelations(def *apptype.RelationTypeDef, items []apptype.Instance, fields []string) ([]apptype.Instance, error) {
	if len(fields) == 0 {
		return items, nil
	}
	out := make([]apptype.Instance, len(items))
	for i, item := range items {
		projected, err := projectRelation(def, item, fields)
		if err != nil {
			return nil, err
		}
		out[i] = projected
	}
	return out, nil
}
