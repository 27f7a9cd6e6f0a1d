package schema

import (
	"fmt"

	"github.com/ontoforge/ontoforge-go/internal/apperror"
	"github.com/ontoforge/ontoforge-go/internal/apptype"
)

const (
	msgUnknownProperty = "Unknown property: not defined in type '%s'"
	msgRequiredMissing = "Required property missing"
	msgRequiredNull    = "Cannot set required property to null"
)

// Coerced is the outcome of validating an instance payload. Values holds the
// coerced properties to set; Removals lists properties a partial update
// explicitly nulled out.
type Coerced struct {
	Values   map[string]any
	Removals []string
}

// ValidateProperties checks an incoming property map against a type's
// property definitions and returns a coerced copy. All field errors are
// accumulated and reported together in a single Validation error.
//
// In full mode (create), a nil or absent value means "not provided":
// required properties fall back to their declared default or fail, and
// optional properties are omitted entirely rather than stored as null. In
// partial mode (update), only the provided keys are touched and nil is a
// removal marker; nulling a required property fails.
func ValidateProperties(typeKey string, defs []apptype.PropertyDef, input map[string]any, partial bool) (*Coerced, error) {
	fields := make(map[string]string)
	out := &Coerced{Values: make(map[string]any, len(input))}

	byKey := make(map[string]apptype.PropertyDef, len(defs))
	for _, d := range defs {
		byKey[d.Key] = d
	}

	for key := range input {
		if _, ok := byKey[key]; !ok {
			fields[key] = fmt.Sprintf(msgUnknownProperty, typeKey)
		}
	}

	if partial {
		for key, value := range input {
			def, ok := byKey[key]
			if !ok {
				continue
			}
			if value == nil {
				if def.Required {
					fields[key] = msgRequiredNull
				} else {
					out.Removals = append(out.Removals, key)
				}
				continue
			}
			coerced, err := CoerceValue(value, def.Type)
			if err != nil {
				fields[key] = err.Error()
				continue
			}
			out.Values[key] = coerced
		}
	} else {
		for _, def := range defs {
			value, present := input[def.Key]
			if !present || value == nil {
				if !def.Required {
					continue
				}
				if def.Default == nil {
					fields[def.Key] = msgRequiredMissing
					continue
				}
				coerced, err := CoerceValue(def.Default, def.Type)
				if err != nil {
					fields[def.Key] = err.Error()
					continue
				}
				out.Values[def.Key] = coerced
				continue
			}
			coerced, err := CoerceValue(value, def.Type)
			if err != nil {
				fields[def.Key] = err.Error()
				continue
			}
			out.Values[def.Key] = coerced
		}
	}

	if len(fields) > 0 {
		return nil, apperror.NewValidation(fmt.Sprintf("Invalid properties for type '%s'", typeKey), fields)
	}
	return out, nil
}
