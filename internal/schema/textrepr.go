package schema

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ontoforge/ontoforge-go/internal/apptype"
)

// maxTextReprChars caps the text handed to embedding providers.
const maxTextReprChars = 30000

// BuildTextRepr renders the deterministic text representation of an entity
// used for embedding: "typeKey: key=value, key=value" over the string-typed
// properties in schema definition order. Properties that are absent or empty
// contribute nothing; with no contributions the bare type key is returned.
func BuildTextRepr(log *slog.Logger, typeKey string, defs []apptype.PropertyDef, values map[string]any) string {
	var parts []string
	for _, d := range defs {
		if d.Type != apptype.TypeString {
			continue
		}
		v, ok := values[d.Key]
		if !ok || v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok || s == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%s", d.Key, s))
	}
	text := typeKey
	if len(parts) > 0 {
		text = fmt.Sprintf("%s: %s", typeKey, strings.Join(parts, ", "))
	}
	// The cap is in characters; byte length only gates the rune conversion.
	if len(text) > maxTextReprChars {
		if runes := []rune(text); len(runes) > maxTextReprChars {
			text = string(runes[:maxTextReprChars])
			if log != nil {
				log.Warn("text representation truncated",
					slog.String("entityTypeKey", typeKey),
					slog.Int("maxChars", maxTextReprChars),
				)
			}
		}
	}
	return text
}
