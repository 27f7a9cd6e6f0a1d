package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ontoforge/ontoforge-go/internal/apptype"
)

const (
	dateLayout = "2006-01-02"

	// Offset-less ISO-8601 datetimes; the fractional part is optional.
	naiveDateTimeLayout = "2006-01-02T15:04:05.999999999"
)

// CoerceValue converts an incoming value to the canonical Go representation
// for the given data type: string, int64, float64, bool, or a normalized
// date/datetime string. The input is never mutated. Booleans never coerce to
// numbers, and epoch timestamps are not accepted for temporal types.
func CoerceValue(value any, dt apptype.DataType) (any, error) {
	switch dt {
	case apptype.TypeString:
		return coerceString(value)
	case apptype.TypeInteger:
		return coerceInteger(value)
	case apptype.TypeFloat:
		return coerceFloat(value)
	case apptype.TypeBoolean:
		return coerceBoolean(value)
	case apptype.TypeDate:
		return coerceDate(value)
	case apptype.TypeDateTime:
		return coerceDateTime(value)
	default:
		return nil, fmt.Errorf("unknown data type: %q", dt)
	}
}

func coerceString(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float32:
		return formatFloatAsString(float64(v)), nil
	case float64:
		return formatFloatAsString(v), nil
	case json.Number:
		return v.String(), nil
	default:
		return nil, fmt.Errorf("cannot coerce %T to string", value)
	}
}

// formatFloatAsString renders integral floats without a decimal point, so a
// JSON 42 arriving as float64 becomes "42" rather than "42.000000".
func formatFloatAsString(f float64) string {
	if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func coerceInteger(value any) (any, error) {
	switch v := value.(type) {
	case bool:
		return nil, fmt.Errorf("cannot coerce boolean to integer")
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float32:
		return floatToInt(float64(v))
	case float64:
		return floatToInt(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("cannot coerce %q to integer", v.String())
		}
		return floatToInt(f)
	case string:
		s := strings.TrimSpace(v)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("cannot coerce %q to integer", v)
		}
		return floatToInt(f)
	default:
		return nil, fmt.Errorf("cannot coerce %T to integer", value)
	}
}

func floatToInt(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil, fmt.Errorf("cannot coerce non-integral number %v to integer", f)
	}
	if f < math.MinInt64 || f > math.MaxInt64 {
		return nil, fmt.Errorf("integer value %v out of range", f)
	}
	return int64(f), nil
}

func coerceFloat(value any) (any, error) {
	switch v := value.(type) {
	case bool:
		return nil, fmt.Errorf("cannot coerce boolean to float")
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("cannot coerce %q to float", v.String())
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("cannot coerce %q to float", v)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("cannot coerce %T to float", value)
	}
}

func coerceBoolean(value any) (any, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, fmt.Errorf("cannot coerce %q to boolean", v)
	default:
		return nil, fmt.Errorf("cannot coerce %T to boolean", value)
	}
}

func coerceDate(value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("cannot coerce %T to date", value)
	}
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("cannot coerce %q to date (expected YYYY-MM-DD)", s)
	}
	return t.Format(dateLayout), nil
}

func coerceDateTime(value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("cannot coerce %T to datetime", value)
	}
	trimmed := strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return t.Format(time.RFC3339), nil
	}
	// ISO 8601 permits omitting the offset; keep the naive form as given.
	t, err := time.Parse(naiveDateTimeLayout, trimmed)
	if err != nil {
		return nil, fmt.Errorf("cannot coerce %q to datetime (expected ISO 8601)", s)
	}
	return t.Format(naiveDateTimeLayout), nil
}
