package parsing

import (
	"fmt"
	"strings"

	"go-der-dashboard/internal/model"
)

// CamelCase converts a snake_case wire key to camelCase ("meter_group_id" -> "meterGroupId").
// Keys without underscores are returned unchanged.
func CamelCase(key string) string {
	if !strings.Contains(key, "_") {
		return key
	}
	parts := strings.Split(key, "_")
	var b strings.Builder
	b.Grow(len(key))
	first := true
	for _, p := range parts {
		if p == "" {
			continue
		}
		if first {
			b.WriteString(p)
			first = false
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	if b.Len() == 0 {
		return key
	}
	return b.String()
}

// CamelizeKeys returns a copy of v with every object key camel-cased, recursing
// into nested maps and slices. Other values are returned as they are.
func CamelizeKeys(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			out[CamelCase(k)] = CamelizeKeys(inner)
		}
		return out
	case model.GenericRecord:
		return model.GenericRecord(CamelizeKeys(map[string]interface{}(val)).(map[string]interface{}))
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, inner := range val {
			out[i] = CamelizeKeys(inner)
		}
		return out
	default:
		return v
	}
}

// CamelizeMap is CamelizeKeys for the common map case; nil stays nil
func CamelizeMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	return CamelizeKeys(m).(map[string]interface{})
}

// ApplyTransformations runs named record transformations in order on a copy of rec
func ApplyTransformations(rec model.GenericRecord, transformations ...string) (model.GenericRecord, error) {
	result := make(model.GenericRecord, len(rec))
	for k, v := range rec {
		result[k] = v
	}

	for _, transform := range transformations {
		switch transform {
		case "camelizeKeys":
			result = CamelizeKeys(result).(model.GenericRecord)
		case "trimStrings":
			result = trimStrings(result)
		case "removeNulls":
			result = removeNulls(result)
		default:
			return nil, fmt.Errorf("%w: unknown transformation %q", model.ErrInvalidArgument, transform)
		}
	}
	return result, nil
}

// trimStrings trims whitespace from all string fields
func trimStrings(rec model.GenericRecord) model.GenericRecord {
	for key, val := range rec {
		if str, ok := val.(string); ok {
			rec[key] = strings.TrimSpace(str)
		}
	}
	return rec
}

// removeNulls removes nil values from the record
func removeNulls(rec model.GenericRecord) model.GenericRecord {
	for key, val := range rec {
		if val == nil {
			delete(rec, key)
		}
	}
	return rec
}
