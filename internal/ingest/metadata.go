package ingest

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SerializeMetadata flattens arbitrary metadata values into scalars
// the chunk store can filter on. Scalars pass through, lists collapse
// to comma-joined strings, maps to their JSON encoding, anything else
// to its string form.
func SerializeMetadata(in map[string]interface{}) map[string]interface{} {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = serializeValue(v)
	}
	return out
}

func serializeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return t
	case []string:
		return strings.Join(t, ",")
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, fmt.Sprint(serializeValue(item)))
		}
		return strings.Join(parts, ",")
	case map[string]interface{}:
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(raw)
	default:
		return fmt.Sprint(t)
	}
}
