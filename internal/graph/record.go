package graph

// GetString extracts a string value from a Record.
func GetString(r Record, key string) string {
	if v, ok := r[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetInt64 extracts an int64 value from a Record.
// Handles int, int64, and float64 (truncated).
func GetInt64(r Record, key string) int64 {
	if v, ok := r[key]; ok {
		switch n := v.(type) {
		case int64:
			return n
		case int:
			return int64(n)
		case float64:
			return int64(n)
		}
	}
	return 0
}

// GetFloat extracts a float64 value from a Record.
func GetFloat(r Record, key string) float64 {
	if v, ok := r[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case int64:
			return float64(n)
		case int:
			return float64(n)
		}
	}
	return 0.0
}

// GetStringSlice reads a list property as strings, dropping non-string
// elements. ok is false when the property is absent or not a list, so callers
// can tell an empty list from a missing one.
func GetStringSlice(r Record, key string) (values []string, ok bool) {
	switch list := r[key].(type) {
	case []string:
		return list, true
	case []any:
		values = make([]string, 0, len(list))
		for _, item := range list {
			if s, isString := item.(string); isString {
				values = append(values, s)
			}
		}
		return values, true
	}
	return nil, false
}
