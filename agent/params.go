package agent

// Parameter values arrive as decoded JSON, so numbers are float64 and
// arrays are []interface{}. These coercers absorb that.

func paramString(params map[string]interface{}, name string) string {
	if value, ok := params[name].(string); ok {
		return value
	}
	return ""
}

func paramInt(params map[string]interface{}, name string, fallback int) int {
	switch value := params[name].(type) {
	case float64:
		return int(value)
	case int:
		return value
	}
	return fallback
}

func paramStrings(params map[string]interface{}, name string) []string {
	raw, ok := params[name].([]interface{})
	if !ok {
		if typed, ok := params[name].([]string); ok {
			return typed
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func paramInts(params map[string]interface{}, name string) []int {
	raw, ok := params[name].([]interface{})
	if !ok {
		if typed, ok := params[name].([]int); ok {
			return typed
		}
		return nil
	}
	out := make([]int, 0, len(raw))
	for _, item := range raw {
		switch value := item.(type) {
		case float64:
			out = append(out, int(value))
		case int:
			out = append(out, value)
		}
	}
	return out
}
