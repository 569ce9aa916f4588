package tool

// Argument extraction helpers for validated tool args. Validation guarantees
// type correctness for declared fields; these helpers only normalize JSON
// decoding artifacts (float64 numbers) and fill defaults for optional fields.

func stringArg(args map[string]any, key, fallback string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}

func boolArg(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}
