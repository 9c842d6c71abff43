package browser

// arguments wraps a decoded JSON argument object with typed accessors.
// JSON numbers arrive as float64, so integer access goes through that.
type arguments map[string]any

func (a arguments) str(key string) string {
	if v, ok := a[key].(string); ok {
		return v
	}
	return ""
}

func (a arguments) boolean(key string, fallback bool) bool {
	if v, ok := a[key].(bool); ok {
		return v
	}
	return fallback
}

func (a arguments) integer(key string, fallback int) int {
	switch v := a[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return fallback
}
