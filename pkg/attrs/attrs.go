// Package attrs reads values back out of slog-style key/value lists.
package attrs

// String returns the string stored under key in a [k1, v1, k2, v2, ...]
// list, or "" when the key is absent or not a string.
func String(kv []any, key string) string {
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok && k == key {
			if v, ok := kv[i+1].(string); ok {
				return v
			}
		}
	}
	return ""
}

// Pairs keeps only the listed keys, preserving their order in kv.
func Pairs(kv []any, keys ...string) []any {
	want := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		want[k] = struct{}{}
	}
	var out []any
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			continue
		}
		if _, keep := want[k]; keep {
			out = append(out, k, kv[i+1])
		}
	}
	return out
}
