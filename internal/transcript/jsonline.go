package transcript

import (
	"encoding/json"
	"fmt"
)

// parseJSONObject parses b as a JSON object, reporting false for any other
// JSON value or a parse failure — both are treated as "not a usable
// record" by callers rather than surfaced as errors.
func parseJSONObject(b []byte) (map[string]any, bool) {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	return obj, ok
}

// stringifyScalar renders a decoded JSON value (string, float64, bool) as a
// string, matching Python's str() for the scalar types last_event_id
// fields hold.
func stringifyScalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case bool:
		if t {
			return "True"
		}
		return "False"
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// isUserMessage reports whether obj is a role:"user" record.
func isUserMessage(obj map[string]any) bool {
	role, _ := obj["role"].(string)
	return role == "user"
}

// extractPromptText pulls human-readable prompt text out of a user-message
// record: a plain string content field is returned as-is; a list of
// content blocks has its text blocks joined; anything else falls back to
// a JSON rendering of fallback.
func extractPromptText(obj, fallback map[string]any) string {
	content, ok := obj["content"]
	if !ok {
		return jsonDumps(fallback)
	}

	switch c := content.(type) {
	case string:
		return c
	case []any:
		var parts []string
		for _, block := range c {
			m, ok := block.(map[string]any)
			if !ok {
				continue
			}
			if t, _ := m["type"].(string); t != "text" {
				continue
			}
			if text, ok := m["text"].(string); ok {
				parts = append(parts, text)
			}
		}
		joined := trimSpace([]byte(joinLines(parts)))
		if len(joined) > 0 {
			return string(joined)
		}
		return jsonDumps(fallback)
	default:
		return jsonDumps(fallback)
	}
}

func joinLines(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "\n"
		}
		out += p
	}
	return out
}

func jsonDumps(v map[string]any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
