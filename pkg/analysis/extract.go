package analysis

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrMalformedOutput marks model text from which no valid JSON object could
// be extracted. Callers recover by falling back to a default record.
var ErrMalformedOutput = errors.New("malformed model output")

// ExtractJSONObject locates the first top-level JSON object in raw model text
// and parses it. Generative output often wraps the object in prose or
// markdown fences; brace-depth scanning tolerates nested objects without any
// fence-marker lookahead.
func ExtractJSONObject(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)

	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return nil, ErrMalformedOutput
	}

	depth := 0
	end := -1
	for i := start; i < len(raw); i++ {
		switch raw[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				end = i + 1
			}
		}
		if end >= 0 {
			break
		}
	}
	if end < 0 {
		return nil, ErrMalformedOutput
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw[start:end]), &parsed); err != nil {
		return nil, ErrMalformedOutput
	}
	return parsed, nil
}
