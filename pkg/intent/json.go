package intent

import (
	"encoding/json"
	"fmt"

	"github.com/jkoenig/werkbank/pkg/api"
)

// extractJSONObject finds the first balanced top-level JSON object in
// text. Completion backends often wrap JSON in prose or code fences, so a
// direct Unmarshal of the whole response is not enough. Returns the object
// substring and whether one was found.
func extractJSONObject(text string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i, r := range text {
		if start >= 0 && inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}

		switch r {
		case '{':
			if start < 0 {
				start = i
			}
			depth++
		case '}':
			if start >= 0 {
				depth--
				if depth == 0 {
					return text[start : i+1], true
				}
			}
		case '"':
			if start >= 0 {
				inString = true
			}
		}
	}
	return "", false
}

// intentJSON mirrors the classification output schema.
type intentJSON struct {
	TaskCategory      *string        `json:"task_category"`
	SubCategory       *string        `json:"sub_category"`
	Parameters        map[string]any `json:"parameters"`
	Confidence        *float64       `json:"confidence"`
	NeedsPriorContext *bool          `json:"needs_prior_context"`
	ContextReferences []string       `json:"context_references"`
}

// mergeIntentJSON overlays fields present in raw onto intent, leaving
// absent fields at their defaults. Unknown task categories are kept as-is;
// downstream template lookup simply will not match them.
func mergeIntentJSON(intent *api.Intent, raw string) error {
	var parsed intentJSON
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return fmt.Errorf("decode intent: %w", err)
	}

	if parsed.TaskCategory != nil && *parsed.TaskCategory != "" {
		intent.TaskCategory = *parsed.TaskCategory
	}
	if parsed.SubCategory != nil {
		intent.SubCategory = *parsed.SubCategory
	}
	if parsed.Parameters != nil {
		intent.Parameters = parsed.Parameters
	}
	if parsed.Confidence != nil {
		intent.Confidence = *parsed.Confidence
	}
	if parsed.NeedsPriorContext != nil {
		intent.NeedsPriorContext = *parsed.NeedsPriorContext
	}
	if parsed.ContextReferences != nil {
		intent.ContextReferences = parsed.ContextReferences
	}
	return nil
}
