package llm

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"queryflow/internal/domain"
)

const (
	maxTags            = 4
	maxAutoResponseLen = 180
)

// Normalize validates and coerces one extracted JSON chunk into the fixed
// classification schema. A chunk that does not parse yields a
// MalformedResponseError; valid JSON that is not an object yields a
// SchemaViolationError. A structurally valid object never fails: fields
// are defaulted, clamped or passed through, and contract violations that
// the schema tolerates come back as warning strings for logging.
func Normalize(chunk string) (domain.ClassificationResult, []string, error) {
	var value any
	if err := json.Unmarshal([]byte(chunk), &value); err != nil {
		return domain.ClassificationResult{}, nil, &MalformedResponseError{Chunk: chunk, Err: err}
	}
	obj, ok := value.(map[string]any)
	if !ok {
		return domain.ClassificationResult{}, nil, &SchemaViolationError{Value: chunk}
	}

	var warnings []string

	result := domain.ClassificationResult{
		Department:   stringField(obj, "department"),
		Sentiment:    stringField(obj, "sentiment"),
		Urgency:      normalizeUrgency(obj["urgency"]),
		Summary:      stringField(obj, "summary"),
		AutoResponse: stringField(obj, "auto_response"),
	}
	result.Tags, warnings = normalizeTags(obj["tags"], warnings)

	if result.Department != "" && !domain.KnownDepartment(result.Department) {
		warnings = append(warnings, fmt.Sprintf("department %q is outside the advertised list", result.Department))
	}
	if result.Sentiment != "" && !domain.KnownSentiment(result.Sentiment) {
		warnings = append(warnings, fmt.Sprintf("sentiment %q is outside the advertised list", result.Sentiment))
	}
	if len(result.AutoResponse) > maxAutoResponseLen {
		warnings = append(warnings, fmt.Sprintf("auto_response is %d chars (contract asks <= %d)", len(result.AutoResponse), maxAutoResponseLen))
	}

	return result, warnings, nil
}

// normalizeUrgency coerces whatever the model put in the urgency field to
// an integer in [1,5]. Falsy or unusable values default to 1.
func normalizeUrgency(v any) int {
	var n float64
	switch x := v.(type) {
	case float64:
		n = x
	case string:
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			n = parsed
		}
	case bool:
		if x {
			n = 1
		}
	}
	if n == 0 {
		n = 1
	}
	rounded := int(math.Round(n))
	if rounded < 1 {
		return 1
	}
	if rounded > 5 {
		return 5
	}
	return rounded
}

// normalizeTags lowercases and trims each entry, drops empties, and
// soft-truncates at the contract limit. More than maxTags entries is a
// contract violation by the model, not a local error.
func normalizeTags(v any, warnings []string) ([]string, []string) {
	list, ok := v.([]any)
	if !ok {
		if v != nil {
			warnings = append(warnings, "tags is not an array; substituting empty set")
		}
		return []string{}, warnings
	}
	tags := make([]string, 0, len(list))
	for _, entry := range list {
		s, _ := entry.(string)
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		tags = append(tags, s)
	}
	if len(tags) > maxTags {
		warnings = append(warnings, fmt.Sprintf("model returned %d tags (contract allows %d); truncating", len(tags), maxTags))
		tags = tags[:maxTags]
	}
	return tags, warnings
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return strings.TrimSpace(s)
}
