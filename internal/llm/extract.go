package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fenceRe = regexp.MustCompile("(?is)```(?:json)?\\s*(.*?)```")

// ExtractJSONDocuments recovers one or more JSON document candidates from
// free-form model output. A fenced block, when present, wins over
// everything around it. A direct parse handles the well-behaved cases
// (single object, or an array yielding one document per element). When the
// model concatenated top-level objects without an enclosing array, a
// brace-depth scan captures each balanced span. If nothing balanced is
// found the trimmed text is returned as the sole candidate so the caller
// fails on parse instead of silently dropping data.
func ExtractJSONDocuments(raw string) []string {
	text := strings.TrimSpace(raw)
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	var direct any
	if err := json.Unmarshal([]byte(text), &direct); err == nil {
		if _, isArray := direct.([]any); isArray {
			var elems []json.RawMessage
			if err := json.Unmarshal([]byte(text), &elems); err == nil {
				docs := make([]string, len(elems))
				for i, elem := range elems {
					docs[i] = string(elem)
				}
				return docs
			}
		}
		return []string{text}
	}

	var docs []string
	depth := 0
	start := -1
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			depth--
			if depth == 0 && start != -1 {
				docs = append(docs, text[start:i+1])
				start = -1
			}
		}
	}
	// An opening brace that never closed still carries data worth a
	// parse attempt.
	if len(docs) == 0 && start != -1 {
		docs = append(docs, text[start:])
	}
	if len(docs) == 0 {
		return []string{text}
	}
	return docs
}
