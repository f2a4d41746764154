package formatting

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrParseFailed is returned when content cannot be parsed as JSON,
// either directly or from the object extracted by ExtractJSON.
var ErrParseFailed = errors.New("failed to parse response")

var jsonBlockRegex = regexp.MustCompile(`(?is)` + "```" + `(?:json)?\s*(\{.*?\})\s*` + "```")

// ExtractJSON locates the first object-looking payload in model output.
// A fenced code block wins over a bare brace span; the brace span runs from
// the first '{' to the last '}'. When neither is found the text is returned
// unchanged so the caller's decode fails loudly.
func ExtractJSON(text string) string {
	if m := jsonBlockRegex.FindStringSubmatch(text); len(m) >= 2 {
		return m[1]
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end > start {
		return text[start : end+1]
	}

	return text
}

// Parse attempts to unmarshal content as JSON into T.
// If direct parsing fails, it extracts the payload with ExtractJSON and
// retries. Returns ErrParseFailed if both attempts fail.
func Parse[T any](content string) (T, error) {
	var result T
	content = strings.TrimSpace(content)

	err := json.Unmarshal([]byte(content), &result)
	if err == nil {
		return result, nil
	}

	extracted := strings.TrimSpace(ExtractJSON(content))
	if extracted != content {
		var retry T
		if err = json.Unmarshal([]byte(extracted), &retry); err == nil {
			return retry, nil
		}
	}

	return result, fmt.Errorf("%w: %w", ErrParseFailed, err)
}
