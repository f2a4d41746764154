package defects

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/JaimeStill/inspector/pkg/formatting"
)

// Normalizer coerces raw classifier output into a Verdict.
// It never fails: malformed input degrades to a low-confidence Hold verdict.
type Normalizer struct {
	Labels LabelSet
}

// NewNormalizer creates a Normalizer over the configured labels.
func NewNormalizer(labels []string) *Normalizer {
	return &Normalizer{Labels: NewLabelSet(labels)}
}

// Build decodes the JSON object in raw model text and normalizes it.
func (n *Normalizer) Build(raw string) Verdict {
	fields, err := formatting.Parse[map[string]any](raw)
	if err != nil {
		return n.Fallback(err)
	}
	if fields == nil {
		return n.Fallback(fmt.Errorf("%w: payload is not an object", formatting.ErrParseFailed))
	}

	return n.FromMap(fields)
}

// FromMap normalizes an already decoded response.
func (n *Normalizer) FromMap(fields map[string]any) Verdict {
	v := Verdict{
		Label:       n.Labels.Normalize(stringField(fields, "label", "")),
		Confidence:  ClampConfidence(fields["confidence"]),
		Description: stringField(fields, "description", ""),
		Location:    stringField(fields, "location", ""),
	}

	if v.Description == "" {
		v.Description = NoDescription
	}
	if v.Location == "" {
		v.Location = UnknownLocation
	}

	v.Severity = SeverityMinor
	if s, ok := ParseSeverity(stringField(fields, "severity", "")); ok {
		v.Severity = s
	}

	v.Action = ActionHold
	if a, ok := ParseAction(stringField(fields, "action", "")); ok {
		v.Action = a
	}

	return v.canonical()
}

// Fallback returns the verdict recorded when classification fails.
func (n *Normalizer) Fallback(err error) Verdict {
	desc := "[error] classification failed"
	if err != nil {
		desc = "[error] " + err.Error()
	}

	return Verdict{
		Label:       n.Labels.Fallback(),
		Confidence:  0,
		Description: desc,
		Severity:    SeverityMinor,
		Location:    UnknownLocation,
		Action:      ActionHold,
	}.canonical()
}

// Sanitize re-applies the verdict rules to a verdict that may have been
// edited by the operator before saving.
func (n *Normalizer) Sanitize(v Verdict) Verdict {
	v.Label = n.Labels.Normalize(v.Label)
	v.Confidence = ClampConfidence(v.Confidence)
	v.Description = strings.TrimSpace(v.Description)
	if v.Description == "" {
		v.Description = NoDescription
	}
	v.Location = strings.TrimSpace(v.Location)
	if v.Location == "" {
		v.Location = UnknownLocation
	}
	if s, ok := ParseSeverity(string(v.Severity)); ok {
		v.Severity = s
	} else {
		v.Severity = SeverityMinor
	}
	if a, ok := ParseAction(string(v.Action)); ok {
		v.Action = a
	} else {
		v.Action = ActionHold
	}
	return v.canonical()
}

// ClampConfidence coerces x to a number in [0, 1].
// Non-numeric input yields 0.
func ClampConfidence(x any) float64 {
	var f float64

	switch v := x.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, ok := parseNumber(v.String())
		if !ok {
			return 0
		}
		f = parsed
	case string:
		parsed, ok := parseNumber(v)
		if !ok {
			return 0
		}
		f = parsed
	default:
		return 0
	}

	if math.IsNaN(f) {
		return 0
	}
	return math.Max(0, math.Min(1, f))
}

// canonical forces the pass shape onto no-defect verdicts.
func (v Verdict) canonical() Verdict {
	if IsNoDefect(v.Label) {
		v.Action = ActionPass
		v.Severity = SeverityMinor
		v.Location = NoDefectLocation
	}
	return v
}

// stringField reads a scalar field as text. Objects and arrays count as absent.
func stringField(fields map[string]any, key, def string) string {
	raw, ok := fields[key]
	if !ok || raw == nil {
		return def
	}

	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case json.Number:
		s = v.String()
	case map[string]any, []any:
		return def
	default:
		s = fmt.Sprint(v)
	}
	return strings.TrimSpace(s)
}

// parseNumber accepts out-of-range values as ±Inf so they clamp.
func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	return f, true
}
