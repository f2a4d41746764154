// Package defects defines the defect vocabulary for vehicle image inspection
// and the normalizer that turns untrusted vision model output into a verdict
// that always satisfies that vocabulary.
package defects

import (
	"slices"
	"strings"
)

// Severity is the ordinal defect impact level. A is the most severe.
type Severity string

const (
	SeverityCritical Severity = "A"
	SeverityMajor    Severity = "B"
	SeverityMinor    Severity = "C"
)

var severities = []Severity{SeverityCritical, SeverityMajor, SeverityMinor}

var severityNames = map[string]Severity{
	"HIGH":   SeverityCritical,
	"MEDIUM": SeverityMajor,
	"LOW":    SeverityMinor,
}

// Severities returns the valid severity levels, most severe first.
func Severities() []Severity {
	return severities
}

// ParseSeverity accepts A, B, C or the display names High, Medium, Low,
// case-insensitively.
func ParseSeverity(s string) (Severity, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if v := Severity(s); slices.Contains(severities, v) {
		return v, true
	}
	if v, ok := severityNames[s]; ok {
		return v, true
	}
	return "", false
}

// DisplayName returns the operator-facing name for the level.
func (s Severity) DisplayName() string {
	switch s {
	case SeverityCritical:
		return "High"
	case SeverityMajor:
		return "Medium"
	case SeverityMinor:
		return "Low"
	}
	return string(s)
}

// Action is the disposition decided for an inspected vehicle part.
type Action string

const (
	ActionPass   Action = "Pass"
	ActionRework Action = "Rework"
	ActionScrap  Action = "Scrap"
	ActionHold   Action = "Hold"
	ActionReject Action = "Reject"
)

var actions = []Action{ActionPass, ActionRework, ActionScrap, ActionHold, ActionReject}

// Actions returns the fixed disposition set.
func Actions() []Action {
	return actions
}

// ParseAction matches s against the disposition set, ignoring case and
// surrounding space, and returns the canonical spelling.
func ParseAction(s string) (Action, bool) {
	s = strings.TrimSpace(s)
	for _, a := range actions {
		if strings.EqualFold(string(a), s) {
			return a, true
		}
	}
	return "", false
}

const (
	// NoDefectLocation is stored as the location of every pass verdict.
	NoDefectLocation = "none"
	// UnknownLocation is used when the model reports no location.
	UnknownLocation = "unknown"
	// NoDescription replaces an empty description.
	NoDescription = "(no description)"
)

var noDefectLabels = []string{"none", "ok", "normal", "no_defect"}

// IsNoDefect reports whether label is one of the "no defect" synonyms.
// The comparison is exact against the configured spelling.
func IsNoDefect(label string) bool {
	return slices.Contains(noDefectLabels, label)
}

// Verdict is a normalized classification of one image.
type Verdict struct {
	Label       string   `json:"label"`
	Confidence  float64  `json:"confidence"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	Location    string   `json:"location"`
	Action      Action   `json:"action"`
}
