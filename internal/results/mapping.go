package results

import (
	"fmt"
	"strings"
	"time"

	"github.com/JaimeStill/inspector/internal/defects"
	"github.com/JaimeStill/inspector/pkg/query"
	"github.com/JaimeStill/inspector/pkg/repository"
)

var projection = query.
	NewProjectionMap("", "results", "r").
	Project("id", "ID").
	Project("image_path", "ImagePath").
	Project("image_hash", "ImageHash").
	Project("defect_type", "Label").
	Project("severity", "Severity").
	Project("location", "Location").
	Project("score", "Confidence").
	Project("detail", "Description").
	Project("action", "Action").
	Project("created_at", "CreatedAt")

var hashProjection = query.
	NewProjectionMap("", "results", "r").
	Project("image_hash", "ImageHash")

var newestFirst = []query.SortField{
	{Field: "CreatedAt", Descending: true},
	{Field: "ID", Descending: true},
}

// DateLayout is the accepted format of Criteria.DateFrom and Criteria.DateTo.
const DateLayout = "2006-01-02"

// Criteria contains optional search filters. Blank fields are ignored and
// the rest are combined with AND.
//
// Label, Severity and Action match exactly; Location matches a
// case-insensitive substring; Keyword matches a case-insensitive substring of
// the image path, label, or description. DateFrom and DateTo bound the
// creation day inclusively and use DateLayout.
type Criteria struct {
	Label    string `json:"label,omitempty"`
	Severity string `json:"severity,omitempty"`
	Action   string `json:"action,omitempty"`
	Location string `json:"location,omitempty"`
	Keyword  string `json:"keyword,omitempty"`
	DateFrom string `json:"date_from,omitempty"`
	DateTo   string `json:"date_to,omitempty"`
}

// Apply adds the criteria conditions to a query builder.
// Calendar days are interpreted in loc.
func (c Criteria) Apply(b *query.Builder, loc *time.Location) (*query.Builder, error) {
	severity := optional(c.Severity)
	if severity != nil {
		if s, ok := defects.ParseSeverity(*severity); ok {
			v := string(s)
			severity = &v
		}
	}

	action := optional(c.Action)
	if action != nil {
		if a, ok := defects.ParseAction(*action); ok {
			v := string(a)
			action = &v
		}
	}

	b.
		WhereEquals("Label", optional(c.Label)).
		WhereEquals("Severity", severity).
		WhereEquals("Action", action).
		WhereContains("Location", optional(c.Location)).
		WhereSearch(optional(c.Keyword), "ImagePath", "Label", "Description")

	if from := optional(c.DateFrom); from != nil {
		day, err := parseDay(*from, loc)
		if err != nil {
			return nil, err
		}
		b.WhereAtLeast("CreatedAt", formatTime(day))
	}

	if to := optional(c.DateTo); to != nil {
		day, err := parseDay(*to, loc)
		if err != nil {
			return nil, err
		}
		b.WhereBefore("CreatedAt", formatTime(day.AddDate(0, 0, 1)))
	}

	return b, nil
}

func parseDay(s string, loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q: %w", ErrInvalidCriteria, s, err)
	}
	return day, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func scanRecord(s repository.Scanner) (Record, error) {
	var r Record
	var severity, action, created string

	err := s.Scan(
		&r.ID,
		&r.ImagePath,
		&r.ImageHash,
		&r.Label,
		&severity,
		&r.Location,
		&r.Confidence,
		&r.Description,
		&action,
		&created,
	)
	if err != nil {
		return r, err
	}

	r.Severity = defects.Severity(severity)
	r.Action = defects.Action(action)

	r.CreatedAt, err = time.Parse(TimeLayout, created)
	if err != nil {
		return r, fmt.Errorf("parse created_at %q: %w", created, err)
	}

	return r, nil
}

func scanCount(s repository.Scanner) (int, error) {
	var n int
	err := s.Scan(&n)
	return n, err
}

func scanHash(s repository.Scanner) (string, error) {
	var h string
	err := s.Scan(&h)
	return h, err
}
