// Package results implements the classification result store.
// It owns the results schema, deduplicates records by image content hash,
// and provides insert, upsert, filtered search, and bulk delete.
package results

import (
	"time"

	"github.com/JaimeStill/inspector/internal/defects"
)

// TimeLayout is the fixed-width UTC layout of stored creation timestamps.
// Lexical order of formatted values matches chronological order.
const TimeLayout = "2006-01-02T15:04:05Z"

// Record is one stored classification outcome for one image.
type Record struct {
	ID          int64            `json:"id"`
	ImagePath   string           `json:"image_path"`
	ImageHash   string           `json:"image_hash"`
	Label       string           `json:"defect_type"`
	Severity    defects.Severity `json:"severity"`
	Location    string           `json:"location"`
	Confidence  float64          `json:"score"`
	Description string           `json:"detail"`
	Action      defects.Action   `json:"action"`
	CreatedAt   time.Time        `json:"created_at"`
}

// NewRecord pairs a verdict with the image it was produced for.
func NewRecord(path, hash string, v defects.Verdict) Record {
	return Record{
		ImagePath:   path,
		ImageHash:   hash,
		Label:       v.Label,
		Severity:    v.Severity,
		Location:    v.Location,
		Confidence:  v.Confidence,
		Description: v.Description,
		Action:      v.Action,
	}
}

// Verdict returns the classification fields of the record.
func (r Record) Verdict() defects.Verdict {
	return defects.Verdict{
		Label:       r.Label,
		Confidence:  r.Confidence,
		Description: r.Description,
		Severity:    r.Severity,
		Location:    r.Location,
		Action:      r.Action,
	}
}
