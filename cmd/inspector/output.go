package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/JaimeStill/inspector/internal/defects"
	"github.com/JaimeStill/inspector/internal/results"
)

const (
	displayTime    = "2006-01-02 15:04:05"
	maxDetailWidth = 60
)

func writeVerdict(w io.Writer, v defects.Verdict, asJSON bool) error {
	if asJSON {
		return writeJSON(w, v)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Label:\t%s\n", v.Label)
	fmt.Fprintf(tw, "Confidence:\t%.2f\n", v.Confidence)
	fmt.Fprintf(tw, "Severity:\t%s (%s)\n", v.Severity, v.Severity.DisplayName())
	fmt.Fprintf(tw, "Location:\t%s\n", v.Location)
	fmt.Fprintf(tw, "Action:\t%s\n", v.Action)
	fmt.Fprintf(tw, "Description:\t%s\n", v.Description)
	return tw.Flush()
}

// writeRecords prints records; total is the number of matching rows, which
// may exceed len(records) when the limit truncated the listing.
func writeRecords(w io.Writer, records []results.Record, total int, asJSON bool) error {
	if asJSON {
		if records == nil {
			records = []results.Record{}
		}
		return writeJSON(w, records)
	}

	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No results.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tIMAGE\tLABEL\tSEVERITY\tLOCATION\tSCORE\tACTION\tDETAIL")
	for _, r := range records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%.2f\t%s\t%s\n",
			r.ID,
			r.CreatedAt.Local().Format(displayTime),
			r.ImagePath,
			r.Label,
			r.Severity.DisplayName(),
			r.Location,
			r.Confidence,
			r.Action,
			truncate(r.Description, maxDetailWidth),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if total > len(records) {
		_, err := fmt.Fprintf(w, "%d of %d results.\n", len(records), total)
		return err
	}
	_, err := fmt.Fprintf(w, "%d results.\n", len(records))
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
