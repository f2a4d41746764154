package inspection

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/inspector/internal/defects"
	"github.com/JaimeStill/inspector/internal/results"
)

// Policy selects how a batch treats images whose content is already stored.
type Policy int

const (
	// SkipExisting classifies only content not yet stored and never
	// replaces a stored verdict.
	SkipExisting Policy = iota
	// Overwrite classifies every image and replaces stored verdicts.
	Overwrite
)

func (p Policy) String() string {
	if p == Overwrite {
		return "overwrite"
	}
	return "skip-existing"
}

// Progress reports the outcome of one batch item.
type Progress struct {
	RunID   string
	Index   int
	Total   int
	Path    string
	Verdict defects.Verdict
	Saved   bool
	Err     error
}

// Summary describes a finished batch.
type Summary struct {
	RunID     string
	Found     int
	Known     int
	Total     int
	Saved     int
	Skipped   int
	Errors    int
	Cancelled bool
}

func (s Summary) String() string {
	if s.Cancelled && s.Saved+s.Skipped+s.Errors == 0 {
		return "Batch cancelled before any image was processed."
	}
	if s.Total == 0 {
		return "No new images to save."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d of %d new images saved", s.Saved, s.Total)
	if s.Skipped > 0 {
		fmt.Fprintf(&sb, ", %d already stored", s.Skipped)
	}
	if s.Errors == 1 {
		sb.WriteString(", 1 error")
	} else if s.Errors > 1 {
		fmt.Fprintf(&sb, ", %d errors", s.Errors)
	}
	if s.Cancelled {
		sb.WriteString(", cancelled")
	}
	sb.WriteString(".")
	return sb.String()
}

type candidate struct {
	path string
	hash string
	err  error
}

// RunBatch classifies and stores the images under folder one at a time.
// Cancelling ctx stops the batch between items; the item in flight always
// completes. Cancellation at any stage, including while the folder is walked
// or hashed, returns a summary marked Cancelled and a nil error. Per-item
// failures are counted in the summary and do not stop the batch. progress,
// when non-nil, is called after every item.
func (i *Inspector) RunBatch(
	ctx context.Context,
	folder string,
	policy Policy,
	progress func(Progress),
) (Summary, error) {
	summary := Summary{RunID: uuid.NewString()}
	logger := i.logger.With("run_id", summary.RunID)

	paths, err := Enumerate(ctx, folder)
	if err != nil {
		if ctx.Err() != nil {
			summary.Cancelled = true
			return summary, nil
		}
		return summary, err
	}
	summary.Found = len(paths)

	hashed, err := i.hashAll(ctx, paths)
	if err != nil {
		summary.Cancelled = true
		return summary, nil
	}

	pending, err := i.selectPending(ctx, hashed, policy)
	if err != nil {
		if ctx.Err() != nil {
			summary.Cancelled = true
			return summary, nil
		}
		return summary, err
	}
	summary.Known = len(paths) - len(pending)
	summary.Total = len(pending)

	logger.InfoContext(ctx, "batch started",
		"folder", folder,
		"policy", policy.String(),
		"found", summary.Found,
		"pending", summary.Total,
	)

	for idx, c := range pending {
		if ctx.Err() != nil {
			summary.Cancelled = true
			break
		}

		p := Progress{
			RunID: summary.RunID,
			Index: idx + 1,
			Total: summary.Total,
			Path:  c.path,
		}

		if c.err != nil {
			p.Err = c.err
		} else {
			p.Verdict, p.Saved, p.Err = i.ingest(context.WithoutCancel(ctx), c, policy)
		}

		switch {
		case p.Err != nil:
			summary.Errors++
			logger.ErrorContext(ctx, "batch item failed", "path", c.path, "error", p.Err)
		case p.Saved:
			summary.Saved++
			logger.InfoContext(ctx, "batch item saved", "path", c.path, "label", p.Verdict.Label)
		default:
			summary.Skipped++
			logger.DebugContext(ctx, "batch item already stored", "path", c.path)
		}

		if progress != nil {
			progress(p)
		}
	}

	logger.InfoContext(ctx, "batch finished",
		"saved", summary.Saved,
		"skipped", summary.Skipped,
		"errors", summary.Errors,
		"cancelled", summary.Cancelled,
	)
	return summary, nil
}

func (i *Inspector) ingest(ctx context.Context, c candidate, policy Policy) (defects.Verdict, bool, error) {
	verdict := i.Classify(ctx, c.path)
	rec := results.NewRecord(c.path, c.hash, verdict)

	if policy == Overwrite {
		if _, err := i.results.Upsert(ctx, rec); err != nil {
			return verdict, false, err
		}
		i.store(ctx, c.path, c.hash)
		return verdict, true, nil
	}

	inserted, err := i.results.Insert(ctx, rec)
	if err != nil {
		return verdict, false, err
	}
	if inserted {
		i.store(ctx, c.path, c.hash)
	}
	return verdict, inserted, nil
}

// hashAll hashes paths with bounded concurrency. Per-file failures are kept
// on the candidate; only cancellation fails the call.
func (i *Inspector) hashAll(ctx context.Context, paths []string) ([]candidate, error) {
	out := make([]candidate, len(paths))

	var g errgroup.Group
	g.SetLimit(i.workers)

	for idx, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			hash, err := HashFile(path)
			out[idx] = candidate{path: path, hash: hash, err: err}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// selectPending drops content repeated within the batch and, for
// SkipExisting, content already stored. Unhashable files stay pending so
// their errors are reported.
func (i *Inspector) selectPending(ctx context.Context, hashed []candidate, policy Policy) ([]candidate, error) {
	var known map[string]bool
	if policy == SkipExisting {
		hashes := make([]string, 0, len(hashed))
		for _, c := range hashed {
			if c.err == nil {
				hashes = append(hashes, c.hash)
			}
		}

		var err error
		known, err = i.results.KnownHashes(ctx, hashes)
		if err != nil {
			return nil, err
		}
	}

	seen := make(map[string]bool, len(hashed))
	pending := make([]candidate, 0, len(hashed))
	for _, c := range hashed {
		if c.err == nil {
			if seen[c.hash] || known[c.hash] {
				continue
			}
			seen[c.hash] = true
		}
		pending = append(pending, c)
	}
	return pending, nil
}
