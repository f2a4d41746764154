package results

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"

	"github.com/JaimeStill/inspector/pkg/pagination"
	"github.com/JaimeStill/inspector/pkg/query"
	"github.com/JaimeStill/inspector/pkg/repository"
)

// chunkSize bounds the number of bound parameters in one IN list.
const chunkSize = 500

const insertColumns = `image_path, image_hash, defect_type, severity, location, score, detail, action, created_at`

type repo struct {
	db     *sql.DB
	driver string
	logger *slog.Logger
	limits pagination.Config
	now    func() time.Time
	loc    *time.Location

	schemaMu sync.Mutex
	m        *migrate.Migrate
}

// Option customizes a result store.
type Option func(*repo)

// WithClock sets the source of creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *repo) { r.now = now }
}

// WithLocation sets the time zone in which search dates are interpreted.
func WithLocation(loc *time.Location) Option {
	return func(r *repo) { r.loc = loc }
}

// New creates a result store over db and ensures its schema exists.
// driver is the database/sql driver name db was opened with.
func New(
	ctx context.Context,
	db *sql.DB,
	driver string,
	logger *slog.Logger,
	limits pagination.Config,
	opts ...Option,
) (System, error) {
	r := &repo{
		db:     db,
		driver: driver,
		logger: logger.With("system", "results"),
		limits: limits,
		now:    time.Now,
		loc:    time.Local,
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *repo) Insert(ctx context.Context, rec Record) (bool, error) {
	if err := validate(rec); err != nil {
		return false, err
	}

	q := `INSERT INTO results (` + insertColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT DO NOTHING`

	args := r.insertArgs(rec)

	n, err := heal(ctx, r, func() (int64, error) {
		return repository.ExecAffected(ctx, r.db, q, args...)
	})
	if err != nil {
		return false, fmt.Errorf("insert result %s: %w", rec.ImagePath, err)
	}

	if n == 0 {
		r.logger.Debug("result already stored", "path", rec.ImagePath, "hash", rec.ImageHash)
		return false, nil
	}

	r.logger.Info("result inserted",
		"path", rec.ImagePath,
		"hash", rec.ImageHash,
		"label", rec.Label,
	)
	return true, nil
}

func (r *repo) Upsert(ctx context.Context, rec Record) (*Record, error) {
	if err := validate(rec); err != nil {
		return nil, err
	}

	upsertQ := `INSERT INTO results (` + insertColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (image_path) DO UPDATE SET
			image_hash = excluded.image_hash,
			defect_type = excluded.defect_type,
			severity = excluded.severity,
			location = excluded.location,
			score = excluded.score,
			detail = excluded.detail,
			action = excluded.action
		RETURNING ` + projection.Returning()

	args := r.insertArgs(rec)

	stored, err := heal(ctx, r, func() (Record, error) {
		return repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Record, error) {
			if _, err := repository.ExecAffected(
				ctx, tx,
				"DELETE FROM results WHERE image_hash = $1 AND image_path <> $2",
				rec.ImageHash, rec.ImagePath,
			); err != nil {
				return Record{}, err
			}
			return repository.QueryOne(ctx, tx, upsertQ, args, scanRecord)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("upsert result %s: %w", rec.ImagePath, err)
	}

	r.logger.Info("result upserted",
		"id", stored.ID,
		"path", stored.ImagePath,
		"hash", stored.ImageHash,
		"label", stored.Label,
	)
	return &stored, nil
}

func (r *repo) Fetch(ctx context.Context, limit int) ([]Record, error) {
	return r.Search(ctx, Criteria{}, limit)
}

func (r *repo) Search(ctx context.Context, criteria Criteria, limit int) ([]Record, error) {
	qb, err := criteria.Apply(query.NewBuilder(projection, newestFirst...), r.loc)
	if err != nil {
		return nil, err
	}

	q, args := qb.BuildLimit(r.limits.Normalize(limit))

	records, err := heal(ctx, r, func() ([]Record, error) {
		return repository.QueryMany(ctx, r.db, q, args, scanRecord)
	})
	if err != nil {
		return nil, fmt.Errorf("search results: %w", err)
	}
	return records, nil
}

func (r *repo) Count(ctx context.Context, criteria Criteria) (int, error) {
	qb, err := criteria.Apply(query.NewBuilder(projection), r.loc)
	if err != nil {
		return 0, err
	}

	q, args := qb.BuildCount()

	n, err := heal(ctx, r, func() (int, error) {
		return repository.QueryOne(ctx, r.db, q, args, scanCount)
	})
	if err != nil {
		return 0, fmt.Errorf("count results: %w", err)
	}
	return n, nil
}

func (r *repo) Delete(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	deleted, err := heal(ctx, r, func() (int64, error) {
		return repository.WithTx(ctx, r.db, func(tx *sql.Tx) (int64, error) {
			var total int64
			for chunk := range slices.Chunk(ids, chunkSize) {
				n, err := repository.ExecAffected(
					ctx, tx,
					"DELETE FROM results WHERE id IN ("+placeholders(len(chunk))+")",
					toArgs(chunk)...,
				)
				if err != nil {
					return 0, err
				}
				total += n
			}
			return total, nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("delete results: %w", err)
	}

	r.logger.Info("results deleted", "requested", len(ids), "deleted", deleted)
	return int(deleted), nil
}

func (r *repo) Find(ctx context.Context, id int64) (*Record, error) {
	return r.findBy(ctx, "ID", id)
}

func (r *repo) FindByHash(ctx context.Context, hash string) (*Record, error) {
	return r.findBy(ctx, "ImageHash", hash)
}

func (r *repo) KnownHashes(ctx context.Context, hashes []string) (map[string]bool, error) {
	known := make(map[string]bool)

	for chunk := range slices.Chunk(hashes, chunkSize) {
		q, args := query.NewBuilder(hashProjection).
			WhereIn("ImageHash", toArgs(chunk)).
			Build()

		found, err := heal(ctx, r, func() ([]string, error) {
			return repository.QueryMany(ctx, r.db, q, args, scanHash)
		})
		if err != nil {
			return nil, fmt.Errorf("known hashes: %w", err)
		}

		for _, h := range found {
			known[h] = true
		}
	}

	return known, nil
}

func (r *repo) findBy(ctx context.Context, field string, value any) (*Record, error) {
	q, args := query.NewBuilder(projection).BuildSingle(field, value)

	rec, err := heal(ctx, r, func() (Record, error) {
		return repository.QueryOne(ctx, r.db, q, args, scanRecord)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &rec, nil
}

func (r *repo) insertArgs(rec Record) []any {
	return []any{
		rec.ImagePath,
		rec.ImageHash,
		rec.Label,
		string(rec.Severity),
		rec.Location,
		rec.Confidence,
		rec.Description,
		string(rec.Action),
		formatTime(r.now()),
	}
}

// heal runs op and, if it failed because the results table is missing,
// ensures the schema and retries exactly once.
func heal[T any](ctx context.Context, r *repo, op func() (T, error)) (T, error) {
	result, err := op()
	if err == nil || !repository.IsUndefinedTable(err) {
		return result, err
	}

	r.logger.Warn("results table missing, ensuring schema", "error", err)

	var zero T
	if err := r.EnsureSchema(ctx); err != nil {
		return zero, err
	}

	result, err = op()
	if err != nil && repository.IsUndefinedTable(err) {
		return zero, fmt.Errorf("%w: %w", ErrSchemaMissing, err)
	}
	return result, err
}

func validate(rec Record) error {
	if strings.TrimSpace(rec.ImagePath) == "" {
		return fmt.Errorf("%w: image path required", ErrInvalidRecord)
	}
	if strings.TrimSpace(rec.ImageHash) == "" {
		return fmt.Errorf("%w: image hash required", ErrInvalidRecord)
	}
	return nil
}

func placeholders(n int) string {
	ph := make([]string, n)
	for i := range n {
		ph[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(ph, ", ")
}

func toArgs[T any](items []T) []any {
	args := make([]any, len(items))
	for i, v := range items {
		args[i] = v
	}
	return args
}
