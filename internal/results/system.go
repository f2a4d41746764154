package results

import "context"

// System defines the public contract for result store operations.
type System interface {
	// EnsureSchema creates the results table and its indexes when absent.
	// It is idempotent and never touches existing rows.
	EnsureSchema(ctx context.Context) error

	// Insert writes rec unless a row with the same path or content hash
	// exists. It reports whether a row was written.
	Insert(ctx context.Context, rec Record) (bool, error)

	// Upsert writes rec, replacing the verdict stored for the same path.
	// A row holding the same content hash under another path is removed.
	Upsert(ctx context.Context, rec Record) (*Record, error)

	Fetch(ctx context.Context, limit int) ([]Record, error)
	Search(ctx context.Context, criteria Criteria, limit int) ([]Record, error)

	// Count returns how many rows match criteria, ignoring any limit.
	Count(ctx context.Context, criteria Criteria) (int, error)

	// Delete removes the rows with the given ids and returns how many existed.
	Delete(ctx context.Context, ids []int64) (int, error)

	Find(ctx context.Context, id int64) (*Record, error)
	FindByHash(ctx context.Context, hash string) (*Record, error)

	// KnownHashes returns the subset of hashes already stored.
	KnownHashes(ctx context.Context, hashes []string) (map[string]bool, error)
}
