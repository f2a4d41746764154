// Package inspection runs the classify-then-store pipeline for single
// images and folders.
package inspection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/JaimeStill/inspector/internal/classifier"
	"github.com/JaimeStill/inspector/internal/defects"
	"github.com/JaimeStill/inspector/internal/results"
	"github.com/JaimeStill/inspector/pkg/storage"
)

const archivePrefix = "images/"

// Inspector classifies images and records their verdicts.
type Inspector struct {
	classifier classifier.Classifier
	normalizer *defects.Normalizer
	results    results.System
	archive    storage.System
	logger     *slog.Logger
	workers    int
}

// Option customizes an Inspector.
type Option func(*Inspector)

// WithArchive copies every saved image into blob storage.
func WithArchive(s storage.System) Option {
	return func(i *Inspector) { i.archive = s }
}

// WithHashWorkers bounds the number of files hashed concurrently during a batch.
func WithHashWorkers(n int) Option {
	return func(i *Inspector) {
		if n > 0 {
			i.workers = n
		}
	}
}

// New creates an Inspector over a classifier, normalizer, and result store.
func New(
	c classifier.Classifier,
	n *defects.Normalizer,
	r results.System,
	logger *slog.Logger,
	opts ...Option,
) *Inspector {
	i := &Inspector{
		classifier: c,
		normalizer: n,
		results:    r,
		logger:     logger.With("system", "inspection"),
		workers:    4,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Classify returns the normalized verdict for the image at path.
// Classifier failures degrade to the fallback verdict.
func (i *Inspector) Classify(ctx context.Context, path string) defects.Verdict {
	raw, err := i.classifier.Classify(ctx, path)
	if err != nil {
		i.logger.WarnContext(ctx, "classification failed", "path", path, "error", err)
		return i.normalizer.Fallback(err)
	}
	return i.normalizer.Build(raw)
}

// Save records verdict for the image at path, replacing any verdict stored
// for the same path or content.
func (i *Inspector) Save(ctx context.Context, path string, verdict defects.Verdict) (*results.Record, error) {
	hash, err := HashFile(path)
	if err != nil {
		return nil, err
	}

	rec, err := i.results.Upsert(ctx, results.NewRecord(path, hash, i.normalizer.Sanitize(verdict)))
	if err != nil {
		return nil, err
	}

	i.store(ctx, path, hash)
	return rec, nil
}

// Delete removes the given records and their archived images.
// Archive failures are logged and do not affect the count.
func (i *Inspector) Delete(ctx context.Context, ids []int64) (int, error) {
	var keys []string
	if i.archive != nil {
		for _, id := range ids {
			rec, err := i.results.Find(ctx, id)
			if errors.Is(err, results.ErrNotFound) {
				continue
			}
			if err != nil {
				return 0, err
			}
			keys = append(keys, archiveKey(rec.ImagePath, rec.ImageHash))
		}
	}

	n, err := i.results.Delete(ctx, ids)
	if err != nil {
		return 0, err
	}

	for _, key := range keys {
		if err := i.archive.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			i.logger.WarnContext(ctx, "archive delete failed", "key", key, "error", err)
		}
	}
	return n, nil
}

// Restore writes the archived image of record id to dest, or to the
// recorded image path when dest is empty.
func (i *Inspector) Restore(ctx context.Context, id int64, dest string) (string, error) {
	if i.archive == nil {
		return "", ErrArchiveDisabled
	}

	rec, err := i.results.Find(ctx, id)
	if err != nil {
		return "", err
	}
	if dest == "" {
		dest = rec.ImagePath
	}

	body, err := i.archive.Download(ctx, archiveKey(rec.ImagePath, rec.ImageHash))
	if err != nil {
		return "", fmt.Errorf("download image %d: %w", id, err)
	}
	defer body.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create restore directory: %w", err)
	}

	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dest, err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", dest, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("write %s: %w", dest, err)
	}

	i.logger.InfoContext(ctx, "image restored", "id", id, "dest", dest)
	return dest, nil
}

// store archives the image at path. Content already archived is skipped
// and failures are logged.
func (i *Inspector) store(ctx context.Context, path, hash string) {
	if i.archive == nil {
		return
	}

	key := archiveKey(path, hash)

	exists, err := i.archive.Exists(ctx, key)
	if err != nil {
		i.logger.WarnContext(ctx, "archive lookup failed", "key", key, "error", err)
		return
	}
	if exists {
		return
	}

	f, err := os.Open(path)
	if err != nil {
		i.logger.WarnContext(ctx, "archive open failed", "path", path, "error", err)
		return
	}
	defer f.Close()

	if err := i.archive.Upload(ctx, key, f, classifier.MimeType(path)); err != nil {
		i.logger.WarnContext(ctx, "archive upload failed", "key", key, "error", err)
		return
	}
	i.logger.DebugContext(ctx, "image archived", "key", key)
}

func archiveKey(path, hash string) string {
	return archivePrefix + hash + strings.ToLower(filepath.Ext(path))
}
