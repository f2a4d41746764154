package inspection_test

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/goleak"

	"github.com/JaimeStill/inspector/internal/defects"
	"github.com/JaimeStill/inspector/internal/inspection"
	"github.com/JaimeStill/inspector/internal/results"
	"github.com/JaimeStill/inspector/pkg/lifecycle"
	"github.com/JaimeStill/inspector/pkg/pagination"
	"github.com/JaimeStill/inspector/pkg/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const dentResponse = "```json\n" + `{"label":"Dent","confidence":0.9,"description":"dent on hood","severity":"B","location":"hood","action":"Rework"}` + "\n```"

type fakeClassifier struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	calls     []string
	onCall    func(path string)
}

func (f *fakeClassifier) Classify(ctx context.Context, path string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, filepath.Base(path))
	f.mu.Unlock()

	if f.onCall != nil {
		f.onCall(path)
	}
	if err := f.errs[filepath.Base(path)]; err != nil {
		return "", err
	}
	if resp, ok := f.responses[filepath.Base(path)]; ok {
		return resp, nil
	}
	return dentResponse, nil
}

// failingStore fails inserts and upserts for one image name.
type failingStore struct {
	results.System
	name string
}

func (s *failingStore) Insert(ctx context.Context, rec results.Record) (bool, error) {
	if filepath.Base(rec.ImagePath) == s.name {
		return false, errors.New("disk full")
	}
	return s.System.Insert(ctx, rec)
}

type memArchive struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemArchive() *memArchive {
	return &memArchive{blobs: make(map[string][]byte)}
}

func (a *memArchive) Start(*lifecycle.Coordinator) error { return nil }

func (a *memArchive) Upload(_ context.Context, key string, r io.Reader, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.blobs[key] = data
	return nil
}

func (a *memArchive) Download(_ context.Context, key string) (io.ReadCloser, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	data, ok := a.blobs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (a *memArchive) Delete(_ context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.blobs[key]; !ok {
		return storage.ErrNotFound
	}
	delete(a.blobs, key)
	return nil
}

func (a *memArchive) Exists(_ context.Context, key string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.blobs[key]
	return ok, nil
}

type fixture struct {
	db         *sql.DB
	store      results.System
	classifier *fakeClassifier
	normalizer *defects.Normalizer
	logger     *slog.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := sql.Open("sqlite3", "file:"+filepath.Join(t.TempDir(), "results.db")+"?_busy_timeout=5000")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := results.New(context.Background(), db, "sqlite3", logger,
		pagination.Config{DefaultLimit: 200, MaxLimit: 1000})
	if err != nil {
		t.Fatalf("results.New: %v", err)
	}

	return &fixture{
		db:         db,
		store:      store,
		classifier: &fakeClassifier{},
		normalizer: defects.NewNormalizer(defects.DefaultLabels),
		logger:     logger,
	}
}

func (f *fixture) inspector(opts ...inspection.Option) *inspection.Inspector {
	return inspection.New(f.classifier, f.normalizer, f.store, f.logger, opts...)
}

func (f *fixture) count(t *testing.T) int {
	t.Helper()
	var n int
	if err := f.db.QueryRow("SELECT COUNT(*) FROM results").Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func writeImage(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func hashOf(t *testing.T, path string) string {
	t.Helper()
	h, err := inspection.HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	return h
}

func TestIsImage(t *testing.T) {
	for _, path := range []string{"a.png", "a.JPG", "a.jpeg", "a.bmp", "a.gif", "a.webp", "a.tif", "a.TIFF"} {
		if !inspection.IsImage(path) {
			t.Errorf("IsImage(%q) = false", path)
		}
	}
	for _, path := range []string{"a.txt", "a.pdf", "png", "a.png.bak"} {
		if inspection.IsImage(path) {
			t.Errorf("IsImage(%q) = true", path)
		}
	}
}

func TestEnumerate(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "b.png", "b")
	writeImage(t, dir, "nested/deep/a.JPG", "a")
	writeImage(t, dir, "notes.txt", "n")
	writeImage(t, dir, "nested/c.tiff", "c")

	paths, err := inspection.Enumerate(context.Background(), dir)
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}

	want := []string{
		filepath.Join(dir, "b.png"),
		filepath.Join(dir, "nested", "c.tiff"),
		filepath.Join(dir, "nested", "deep", "a.JPG"),
	}
	if len(paths) != len(want) {
		t.Fatalf("Enumerate = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("paths[%d] = %s, want %s", i, paths[i], want[i])
		}
	}
}

func TestEnumerateNotDirectory(t *testing.T) {
	path := writeImage(t, t.TempDir(), "a.png", "a")
	if _, err := inspection.Enumerate(context.Background(), path); !errors.Is(err, inspection.ErrNotDirectory) {
		t.Errorf("Enumerate(file) = %v, want ErrNotDirectory", err)
	}
}

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	a := writeImage(t, dir, "a.png", "same bytes")
	b := writeImage(t, dir, "b.jpg", "same bytes")
	c := writeImage(t, dir, "c.jpg", "other bytes")

	ha, hb, hc := hashOf(t, a), hashOf(t, b), hashOf(t, c)
	if len(ha) != 64 {
		t.Errorf("hash length = %d, want 64", len(ha))
	}
	if ha != hb {
		t.Error("identical content should hash identically")
	}
	if ha == hc {
		t.Error("different content should hash differently")
	}
}

func TestClassifyNormalizes(t *testing.T) {
	f := newFixture(t)
	path := writeImage(t, t.TempDir(), "a.png", "a")

	v := f.inspector().Classify(context.Background(), path)
	if v.Label != "dent" || v.Severity != defects.SeverityMajor || v.Action != defects.ActionRework {
		t.Errorf("verdict = %+v", v)
	}
}

func TestClassifyFallsBackOnError(t *testing.T) {
	f := newFixture(t)
	f.classifier.errs = map[string]error{"a.png": errors.New("connection refused")}
	path := writeImage(t, t.TempDir(), "a.png", "a")

	v := f.inspector().Classify(context.Background(), path)
	if v.Label != defects.DefaultLabels[0] {
		t.Errorf("label = %s, want fallback %s", v.Label, defects.DefaultLabels[0])
	}
	if v.Confidence != 0 || v.Action != defects.ActionHold || v.Location != defects.UnknownLocation {
		t.Errorf("fallback verdict = %+v", v)
	}
	if !strings.Contains(v.Description, "connection refused") {
		t.Errorf("description = %q, want error annotation", v.Description)
	}
}

func TestSaveReplacesVerdict(t *testing.T) {
	f := newFixture(t)
	ins := f.inspector()
	ctx := context.Background()
	path := writeImage(t, t.TempDir(), "a.png", "a")

	first, err := ins.Save(ctx, path, defects.Verdict{Label: "dent", Severity: "A", Action: "Rework"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	second, err := ins.Save(ctx, path, defects.Verdict{Label: "Scratch", Description: "edited by operator"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("ID changed from %d to %d", first.ID, second.ID)
	}
	if second.Label != "scratch" || second.Description != "edited by operator" {
		t.Errorf("record = %+v", second)
	}
	if second.Action != defects.ActionHold || second.Severity != defects.SeverityMinor {
		t.Errorf("missing fields should be defaulted: %+v", second)
	}
	if n := f.count(t); n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}
}

func TestArchiveSaveDeleteRestore(t *testing.T) {
	f := newFixture(t)
	archive := newMemArchive()
	ins := f.inspector(inspection.WithArchive(archive))
	ctx := context.Background()

	dir := t.TempDir()
	path := writeImage(t, dir, "Car.PNG", "png bytes")
	key := "images/" + hashOf(t, path) + ".png"

	rec, err := ins.Save(ctx, path, defects.Verdict{Label: "dent"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if ok, _ := archive.Exists(ctx, key); !ok {
		t.Fatalf("image not archived under %s", key)
	}

	dest := filepath.Join(dir, "restored", "car.png")
	got, err := ins.Restore(ctx, rec.ID, dest)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	data, err := os.ReadFile(got)
	if err != nil || string(data) != "png bytes" {
		t.Errorf("restored content = %q, %v", data, err)
	}

	n, err := ins.Delete(ctx, []int64{rec.ID, rec.ID + 100})
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n != 1 {
		t.Errorf("Delete = %d, want 1", n)
	}
	if ok, _ := archive.Exists(ctx, key); ok {
		t.Error("archived image should be removed with its record")
	}
}

func TestRestoreWithoutArchive(t *testing.T) {
	f := newFixture(t)
	if _, err := f.inspector().Restore(context.Background(), 1, ""); !errors.Is(err, inspection.ErrArchiveDisabled) {
		t.Errorf("Restore = %v, want ErrArchiveDisabled", err)
	}
}

func TestRunBatchSkipsStoredContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dir := t.TempDir()
	writeImage(t, dir, "a.png", "image a")
	writeImage(t, dir, "b.jpg", "image b")
	c := writeImage(t, dir, "c.webp", "image c")

	if _, err := f.store.Insert(ctx, results.NewRecord("/old/location/c.webp", hashOf(t, c), defects.Verdict{Label: "none"})); err != nil {
		t.Fatalf("seed: %v", err)
	}

	summary, err := f.inspector().RunBatch(ctx, dir, inspection.SkipExisting, nil)
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}

	if got := summary.String(); got != "2 of 2 new images saved." {
		t.Errorf("summary = %q", got)
	}
	if summary.Found != 3 || summary.Known != 1 || summary.Saved != 2 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.RunID == "" {
		t.Error("RunID should be set")
	}
	if n := f.count(t); n != 3 {
		t.Errorf("rows = %d, want 3", n)
	}
	if len(f.classifier.calls) != 2 {
		t.Errorf("classifier calls = %v, want a.png and b.jpg", f.classifier.calls)
	}

	again, err := f.inspector().RunBatch(ctx, dir, inspection.SkipExisting, nil)
	if err != nil {
		t.Fatalf("second RunBatch: %v", err)
	}
	if got := again.String(); got != "No new images to save." {
		t.Errorf("second summary = %q", got)
	}
}

func TestRunBatchDuplicateContentInFolder(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	writeImage(t, dir, "a.png", "same")
	writeImage(t, dir, "copy/a.png", "same")

	summary, err := f.inspector().RunBatch(context.Background(), dir, inspection.SkipExisting, nil)
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if summary.Total != 1 || summary.Saved != 1 || summary.Known != 1 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestRunBatchOverwrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dir := t.TempDir()
	a := writeImage(t, dir, "a.png", "image a")

	if _, err := f.store.Insert(ctx, results.NewRecord(a, hashOf(t, a), defects.Verdict{Label: "none", Action: "Pass", Severity: "C"})); err != nil {
		t.Fatalf("seed: %v", err)
	}

	summary, err := f.inspector().RunBatch(ctx, dir, inspection.Overwrite, nil)
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if got := summary.String(); got != "1 of 1 new images saved." {
		t.Errorf("summary = %q", got)
	}

	rec, err := f.store.FindByHash(ctx, hashOf(t, a))
	if err != nil {
		t.Fatalf("FindByHash: %v", err)
	}
	if rec.Label != "dent" || rec.Action != defects.ActionRework {
		t.Errorf("verdict not replaced: %+v", rec)
	}
	if n := f.count(t); n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}
}

func TestRunBatchCountsErrors(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	writeImage(t, dir, "a.png", "a")
	writeImage(t, dir, "b.png", "b")
	writeImage(t, dir, "c.png", "c")
	f.classifier.errs = map[string]error{"a.png": errors.New("timeout")}
	f.store = &failingStore{System: f.store, name: "b.png"}

	var reports []inspection.Progress
	summary, err := f.inspector().RunBatch(context.Background(), dir, inspection.SkipExisting, func(p inspection.Progress) {
		reports = append(reports, p)
	})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}

	if got := summary.String(); got != "2 of 3 new images saved, 1 error." {
		t.Errorf("summary = %q", got)
	}
	if len(reports) != 3 {
		t.Fatalf("progress reports = %d, want 3", len(reports))
	}
	for i, p := range reports {
		if p.Index != i+1 || p.Total != 3 || p.RunID != summary.RunID {
			t.Errorf("report %d = %+v", i, p)
		}
	}
	if reports[0].Verdict.Action != defects.ActionHold || !reports[0].Saved {
		t.Errorf("classifier failure should save a Hold verdict: %+v", reports[0])
	}
	if reports[1].Err == nil || reports[1].Saved {
		t.Errorf("store failure should be reported: %+v", reports[1])
	}
}

func TestRunBatchCancelBetweenItems(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	for i := range 3 {
		writeImage(t, dir, fmt.Sprintf("%d.png", i), fmt.Sprintf("image %d", i))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.classifier.onCall = func(string) { cancel() }

	summary, err := f.inspector().RunBatch(ctx, dir, inspection.SkipExisting, nil)
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}

	if got := summary.String(); got != "1 of 3 new images saved, cancelled." {
		t.Errorf("summary = %q", got)
	}
	if n := f.count(t); n != 1 {
		t.Errorf("in-flight item should complete: rows = %d, want 1", n)
	}
}

func TestRunBatchCancelledBeforeStart(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	writeImage(t, dir, "a.png", "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := f.inspector().RunBatch(ctx, dir, inspection.SkipExisting, nil)
	if err != nil {
		t.Fatalf("RunBatch = %v, want nil error", err)
	}
	if !summary.Cancelled {
		t.Error("summary not marked cancelled")
	}
	if got := summary.String(); got != "Batch cancelled before any image was processed." {
		t.Errorf("summary = %q", got)
	}
	if n := f.count(t); n != 0 {
		t.Errorf("rows = %d, want 0", n)
	}
}

func TestSummaryString(t *testing.T) {
	tests := []struct {
		name    string
		summary inspection.Summary
		want    string
	}{
		{"nothing new", inspection.Summary{}, "No new images to save."},
		{"all saved", inspection.Summary{Total: 2, Saved: 2}, "2 of 2 new images saved."},
		{"skipped", inspection.Summary{Total: 3, Saved: 2, Skipped: 1}, "2 of 3 new images saved, 1 already stored."},
		{"errors", inspection.Summary{Total: 5, Saved: 3, Errors: 2}, "3 of 5 new images saved, 2 errors."},
		{"cancelled while hashing", inspection.Summary{Found: 64, Cancelled: true}, "Batch cancelled before any image was processed."},
		{"cancelled before first item", inspection.Summary{Total: 3, Cancelled: true}, "Batch cancelled before any image was processed."},
		{"cancelled", inspection.Summary{Total: 4, Saved: 1, Errors: 1, Cancelled: true}, "1 of 4 new images saved, 1 error, cancelled."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.summary.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}
