package artifacts

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "artifacts.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordAndGet(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	modTime := time.Now().Truncate(time.Second)
	a := Artifact{
		SourcePath:    "/docs/report.pdf",
		OutputPath:    "/thumbs/report.thumb.png",
		SourceModTime: modTime,
		SourceSize:    1024,
	}

	if err := db.Record(ctx, a); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	got, err := db.Get(ctx, "/docs/report.pdf")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil {
		t.Fatal("Get() = nil, want artifact")
	}
	if got.OutputPath != a.OutputPath {
		t.Errorf("OutputPath = %q, want %q", got.OutputPath, a.OutputPath)
	}
	if got.SourceSize != 1024 {
		t.Errorf("SourceSize = %d, want 1024", got.SourceSize)
	}
	if !got.SourceModTime.Equal(modTime) {
		t.Errorf("SourceModTime = %v, want %v", got.SourceModTime, modTime)
	}
}

func TestGetMissing(t *testing.T) {
	db := testDB(t)

	got, err := db.Get(context.Background(), "/docs/nothing.pdf")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != nil {
		t.Errorf("Get(missing) = %+v, want nil", got)
	}
}

func TestRecordUpsert(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	a := Artifact{
		SourcePath:    "/docs/report.pdf",
		OutputPath:    "/thumbs/report.thumb.png",
		SourceModTime: time.Now().Truncate(time.Second),
		SourceSize:    100,
	}
	if err := db.Record(ctx, a); err != nil {
		t.Fatal(err)
	}

	a.SourceSize = 200
	if err := db.Record(ctx, a); err != nil {
		t.Fatalf("Record(upsert) error = %v", err)
	}

	got, err := db.Get(ctx, a.SourcePath)
	if err != nil {
		t.Fatal(err)
	}
	if got.SourceSize != 200 {
		t.Errorf("SourceSize after upsert = %d, want 200", got.SourceSize)
	}

	n, err := db.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func TestRecordOutputCollision(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	first := Artifact{
		SourcePath:    "/docs/report.pdf",
		OutputPath:    "/thumbs/report.thumb.png",
		SourceModTime: time.Now().Truncate(time.Second),
		SourceSize:    100,
	}
	if err := db.Record(ctx, first); err != nil {
		t.Fatal(err)
	}

	// A different source mapping to the same output name is a configuration
	// error, not an overwrite.
	second := first
	second.SourcePath = "/docs/sub/report.pdf"
	err := db.Record(ctx, second)
	if !errors.Is(err, ErrOutputCollision) {
		t.Errorf("Record(collision) error = %v, want ErrOutputCollision", err)
	}
}

func TestDelete(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	a := Artifact{
		SourcePath:    "/docs/report.pdf",
		OutputPath:    "/thumbs/report.thumb.png",
		SourceModTime: time.Now().Truncate(time.Second),
		SourceSize:    100,
	}
	if err := db.Record(ctx, a); err != nil {
		t.Fatal(err)
	}
	if err := db.Delete(ctx, a.SourcePath); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	got, err := db.Get(ctx, a.SourcePath)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Error("artifact still present after Delete")
	}

	// Deleting again is a no-op.
	if err := db.Delete(ctx, a.SourcePath); err != nil {
		t.Errorf("Delete(missing) error = %v", err)
	}
}

func TestAll(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	for _, src := range []string{"/docs/b.pdf", "/docs/a.pdf"} {
		a := Artifact{
			SourcePath:    src,
			OutputPath:    src + ".thumb.png",
			SourceModTime: time.Now().Truncate(time.Second),
			SourceSize:    1,
		}
		if err := db.Record(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	all, err := db.All(ctx)
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("All() returned %d artifacts, want 2", len(all))
	}
	if all[0].SourcePath != "/docs/a.pdf" {
		t.Errorf("All() not ordered by source path: first = %s", all[0].SourcePath)
	}
}

func TestIsCurrentFor(t *testing.T) {
	modTime := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a := Artifact{SourceSize: 100, SourceModTime: modTime}

	if !a.IsCurrentFor(100, modTime) {
		t.Error("matching size and mod time should be current")
	}
	if !a.IsCurrentFor(100, modTime.Add(500*time.Millisecond)) {
		t.Error("sub-second mod time drift should still be current (index stores seconds)")
	}
	if a.IsCurrentFor(101, modTime) {
		t.Error("size change should mark artifact stale")
	}
	if a.IsCurrentFor(100, modTime.Add(2*time.Second)) {
		t.Error("mod time change should mark artifact stale")
	}
}
