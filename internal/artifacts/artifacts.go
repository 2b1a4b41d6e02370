package artifacts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"doc-thumbnailer/internal/logging"
	"doc-thumbnailer/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// ErrOutputCollision is returned by Record when two distinct sources map to
// the same output path. This is a configuration error to surface, never a
// silent overwrite.
var ErrOutputCollision = errors.New("output path already recorded for a different source")

// Artifact describes one generated thumbnail and the source state it was
// generated from.
type Artifact struct {
	SourcePath    string
	OutputPath    string
	SourceModTime time.Time
	SourceSize    int64
	GeneratedAt   time.Time
}

// IsCurrentFor reports whether the recorded source state still matches the
// given size and modification time. A mismatch means the thumbnail is stale.
func (a Artifact) IsCurrentFor(size int64, modTime time.Time) bool {
	return a.SourceSize == size && a.SourceModTime.Equal(modTime.Truncate(time.Second))
}

// DB is the artifact index backed by SQLite.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the artifact index at dbPath. The parent
// directory must already exist and be writable; use config.Load to validate
// it before calling.
func Open(ctx context.Context, dbPath string) (*DB, error) {
	logging.Info("Artifact index path: %s", dbPath)

	// WAL mode with a busy timeout prevents "database is locked" errors when
	// workers and the reconciler touch the index concurrently.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact index: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to artifact index: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)

	d := &DB{db: db}
	if err := d.initialize(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize artifact schema: %w", err)
	}

	logging.Info("Artifact index initialized at %s", dbPath)
	return d, nil
}

func (d *DB) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS artifacts (
		source_path TEXT PRIMARY KEY,
		output_path TEXT NOT NULL UNIQUE,
		source_mod_time INTEGER NOT NULL,
		source_size INTEGER NOT NULL,
		generated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_artifacts_output_path ON artifacts(output_path);
	`

	start := time.Now()
	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	_, err := d.db.ExecContext(opCtx, schema)
	observe("init_schema", start, err)
	return err
}

// Record upserts the artifact row for a source path. It returns
// ErrOutputCollision when the output path is already claimed by a different
// source.
func (d *DB) Record(ctx context.Context, a Artifact) error {
	start := time.Now()
	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	// Reject the collision before the upsert so the error is typed rather
	// than a raw constraint violation.
	var existingSource string
	err := d.db.QueryRowContext(opCtx,
		`SELECT source_path FROM artifacts WHERE output_path = ? AND source_path != ?`,
		a.OutputPath, a.SourcePath).Scan(&existingSource)
	switch {
	case err == nil:
		observe("record", start, ErrOutputCollision)
		return fmt.Errorf("%w: %s already produced by %s", ErrOutputCollision, a.OutputPath, existingSource)
	case !errors.Is(err, sql.ErrNoRows):
		observe("record", start, err)
		return fmt.Errorf("collision check: %w", err)
	}

	_, err = d.db.ExecContext(opCtx, `
		INSERT INTO artifacts (source_path, output_path, source_mod_time, source_size, generated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(source_path) DO UPDATE SET
			output_path = excluded.output_path,
			source_mod_time = excluded.source_mod_time,
			source_size = excluded.source_size,
			generated_at = excluded.generated_at`,
		a.SourcePath, a.OutputPath, a.SourceModTime.Unix(), a.SourceSize, time.Now().Unix())
	observe("record", start, err)
	if err != nil {
		return fmt.Errorf("record artifact for %s: %w", a.SourcePath, err)
	}
	return nil
}

// Get returns the artifact record for a source path, or (nil, nil) when no
// record exists.
func (d *DB) Get(ctx context.Context, sourcePath string) (*Artifact, error) {
	start := time.Now()
	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var a Artifact
	var modTime, generatedAt int64
	err := d.db.QueryRowContext(opCtx, `
		SELECT source_path, output_path, source_mod_time, source_size, generated_at
		FROM artifacts WHERE source_path = ?`, sourcePath).
		Scan(&a.SourcePath, &a.OutputPath, &modTime, &a.SourceSize, &generatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		observe("get", start, nil)
		return nil, nil
	}
	observe("get", start, err)
	if err != nil {
		return nil, fmt.Errorf("get artifact for %s: %w", sourcePath, err)
	}

	a.SourceModTime = time.Unix(modTime, 0)
	a.GeneratedAt = time.Unix(generatedAt, 0)
	return &a, nil
}

// SourceForOutput returns the source path currently recorded for an output
// path, or "" when the output is unclaimed.
func (d *DB) SourceForOutput(ctx context.Context, outputPath string) (string, error) {
	start := time.Now()
	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var source string
	err := d.db.QueryRowContext(opCtx,
		`SELECT source_path FROM artifacts WHERE output_path = ?`, outputPath).Scan(&source)
	if errors.Is(err, sql.ErrNoRows) {
		observe("get", start, nil)
		return "", nil
	}
	observe("get", start, err)
	if err != nil {
		return "", fmt.Errorf("lookup output %s: %w", outputPath, err)
	}
	return source, nil
}

// Delete removes the artifact record for a source path. Deleting a missing
// record is not an error.
func (d *DB) Delete(ctx context.Context, sourcePath string) error {
	start := time.Now()
	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(opCtx, `DELETE FROM artifacts WHERE source_path = ?`, sourcePath)
	observe("delete", start, err)
	if err != nil {
		return fmt.Errorf("delete artifact for %s: %w", sourcePath, err)
	}
	return nil
}

// All returns every artifact record, ordered by source path. The reconciler
// uses this to find orphaned thumbnails.
func (d *DB) All(ctx context.Context) ([]Artifact, error) {
	start := time.Now()
	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(opCtx, `
		SELECT source_path, output_path, source_mod_time, source_size, generated_at
		FROM artifacts ORDER BY source_path`)
	if err != nil {
		observe("all", start, err)
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var result []Artifact
	for rows.Next() {
		var a Artifact
		var modTime, generatedAt int64
		if err := rows.Scan(&a.SourcePath, &a.OutputPath, &modTime, &a.SourceSize, &generatedAt); err != nil {
			observe("all", start, err)
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		a.SourceModTime = time.Unix(modTime, 0)
		a.GeneratedAt = time.Unix(generatedAt, 0)
		result = append(result, a)
	}
	err = rows.Err()
	observe("all", start, err)
	if err != nil {
		return nil, fmt.Errorf("iterate artifacts: %w", err)
	}
	return result, nil
}

// Count returns the number of recorded artifacts.
func (d *DB) Count(ctx context.Context) (int, error) {
	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var n int
	if err := d.db.QueryRowContext(opCtx, `SELECT COUNT(*) FROM artifacts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count artifacts: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (d *DB) Close() error {
	return d.db.Close()
}

func observe(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
