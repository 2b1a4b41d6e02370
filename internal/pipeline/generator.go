package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"doc-thumbnailer/internal/artifacts"
	"doc-thumbnailer/internal/doctypes"
	"doc-thumbnailer/internal/fsutil"
	"doc-thumbnailer/internal/logging"
	"doc-thumbnailer/internal/metrics"

	"github.com/disintegration/imaging"
)

// Config configures thumbnail generation.
type Config struct {
	// OutputDir receives all published thumbnails.
	OutputDir string
	// Width and Height bound the thumbnail; aspect ratio is preserved.
	Width, Height int
	// Page selects which PDF page becomes the thumbnail (1-based).
	Page int
	// StabilityProbe is the interval between the two stat samples used to
	// decide whether a source is still being written.
	StabilityProbe time.Duration
}

// Generator runs the per-job pipeline and maintains the artifact index.
type Generator struct {
	cfg Config
	db  *artifacts.DB
}

// NewGenerator creates a Generator writing into cfg.OutputDir.
func NewGenerator(cfg Config, db *artifacts.DB) *Generator {
	if cfg.Page < 1 {
		cfg.Page = 1
	}
	if cfg.StabilityProbe <= 0 {
		cfg.StabilityProbe = 150 * time.Millisecond
	}
	return &Generator{cfg: cfg, db: db}
}

// OutputPath maps a source path to its thumbnail path. The mapping is a
// pure function of the source filename, stable across runs.
func (g *Generator) OutputPath(sourcePath string) string {
	return filepath.Join(g.cfg.OutputDir, doctypes.ThumbnailName(filepath.Base(sourcePath)))
}

// Process runs the full pipeline for one source document. cancelled is
// polled at step boundaries; once it reports true the job is abandoned,
// nothing is published, and ErrCancelled is returned.
func (g *Generator) Process(ctx context.Context, sourcePath string, cancelled func() bool) error {
	docType := doctypes.GetDocTypeForPath(sourcePath)
	if docType == doctypes.DocTypeOther {
		return fmt.Errorf("%w: %s", ErrUnsupported, sourcePath)
	}

	// Stability check: a source still growing is re-queued, not failed.
	start := time.Now()
	info, err := fsutil.CheckStable(sourcePath, g.cfg.StabilityProbe)
	metrics.PipelineStageDuration.WithLabelValues("stability").Observe(time.Since(start).Seconds())
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrSourceGone, sourcePath)
	}
	if err != nil {
		return err
	}

	outputPath := g.OutputPath(sourcePath)

	// Skip when the recorded artifact still matches the source and the
	// output is actually on disk.
	if art, err := g.db.Get(ctx, sourcePath); err == nil && art != nil {
		if art.IsCurrentFor(info.Size(), info.ModTime()) && fileExists(art.OutputPath) {
			logging.Debug("Thumbnail current for %s, skipping", sourcePath)
			return nil
		}
	}

	// Surface output-name collisions before doing any work.
	if owner, err := g.db.SourceForOutput(ctx, outputPath); err == nil && owner != "" && owner != sourcePath {
		metrics.ThumbnailsGeneratedTotal.WithLabelValues(string(docType), "error").Inc()
		return fmt.Errorf("%w: %s and %s both map to %s",
			ErrUnsupported, owner, sourcePath, outputPath)
	}

	if cancelled() {
		return ErrCancelled
	}

	start = time.Now()
	img, err := g.rasterize(sourcePath, docType)
	metrics.PipelineStageDuration.WithLabelValues("rasterize").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ThumbnailsGeneratedTotal.WithLabelValues(string(docType), "error").Inc()
		return fmt.Errorf("rasterize %s: %w", sourcePath, err)
	}

	if cancelled() {
		return ErrCancelled
	}

	start = time.Now()
	thumb := imaging.Fit(img, g.cfg.Width, g.cfg.Height, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.PNG); err != nil {
		metrics.PipelineStageDuration.WithLabelValues("encode").Observe(time.Since(start).Seconds())
		metrics.ThumbnailsGeneratedTotal.WithLabelValues(string(docType), "error").Inc()
		return fmt.Errorf("encode thumbnail for %s: %w", sourcePath, err)
	}
	metrics.PipelineStageDuration.WithLabelValues("encode").Observe(time.Since(start).Seconds())

	if cancelled() {
		return ErrCancelled
	}

	start = time.Now()
	if err := fsutil.WriteFileAtomic(outputPath, buf.Bytes(), 0644); err != nil {
		metrics.PipelineStageDuration.WithLabelValues("publish").Observe(time.Since(start).Seconds())
		metrics.ThumbnailsGeneratedTotal.WithLabelValues(string(docType), "error").Inc()
		return fmt.Errorf("publish thumbnail for %s: %w", sourcePath, err)
	}
	metrics.PipelineStageDuration.WithLabelValues("publish").Observe(time.Since(start).Seconds())

	if err := g.db.Record(ctx, artifacts.Artifact{
		SourcePath:    sourcePath,
		OutputPath:    outputPath,
		SourceModTime: info.ModTime().Truncate(time.Second),
		SourceSize:    info.Size(),
	}); err != nil {
		return fmt.Errorf("record artifact for %s: %w", sourcePath, err)
	}

	metrics.ThumbnailsGeneratedTotal.WithLabelValues(string(docType), "success").Inc()
	logging.Info("Generated thumbnail %s (%dx%d) for %s",
		outputPath, thumb.Bounds().Dx(), thumb.Bounds().Dy(), sourcePath)
	return nil
}

// Remove deletes the thumbnail and artifact record for a removed source.
// A missing thumbnail is not an error; removal must be idempotent.
func (g *Generator) Remove(ctx context.Context, sourcePath string) error {
	outputPath := g.OutputPath(sourcePath)

	if err := os.Remove(outputPath); err == nil {
		metrics.ThumbnailsRemovedTotal.Inc()
		logging.Info("Removed thumbnail %s for deleted source %s", outputPath, sourcePath)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("remove thumbnail %s: %w", outputPath, err)
	}

	if err := g.db.Delete(ctx, sourcePath); err != nil {
		return fmt.Errorf("delete artifact record for %s: %w", sourcePath, err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
