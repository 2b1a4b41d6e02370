package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"os/exec"
	"strconv"
	"strings"

	"doc-thumbnailer/internal/doctypes"
	"doc-thumbnailer/internal/fsutil"
	"doc-thumbnailer/internal/logging"
	"doc-thumbnailer/internal/metrics"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// rasterize produces a raster frame for a document. The frame is larger
// than or equal to the final thumbnail box; the encode stage does the final
// fit.
func (g *Generator) rasterize(path string, docType doctypes.DocType) (image.Image, error) {
	// Render at twice the output box so the final Lanczos fit has pixels
	// to work with.
	width := g.cfg.Width * 2
	height := g.cfg.Height * 2

	switch docType {
	case doctypes.DocTypePDF:
		return g.rasterizePDF(path, width, height)
	case doctypes.DocTypeImage:
		return g.rasterizeImage(path, width, height)
	case doctypes.DocTypeEPUB:
		return extractEPUBCover(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
	}
}

// rasterizePDF renders the configured page via libvips, falling back to the
// external pdftoppm tool when vips cannot load the document.
func (g *Generator) rasterizePDF(path string, width, height int) (image.Image, error) {
	if IsVipsAvailable() {
		img, err := loadPDFPageWithVips(path, g.cfg.Page, width, height)
		if err == nil {
			return img, nil
		}
		// Password errors are final regardless of backend.
		if Classify(err) == ClassPermanent && !strings.Contains(err.Error(), "not a known file format") {
			return nil, err
		}
		logging.Debug("vips failed for %s: %v, trying pdftoppm fallback", path, err)
	}

	metrics.RasterFallbacksTotal.Inc()
	return rasterizePDFWithTool(path, g.cfg.Page, height)
}

// rasterizePDFWithTool shells out to poppler's pdftoppm to render a single
// page to PNG on stdout.
func rasterizePDFWithTool(path string, page, scaleTo int) (image.Image, error) {
	toolPath, err := exec.LookPath("pdftoppm")
	if err != nil {
		return nil, fmt.Errorf("%w: pdftoppm not found: %v", ErrToolMissing, err)
	}
	logging.Debug("Using pdftoppm: %s", toolPath)

	pageArg := strconv.Itoa(page)
	cmd := exec.Command(toolPath,
		"-png",
		"-f", pageArg,
		"-l", pageArg,
		"-scale-to", strconv.Itoa(scaleTo),
		path,
		"-",
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, classifyToolError(err, stderr.String())
	}

	if stdout.Len() == 0 {
		return nil, fmt.Errorf("%w: pdftoppm produced no output for %s", ErrCorrupt, path)
	}

	img, _, err := image.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to decode pdftoppm output: %w", err)
	}
	return img, nil
}

// classifyToolError maps pdftoppm stderr output to typed failures.
func classifyToolError(err error, stderr string) error {
	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "incorrect password"),
		strings.Contains(lower, "encrypted"):
		return fmt.Errorf("%w: %s", ErrPasswordProtected, strings.TrimSpace(stderr))
	case strings.Contains(lower, "may not be a pdf file"),
		strings.Contains(lower, "syntax error"),
		strings.Contains(lower, "couldn't read xref table"):
		return fmt.Errorf("%w: %s", ErrCorrupt, strings.TrimSpace(stderr))
	default:
		return fmt.Errorf("pdftoppm failed: %v, stderr: %s", err, strings.TrimSpace(stderr))
	}
}

// rasterizeImage decodes a plain image source, preferring the pure Go
// decoders and falling back to libvips for anything they reject.
func (g *Generator) rasterizeImage(path string, width, height int) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err == nil {
		return img, nil
	}
	logging.Debug("imaging.Open failed for %s: %v, trying stdlib decode", path, err)

	img, err = decodeImageFile(path)
	if err == nil {
		return img, nil
	}
	logging.Debug("stdlib decode failed for %s: %v, trying vips", path, err)

	img, vipsErr := loadImageWithVips(path, width, height)
	if vipsErr != nil {
		return nil, fmt.Errorf("%w: all decoders failed for %s: %v", ErrCorrupt, path, err)
	}
	return img, nil
}

func decodeImageFile(path string) (image.Image, error) {
	// Sources often live on network mounts; open with stale-handle retry.
	file, err := fsutil.OpenWithRetry(path, fsutil.DefaultRetryConfig())
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return nil, err
	}
	logging.Debug("Decoded image format: %s for %s", format, path)
	return img, nil
}
