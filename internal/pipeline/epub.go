package pipeline

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"image"
	"io"
	"path"
	"strings"

	"github.com/disintegration/imaging"
)

// container.xml points at the package document (OPF).
type epubContainer struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

// The OPF package document carries the cover reference, either as a
// legacy <meta name="cover"> entry or as an EPUB3 cover-image property.
type epubPackage struct {
	Metadata struct {
		Metas []struct {
			Name    string `xml:"name,attr"`
			Content string `xml:"content,attr"`
		} `xml:"meta"`
	} `xml:"metadata"`
	Manifest struct {
		Items []struct {
			ID         string `xml:"id,attr"`
			Href       string `xml:"href,attr"`
			Properties string `xml:"properties,attr"`
		} `xml:"item"`
	} `xml:"manifest"`
}

// extractEPUBCover opens an EPUB archive and decodes its declared cover image.
func extractEPUBCover(epubPath string) (image.Image, error) {
	zr, err := zip.OpenReader(epubPath)
	if err != nil {
		return nil, fmt.Errorf("%w: not a readable EPUB archive: %v", ErrCorrupt, err)
	}
	defer zr.Close()

	containerData, err := readZipFile(&zr.Reader, "META-INF/container.xml")
	if err != nil {
		return nil, fmt.Errorf("%w: missing container.xml: %v", ErrCorrupt, err)
	}

	var container epubContainer
	if err := xml.Unmarshal(containerData, &container); err != nil {
		return nil, fmt.Errorf("%w: malformed container.xml: %v", ErrCorrupt, err)
	}
	if len(container.Rootfiles) == 0 || container.Rootfiles[0].FullPath == "" {
		return nil, fmt.Errorf("%w: no rootfile in container.xml", ErrCorrupt)
	}
	opfPath := container.Rootfiles[0].FullPath

	opfData, err := readZipFile(&zr.Reader, opfPath)
	if err != nil {
		return nil, fmt.Errorf("%w: missing package document %s: %v", ErrCorrupt, opfPath, err)
	}

	var pkg epubPackage
	if err := xml.Unmarshal(opfData, &pkg); err != nil {
		return nil, fmt.Errorf("%w: malformed package document: %v", ErrCorrupt, err)
	}

	coverHref := findCoverHref(pkg)
	if coverHref == "" {
		return nil, ErrNoCover
	}

	// Manifest hrefs are relative to the OPF's directory, with zip-style
	// forward slashes.
	coverPath := path.Join(path.Dir(opfPath), coverHref)
	coverData, err := readZipFile(&zr.Reader, coverPath)
	if err != nil {
		return nil, fmt.Errorf("%w: cover %s not in archive: %v", ErrNoCover, coverPath, err)
	}

	img, err := imaging.Decode(bytes.NewReader(coverData))
	if err != nil {
		return nil, fmt.Errorf("%w: undecodable cover image: %v", ErrCorrupt, err)
	}
	return img, nil
}

// findCoverHref resolves the cover item, trying the EPUB2 meta pointer
// first and the EPUB3 cover-image property second.
func findCoverHref(pkg epubPackage) string {
	var coverID string
	for _, meta := range pkg.Metadata.Metas {
		if meta.Name == "cover" {
			coverID = meta.Content
			break
		}
	}

	for _, item := range pkg.Manifest.Items {
		if coverID != "" && item.ID == coverID {
			return item.Href
		}
		if strings.Contains(item.Properties, "cover-image") {
			return item.Href
		}
	}
	return ""
}

func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}
	return nil, fmt.Errorf("%s not found in archive", name)
}
