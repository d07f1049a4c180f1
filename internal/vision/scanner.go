// Package vision indexes model-generated descriptions of image-heavy PDF pages.
package vision

import (
	"bytes"
	"fmt"
	"image/png"
	"os"

	"github.com/gen2brain/go-fitz"
	"github.com/ledongthuc/pdf"
)

// ImageSize is the pixel size of one embedded image.
type ImageSize struct {
	Width  int
	Height int
}

// PageScanner exposes what the description pipeline needs from an open PDF.
// Pages are 1-based. RenderPNG reports the rendered image's pixel size, which
// depends on the page geometry and dpi, not on any embedded image.
type PageScanner interface {
	PageCount() int
	ImageSizes(page int) []ImageSize
	RenderPNG(page, dpi int) ([]byte, ImageSize, error)
	Close() error
}

// Opener opens a document for scanning.
type Opener func(path string) (PageScanner, error)

type pdfScanner struct {
	doc    *fitz.Document
	file   *os.File
	reader *pdf.Reader
}

// OpenPDF opens path for page rendering and embedded-image inspection.
func OpenPDF(path string) (PageScanner, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf for rendering: %w", err)
	}
	f, reader, err := pdf.Open(path)
	if err != nil {
		doc.Close()
		return nil, fmt.Errorf("open pdf for inspection: %w", err)
	}
	return &pdfScanner{doc: doc, file: f, reader: reader}, nil
}

func (s *pdfScanner) PageCount() int {
	return s.doc.NumPage()
}

// ImageSizes walks the page's XObject resources and collects the pixel sizes
// of everything declared as an image. Malformed object trees yield whatever
// was collected before the parser gave up.
func (s *pdfScanner) ImageSizes(page int) (sizes []ImageSize) {
	defer func() {
		recover()
	}()
	if page < 1 || page > s.reader.NumPage() {
		return nil
	}
	p := s.reader.Page(page)
	if p.V.IsNull() {
		return nil
	}
	xobj := p.Resources().Key("XObject")
	for _, name := range xobj.Keys() {
		obj := xobj.Key(name)
		if obj.Key("Subtype").Name() != "Image" {
			continue
		}
		sizes = append(sizes, ImageSize{
			Width:  int(obj.Key("Width").Int64()),
			Height: int(obj.Key("Height").Int64()),
		})
	}
	return sizes
}

func (s *pdfScanner) RenderPNG(page, dpi int) ([]byte, ImageSize, error) {
	img, err := s.doc.ImageDPI(page-1, float64(dpi))
	if err != nil {
		return nil, ImageSize{}, fmt.Errorf("render page %d: %w", page, err)
	}
	bounds := img.Bounds()
	size := ImageSize{Width: bounds.Dx(), Height: bounds.Dy()}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, ImageSize{}, fmt.Errorf("encode page %d: %w", page, err)
	}
	return buf.Bytes(), size, nil
}

func (s *pdfScanner) Close() error {
	err := s.doc.Close()
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	return err
}
