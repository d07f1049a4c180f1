// Package extract provides text extraction from the supported upload formats.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Supported reports whether ext (with or without leading dot) is a recognized
// upload format.
func Supported(ext string) bool {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "txt", "pdf", "csv", "xlsx":
		return true
	}
	return false
}

// Extract reads the file at path and returns its text content.
// Recognized formats are .txt, .pdf, .csv, and .xlsx; any other extension
// yields an empty string. Returns an error if the file cannot be read or the
// content cannot be parsed; callers index nothing in that case.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch ext {
	case ".pdf":
		return extractPDF(content)
	case ".csv":
		return extractCSV(content)
	case ".xlsx":
		return extractExcel(content)
	case ".txt":
		return extractPlain(content)
	default:
		return "", nil
	}
}
