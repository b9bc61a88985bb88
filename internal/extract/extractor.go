// Package extract reads the text out of legal documents before they are chunked and embedded.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Format identifies how a document's text was extracted.
type Format string

const (
	FormatPDF   Format = "pdf"
	FormatDOCX  Format = "docx"
	FormatExcel Format = "xlsx"
	FormatText  Format = "text"
)

// ErrEmpty is returned when a document contains no extractable text.
var ErrEmpty = errors.New("document has no text")

// Document is the text of one file plus whatever metadata its format carries.
type Document struct {
	Text   string
	Format Format
	// Title and Author come from the PDF info dictionary when present.
	Title  string
	Author string
	Pages  int
}

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and extracts its text according to its extension.
// Unknown extensions are read as plain text.
func (e *Extractor) Extract(path string) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	doc, err := e.ExtractBytes(content, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return doc, nil
}

// ExtractBytes extracts text from content. ext includes the leading dot (".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) (*Document, error) {
	var (
		doc *Document
		err error
	)
	switch FormatFor(ext) {
	case FormatPDF:
		doc, err = extractPDF(content)
	case FormatDOCX:
		doc, err = extractDOCX(content)
	case FormatExcel:
		doc, err = extractExcel(content)
	default:
		doc = extractPlain(content)
	}
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(doc.Text) == "" {
		return nil, ErrEmpty
	}
	return doc, nil
}

// FormatFor maps a file extension to the format used to read it.
func FormatFor(ext string) Format {
	switch strings.ToLower(ext) {
	case ".pdf":
		return FormatPDF
	case ".docx":
		return FormatDOCX
	case ".xlsx", ".xlsm":
		return FormatExcel
	default:
		return FormatText
	}
}
