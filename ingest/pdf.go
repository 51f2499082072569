package ingest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// pdfMagic is the required prefix of a PDF file.
const pdfMagic = "%PDF-"

// isPDF reports whether data starts with the PDF magic bytes.
func isPDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte(pdfMagic))
}

// readPages extracts the plain text of every page, in order. Pages whose
// text cannot be decoded come back as empty strings so page numbering stays
// aligned with the document. The pdf library panics on some malformed
// structures; that is converted to an error here.
func readPages(data []byte) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	numPages := reader.NumPage()
	pages = make([]string, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pages[i-1] = strings.TrimSpace(text)
	}
	return pages, nil
}
