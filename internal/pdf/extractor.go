package pdfutil

import (
	"bytes"
	"fmt"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// Extractor reads plain text out of PDF documents using ledongthuc/pdf. The zero
// value is ready to use.
type Extractor struct{}

// Extract returns the text of the first pageLimit pages of data. A pageLimit of
// zero or less reads every page.
func (Extractor) Extract(data []byte, pageLimit int) (string, error) {
	return ExtractText(data, pageLimit)
}

// ExtractText reads PDF bytes and returns plain text, one line break per page.
func ExtractText(data []byte, pageLimit int) (text string, err error) {
	// ledongthuc/pdf panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("parse pdf: %v", r)
		}
	}()
	reader := bytes.NewReader(data)
	doc, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("new pdf reader: %w", err)
	}
	total := doc.NumPage()
	if pageLimit > 0 && pageLimit < total {
		total = pageLimit
	}
	var builder strings.Builder
	for page := 1; page <= total; page++ {
		p := doc.Page(page)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", page, err)
		}
		builder.WriteString(content)
		builder.WriteString("\n")
	}
	return builder.String(), nil
}
