package extract

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// pdfText reads the text layer of a PDF. Each page becomes at least one
// paragraph; line moves inside a page become line breaks.
func pdfText(ctx context.Context, r io.ReaderAt, size int64) (string, error) {
	doc, err := pdf.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("not a valid PDF: %w", err)
	}

	pages := make([]string, 0, doc.NumPage())
	for i := 1; i <= doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}
		// Font resource names are scoped to the page.
		fonts := make(map[string]*pdf.Font)
		for _, name := range page.Fonts() {
			f := page.Font(name)
			fonts[name] = &f
		}

		text, err := page.GetPlainText(fonts)
		if err != nil {
			return "", fmt.Errorf("unreadable PDF page %d: %w", i, err)
		}
		pages = append(pages, text)
	}

	return strings.Join(pages, "\n\n"), nil
}
