package parser

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
)

// parsePDF extracts text page by page. Each page is followed by a newline,
// including pages without a content stream. A page whose content cannot be
// decoded contributes no text; only a document that cannot be opened fails.
func parsePDF(data []byte) (text string, err error) {
	// The pdf package panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = &Error{Format: "pdf", Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", &Error{Format: "pdf", Err: err}
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		content, err := pageText(reader, i)
		if err != nil {
			slog.Default().With("component", "parser").Warn("skipping unreadable pdf page",
				"page", i, "err", err)
		}
		sb.WriteString(content)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// pageText returns the plain text of page i, or "" and an error if the page is malformed.
func pageText(reader *pdf.Reader, i int) (content string, err error) {
	defer func() {
		if r := recover(); r != nil {
			content = ""
			err = fmt.Errorf("page %d: panic: %v", i, r)
		}
	}()

	page := reader.Page(i)
	if page.V.IsNull() {
		return "", nil
	}
	content, err = page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("page %d: %w", i, err)
	}
	return content, nil
}
