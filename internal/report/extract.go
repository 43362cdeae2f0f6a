// Package report extracts plain text from uploaded report files so it can be
// fed into the prompt as context. Extraction failures are the handler's
// concern; the recommendation pipeline only ever sees a string.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractText reads the document at path and returns its text content.
// PDFs go through the pdf reader; plain text is read through as-is.
// Image uploads carry no extractable text.
func ExtractText(path, mime string) (string, error) {
	switch mime {
	case "application/pdf":
		return extractPDF(path)
	case "text/plain":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", path, err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("no text extractor for content type %s", mime)
	}
}

func extractPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf %s: %w", path, err)
	}
	defer f.Close()

	textReader, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract pdf text: %w", err)
	}

	var builder strings.Builder
	if _, err := io.Copy(&builder, textReader); err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}

	text := strings.TrimSpace(builder.String())
	if text == "" {
		return "", fmt.Errorf("pdf %s contains no extractable text", path)
	}
	return text, nil
}
