package parser

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Supported extensions, lowercase and including the leading dot.
const (
	ExtText = ".txt"
	ExtPDF  = ".pdf"
	ExtDocx = ".docx"
)

type parseFunc func(data []byte) (string, error)

var parsers = map[string]parseFunc{
	ExtText: parseText,
	ExtPDF:  parsePDF,
	ExtDocx: parseDocx,
}

// ExtensionOf returns the lowercase extension of filename, including the dot.
// A filename without an extension yields "".
func ExtensionOf(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// Supported reports whether ext has a parser. Matching is case-insensitive.
func Supported(ext string) bool {
	_, ok := parsers[strings.ToLower(ext)]
	return ok
}

// Parse extracts plain text from data according to ext.
// Unknown extensions return ErrUnsupportedFormat; decode failures return *Error.
func Parse(data []byte, ext string) (string, error) {
	parse, ok := parsers[strings.ToLower(ext)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return parse(data)
}
