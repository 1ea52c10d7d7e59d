package parser

import "strings"

// parseText decodes UTF-8, silently dropping invalid byte sequences.
func parseText(data []byte) (string, error) {
	return strings.ToValidUTF8(string(data), ""), nil
}
