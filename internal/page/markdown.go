package page

import "strings"

// MarkdownPrefix marks persisted values of markdown-typed fields.
const MarkdownPrefix = "markdown://"

// EncodeMarkdown prefixes s for persistence.
func EncodeMarkdown(s string) string { return MarkdownPrefix + s }

// EncodeMarkdownValue encodes v when it is a string and returns other values unchanged.
func EncodeMarkdownValue(v any) any {
	if s, ok := v.(string); ok {
		return EncodeMarkdown(s)
	}
	return v
}

// DecodeMarkdown strips the prefix from string values. Anything else, including
// nil, is returned unchanged.
func DecodeMarkdown(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	return strings.TrimPrefix(s, MarkdownPrefix)
}
