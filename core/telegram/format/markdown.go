package format

import "strings"

const mdV2Specials = "_*[]()~`>#+-=|{}.!\\"

// EscapeMarkdownV2 escapes MarkdownV2 special characters so arbitrary user
// input (emails, wallet addresses, upstream error text) can be interpolated
// into formatted replies.
func EscapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if strings.ContainsRune(mdV2Specials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// EscapeMarkdown escapes the legacy Markdown (V1) special characters.
func EscapeMarkdown(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch r {
		case '_', '*', '`', '[', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
