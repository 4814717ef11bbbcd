package srs

import (
	"regexp"
	"strings"
)

// FallbackTitle is used when the generated text carries no title line.
const FallbackTitle = "SRS DOCUMENT"

var (
	titleLine  = regexp.MustCompile(`Title:\s*(.*)`)
	emphasisRe = regexp.MustCompile(`[*#_]`)
)

// ExtractTitle separates the first "Title: ..." line from the rest of the text.
// The line is removed once; markdown emphasis characters are stripped from the title.
// Without a title line the text is returned unchanged with FallbackTitle.
func ExtractTitle(raw string) (title string, body string) {
	lines := strings.SplitAfter(raw, "\n")
	for i, line := range lines {
		m := titleLine.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
		if m == nil {
			continue
		}
		title = strings.TrimSpace(emphasisRe.ReplaceAllString(m[1], ""))
		if title == "" {
			title = FallbackTitle
		}
		body = strings.Join(lines[:i], "") + strings.Join(lines[i+1:], "")
		return title, body
	}
	return FallbackTitle, raw
}
