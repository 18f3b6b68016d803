package services

import (
	"regexp"
	"strings"
)

var (
	reTOC         = regexp.MustCompile(`(?im)^[ \t]*(table of contents|contents)[ \t]*:?[ \t]*$`)
	rePageNumber  = regexp.MustCompile(`(?im)^[ \t]*(page[ \t]*)?\d+([ \t]*(of|/)[ \t]*\d+)?[ \t]*$`)
	reDotLeader   = regexp.MustCompile(`(?m)^.*\.{4,}[ \t]*\d+[ \t]*$`)
	reTrailingWS  = regexp.MustCompile(`(?m)[ \t]+$`)
	reMultiBlank  = regexp.MustCompile(`\n{3,}`)
	reControlChar = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f]`)
)

// PreCleanText strips extraction noise before the text is sent to the
// model: control bytes, table-of-contents lines, bare page numbers and runs
// of blank lines.
func PreCleanText(text string) string {
	cleaned := strings.ToValidUTF8(text, "")
	cleaned = strings.ReplaceAll(cleaned, "\r\n", "\n")
	cleaned = reControlChar.ReplaceAllString(cleaned, "")

	cleaned = reTOC.ReplaceAllString(cleaned, "")
	cleaned = reDotLeader.ReplaceAllString(cleaned, "")
	cleaned = rePageNumber.ReplaceAllString(cleaned, "")

	cleaned = reTrailingWS.ReplaceAllString(cleaned, "")
	cleaned = reMultiBlank.ReplaceAllString(cleaned, "\n\n")
	return strings.TrimSpace(cleaned)
}

// truncateRunes returns at most n characters of s.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
