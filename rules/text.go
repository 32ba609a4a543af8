package rules

import (
	"regexp"
	"strings"
)

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// CleanLine normalises a server line before triggers see it: the trailing
// prompt marker and any markup the server wraps around text are removed.
func CleanLine(line string) string {
	line = strings.TrimSuffix(line, "\r\n> ")
	line = htmlTag.ReplaceAllString(line, "")
	return strings.TrimSpace(line)
}
