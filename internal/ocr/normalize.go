package ocr

import (
	"regexp"
	"strings"
)

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reTabs       = regexp.MustCompile(`\t+`)
	reMultiSpace = regexp.MustCompile(` {2,}`)
	reBoxNoise   = regexp.MustCompile(`(?m)^\s*[_\-|=]{3,}\s*$`)
	reEdgeNoise  = regexp.MustCompile(`^[|_~"'` + "`" + `]+|[|_~"'` + "`" + `]+$`)
)

// CleanText removes ruling lines and border artifacts that OCR picks up at region
// edges, and flattens the result onto a single line.
func CleanText(s string) string {
	if s == "" {
		return s
	}
	s = reCRLF.ReplaceAllString(s, "\n")
	s = reBoxNoise.ReplaceAllString(s, "")
	s = reTabs.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			kept = append(kept, l)
		}
	}
	s = strings.Join(kept, " ")
	s = reMultiSpace.ReplaceAllString(s, " ")
	return strings.TrimSpace(reEdgeNoise.ReplaceAllString(s, ""))
}
