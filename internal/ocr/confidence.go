package ocr

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	reDate   = regexp.MustCompile(`\b\d{1,4}[-/.]\d{1,2}[-/.]\d{2,4}\b`)
	reCurr   = regexp.MustCompile(`\b(usd|eur|gbp|cad|aud|inr|jpy)\b|[$£€]`)
	reAmount = regexp.MustCompile(`\b\d{1,3}(,\d{3})*(\.\d{2})\b|\b\d+\.\d{2}\b`)
	reIdent  = regexp.MustCompile(`\b[a-z]{0,4}[-#/]?\d{3,}\b`)
)

// HeuristicConfidence scores text for engines that do not report confidence.
// It rewards printable content and invoice-shaped tokens.
func HeuristicConfidence(txt string) float64 {
	txt = strings.TrimSpace(txt)
	if txt == "" {
		return 0
	}
	txtL := strings.ToLower(txt)
	score := 0.5 * printableRatio(txt)
	if reDate.MatchString(txtL) {
		score += 0.2
	}
	if reCurr.MatchString(txtL) || reAmount.MatchString(txtL) {
		score += 0.2
	}
	if reIdent.MatchString(txtL) {
		score += 0.2
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func printableRatio(s string) float64 {
	var total, good int
	for _, r := range s {
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || strings.ContainsRune(".,-/#:$£€()", r) {
			good++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(good) / float64(total)
}
