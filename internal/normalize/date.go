package normalize

import (
	"regexp"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
)

// DefaultDateLayouts are tried in order; the first successful parse wins.
var DefaultDateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"1-2-2006",
	"01.02.2006",
	"01/02/06",
	"1/2/06",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
	"02-Jan-2006",
	"2-Jan-2006",
}

var (
	reDateLabel = regexp.MustCompile(`(?i)^\s*(invoice\s+date|date|dated)\s*[:#.]?\s*`)
	reOrdinal   = regexp.MustCompile(`(?i)\b(\d{1,2})(st|nd|rd|th)\b`)
)

// Date parses raw with the given layouts after stripping labels, ordinals and stray punctuation.
func Date(raw string, layouts []string) (Value, error) {
	s := CollapseSpace(raw)
	s = reDateLabel.ReplaceAllString(s, "")
	s = reOrdinal.ReplaceAllString(s, "$1")
	s = strings.Trim(s, " .,;:")
	if s == "" {
		return Value{}, fail(constants.FieldKindDate, raw, "empty")
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Value{Kind: constants.FieldKindDate, Date: t}, nil
		}
	}
	return Value{}, fail(constants.FieldKindDate, raw, "no matching date layout")
}
