// Package segment groups consecutive pages of one source into invoice units.
package segment

import (
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
	"github.com/joseph-ayodele/invoice-reconciler/internal/layout"
)

// Scorer rates a page's fields and layout against the template.
type Scorer interface {
	ScorePage(fields map[string]entity.ExtractedField, page layout.Fingerprint) entity.MatchReport
}

// Result is the output of segmenting one source.
type Result struct {
	Units       []entity.InvoiceUnit
	Diagnostics []entity.Diagnostic
}

// Segmenter splits a page sequence wherever the invoice number changes.
type Segmenter struct {
	scorer Scorer
	logger *slog.Logger
}

func New(scorer Scorer, logger *slog.Logger) *Segmenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Segmenter{scorer: scorer, logger: logger}
}

// Segment expects pages in document order. A page with no legible invoice number
// continues the open unit; a legible number different from the open unit's starts
// a new one. Each unit is scored from its first page.
func (s *Segmenter) Segment(source string, pages []entity.PageFields) Result {
	var res Result
	var cur *entity.InvoiceUnit
	var curKey string

	closeUnit := func() {
		if cur == nil {
			return
		}
		cur.Match = s.scorer.ScorePage(cur.Fields, cur.Layout)
		if curKey == "" {
			res.Diagnostics = append(res.Diagnostics, entity.Diagnostic{
				Code:     constants.DiagOrphanPages,
				Severity: constants.SeverityWarning,
				Source:   source,
				Pages:    oneBased(cur.Pages),
				Message:  "unit starts on a page without a legible invoice number",
			})
		}
		res.Units = append(res.Units, *cur)
		cur = nil
	}

	for _, p := range pages {
		key := p.InvoiceNumber()
		switch {
		case cur == nil || (key != "" && key != curKey):
			closeUnit()
			cur = &entity.InvoiceUnit{
				Source: source,
				Pages:  []int{p.Page.Index},
				Fields: p.Fields,
				Layout: p.Layout,
			}
			curKey = key
		case key == "":
			cur.Pages = append(cur.Pages, p.Page.Index)
			res.Diagnostics = append(res.Diagnostics, entity.Diagnostic{
				Code:          constants.DiagContinuationAssumed,
				Severity:      constants.SeverityInfo,
				Source:        source,
				InvoiceNumber: curKey,
				Pages:         []int{p.Page.Number()},
				Message:       fmt.Sprintf("page %d has no legible invoice number; treated as continuation", p.Page.Number()),
			})
		default:
			cur.Pages = append(cur.Pages, p.Page.Index)
		}
	}
	closeUnit()

	s.logger.Debug("segment.done", "source", source, "pages", len(pages), "units", len(res.Units))
	return res
}

func oneBased(pages []int) []int {
	out := make([]int, len(pages))
	for i, p := range pages {
		out[i] = p + 1
	}
	return out
}
