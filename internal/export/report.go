// Package export renders a reconciliation run as XLSX and JSON reports.
package export

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
	"github.com/joseph-ayodele/invoice-reconciler/internal/reconcile"
)

// Report is everything a run produced that is worth showing an operator.
type Report struct {
	RunID        uuid.UUID
	PackagePath  string
	CandidateDir string
	OutputPath   string
	GeneratedAt  time.Time
	Plan         *reconcile.Plan
	Diagnostics  []entity.Diagnostic
	Summary      entity.RunSummary
}

type unitView struct {
	Source     string   `json:"source"`
	Pages      string   `json:"pages"`
	Invoice    string   `json:"invoice_number,omitempty"`
	Score      float64  `json:"score"`
	Layout     *float64 `json:"layout,omitempty"`
	Conformant bool     `json:"conformant"`
}

type decisionView struct {
	Position  int        `json:"position"`
	Decision  string     `json:"decision"`
	Invoice   string     `json:"invoice_number,omitempty"`
	Existing  *unitView  `json:"existing,omitempty"`
	Candidate *unitView  `json:"candidate,omitempty"`
	Declined  []unitView `json:"declined,omitempty"`
}

func viewOf(u *entity.InvoiceUnit) *unitView {
	if u == nil {
		return nil
	}
	v := &unitView{
		Source:     u.Source,
		Pages:      u.PageRange(),
		Invoice:    u.DisplayNumber(),
		Score:      u.Score(),
		Conformant: u.Conformant(),
	}
	if u.Match.LayoutWeight > 0 {
		l := u.Match.Layout
		v.Layout = &l
	}
	return v
}

func decisionViews(p *reconcile.Plan) []decisionView {
	if p == nil {
		return nil
	}
	decisions := p.Decisions()
	out := make([]decisionView, len(decisions))
	for i, d := range decisions {
		v := decisionView{
			Position:  i + 1,
			Decision:  string(d.Kind),
			Existing:  viewOf(d.Existing),
			Candidate: viewOf(d.Candidate),
		}
		if u := d.Emitted(); u != nil {
			v.Invoice = u.DisplayNumber()
		} else if d.Existing != nil {
			v.Invoice = d.Existing.DisplayNumber()
		}
		for _, c := range d.Declined {
			v.Declined = append(v.Declined, *viewOf(c))
		}
		out[i] = v
	}
	return out
}

func joinPages(pages []int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
