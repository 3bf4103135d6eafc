package reconcile

import (
	"fmt"
	"sort"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
)

// Options holds planner policy.
type Options struct {
	DropUnmatched bool
	InsertOrder   constants.InsertOrder
}

// Planner builds plans. It holds no per-run state and is safe for concurrent use.
type Planner struct {
	opts Options
}

func NewPlanner(opts Options) *Planner {
	if opts.InsertOrder == "" {
		opts.InsertOrder = constants.InsertOrderEncounter
	}
	return &Planner{opts: opts}
}

// Plan reconciles existing units (package order) against candidate units (encounter order).
// It never fails: every existing unit and every candidate lands in exactly one decision,
// either as its subject or in its Declined list.
func (p *Planner) Plan(existing, candidates []entity.InvoiceUnit) *Plan {
	b := newBuilder(existing, candidates)
	b.indexCandidates()
	for i := range b.existing {
		b.decideExisting(i, p.opts.DropUnmatched)
	}
	b.declineCurrent()
	b.insertRemaining(p.opts.InsertOrder)
	return &Plan{decisions: b.decisions, diagnostics: b.diags}
}

type builder struct {
	existing   []entity.InvoiceUnit
	candidates []entity.InvoiceUnit

	byKey    map[string]int   // winning candidate per invoice number
	losers   map[string][]int // superseded candidates per invoice number
	consumed map[int]bool
	seen     map[string]int // existing occurrences per invoice number
	current  []int          // decisions keeping a conformant unit

	decisions []Decision
	inserts   []Decision
	diags     []entity.Diagnostic
}

func newBuilder(existing, candidates []entity.InvoiceUnit) *builder {
	return &builder{
		existing:   append([]entity.InvoiceUnit(nil), existing...),
		candidates: append([]entity.InvoiceUnit(nil), candidates...),
		byKey:      make(map[string]int, len(candidates)),
		losers:     make(map[string][]int),
		consumed:   make(map[int]bool, len(candidates)),
		seen:       make(map[string]int, len(existing)),
	}
}

func (b *builder) indexCandidates() {
	for i := range b.candidates {
		key := b.candidates[i].InvoiceNumber()
		if key == "" {
			continue
		}
		if prev, dup := b.byKey[key]; dup {
			b.losers[key] = append(b.losers[key], prev)
			b.diag(constants.DiagDuplicateCandidateInvoice, constants.SeverityWarning, &b.candidates[i],
				fmt.Sprintf("candidate %s supersedes %s with the same invoice number",
					b.candidates[i].Label(), b.candidates[prev].Label()))
		}
		b.byKey[key] = i
	}
}

// take consumes the candidate for key together with the candidates it superseded.
func (b *builder) take(key string) (*entity.InvoiceUnit, []*entity.InvoiceUnit) {
	ci, ok := b.byKey[key]
	if key == "" || !ok || b.consumed[ci] {
		return nil, nil
	}
	b.consumed[ci] = true
	var declined []*entity.InvoiceUnit
	for _, li := range b.losers[key] {
		b.consumed[li] = true
		declined = append(declined, &b.candidates[li])
	}
	return &b.candidates[ci], declined
}

func (b *builder) hasCandidate(key string) bool {
	_, ok := b.byKey[key]
	return ok
}

func (b *builder) decideExisting(i int, dropUnmatched bool) {
	u := &b.existing[i]
	key := u.InvoiceNumber()

	var earlier bool
	if key != "" {
		earlier = b.seen[key] > 0
		b.seen[key]++
		if earlier {
			b.diag(constants.DiagDuplicateExistingInvoice, constants.SeverityWarning, u,
				fmt.Sprintf("invoice number already appears earlier in the package; %s decided on its own", u.Label()))
		}
	}

	if u.Conformant() {
		if key != "" {
			b.current = append(b.current, len(b.decisions))
		}
		b.decisions = append(b.decisions, Decision{Kind: constants.DecisionKeep, Existing: u})
		return
	}

	cand, declined := b.take(key)
	switch {
	case cand != nil && cand.Conformant():
		b.decisions = append(b.decisions, Decision{
			Kind: constants.DecisionReplace, Existing: u, Candidate: cand, Declined: declined,
		})
	case cand != nil:
		b.decisions = append(b.decisions, Decision{
			Kind: constants.DecisionKeep, Existing: u,
			Declined: append([]*entity.InvoiceUnit{cand}, declined...),
		})
		b.diag(constants.DiagUnresolvedOutdatedInvoice, constants.SeverityWarning, u,
			fmt.Sprintf("%s is outdated and candidate %s is not conformant (score %.2f)", u.Label(), cand.Label(), cand.Score()))
	default:
		reason := "no candidate with this invoice number"
		switch {
		case key == "":
			reason = "no legible invoice number"
		case earlier && b.hasCandidate(key):
			reason = "candidate already claimed by an earlier unit with the same invoice number"
		}
		kind := constants.DecisionKeep
		if dropUnmatched {
			kind = constants.DecisionDrop
		}
		b.decisions = append(b.decisions, Decision{Kind: kind, Existing: u})
		b.diag(constants.DiagUnresolvedOutdatedInvoice, constants.SeverityWarning, u,
			fmt.Sprintf("%s is outdated (score %.2f): %s; %s", u.Label(), u.Score(), reason, verb(kind)))
	}
}

// declineCurrent attaches candidates still unclaimed after every outdated unit had its
// chance to the first current unit with the same number, so they are not inserted.
func (b *builder) declineCurrent() {
	for _, di := range b.current {
		d := &b.decisions[di]
		cand, declined := b.take(d.Existing.InvoiceNumber())
		if cand == nil {
			continue
		}
		d.Declined = append([]*entity.InvoiceUnit{cand}, declined...)
		b.diag(constants.DiagCandidateDeclinedCurrent, constants.SeverityInfo, d.Existing,
			fmt.Sprintf("%s is current; candidate %s not used", d.Existing.Label(), cand.Label()))
	}
}

func (b *builder) insertRemaining(order constants.InsertOrder) {
	for i := range b.candidates {
		if b.consumed[i] {
			continue
		}
		c := &b.candidates[i]
		key := c.InvoiceNumber()
		if key != "" && b.byKey[key] != i {
			continue // superseded; travels with the winner
		}

		d := Decision{Kind: constants.DecisionInsert, Candidate: c}
		if key == "" {
			b.diag(constants.DiagCandidateWithoutNumber, constants.SeverityWarning, c,
				fmt.Sprintf("candidate %s has no legible invoice number; inserted", c.Label()))
		} else {
			_, d.Declined = b.take(key)
		}
		b.consumed[i] = true
		if !c.Conformant() {
			b.diag(constants.DiagNonconformantInsert, constants.SeverityWarning, c,
				fmt.Sprintf("candidate %s inserted with score %.2f below threshold", c.Label(), c.Score()))
		}
		b.inserts = append(b.inserts, d)
	}

	if order == constants.InsertOrderInvoiceNumber {
		sort.SliceStable(b.inserts, func(i, j int) bool {
			ki, kj := b.inserts[i].InvoiceNumber(), b.inserts[j].InvoiceNumber()
			if ki == "" || kj == "" {
				return ki != "" && kj == ""
			}
			return ki < kj
		})
	}
	b.decisions = append(b.decisions, b.inserts...)
}

func (b *builder) diag(code constants.DiagnosticCode, sev constants.Severity, u *entity.InvoiceUnit, msg string) {
	b.diags = append(b.diags, entity.Diagnostic{
		Code:          code,
		Severity:      sev,
		Source:        u.Source,
		InvoiceNumber: u.DisplayNumber(),
		Pages:         oneBased(u.Pages),
		Message:       msg,
	})
}

func verb(kind constants.DecisionKind) string {
	if kind == constants.DecisionDrop {
		return "dropped"
	}
	return "kept"
}

func oneBased(pages []int) []int {
	out := make([]int, len(pages))
	for i, p := range pages {
		out[i] = p + 1
	}
	return out
}
