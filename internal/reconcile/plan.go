// Package reconcile decides, per invoice unit, what the updated package contains.
package reconcile

import (
	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
)

// Decision is one plan entry.
//
//	Keep:    Existing set, Candidate nil
//	Replace: Existing and Candidate set
//	Insert:  Candidate set, Existing nil
//	Drop:    Existing set, Candidate nil
//
// Declined lists candidates that were matched to this entry but not emitted.
type Decision struct {
	Kind      constants.DecisionKind
	Existing  *entity.InvoiceUnit
	Candidate *entity.InvoiceUnit
	Declined  []*entity.InvoiceUnit
}

// Emitted returns the unit whose pages go to the output, or nil for Drop.
func (d Decision) Emitted() *entity.InvoiceUnit {
	switch d.Kind {
	case constants.DecisionKeep:
		return d.Existing
	case constants.DecisionReplace, constants.DecisionInsert:
		return d.Candidate
	default:
		return nil
	}
}

// InvoiceNumber is the join key of the decision.
func (d Decision) InvoiceNumber() string {
	if d.Existing != nil {
		return d.Existing.InvoiceNumber()
	}
	return d.Candidate.InvoiceNumber()
}

// Pages lists the pages this decision contributes to the output, in order.
func (d Decision) Pages() []entity.PageRef {
	if u := d.Emitted(); u != nil {
		return u.PageRefs()
	}
	return nil
}

// Plan is the ordered, total set of decisions for one run. It is read-only once built.
type Plan struct {
	decisions   []Decision
	diagnostics []entity.Diagnostic
}

// Decisions returns a copy of the ordered decisions.
func (p *Plan) Decisions() []Decision {
	out := make([]Decision, len(p.decisions))
	copy(out, p.decisions)
	return out
}

// Diagnostics returns a copy of the planner's diagnostics.
func (p *Plan) Diagnostics() []entity.Diagnostic {
	out := make([]entity.Diagnostic, len(p.diagnostics))
	copy(out, p.diagnostics)
	return out
}

// Len is the number of decisions.
func (p *Plan) Len() int { return len(p.decisions) }

// PageOrder flattens the plan into the page sequence of the output document.
func (p *Plan) PageOrder() []entity.PageRef {
	var refs []entity.PageRef
	for _, d := range p.decisions {
		refs = append(refs, d.Pages()...)
	}
	return refs
}

// Counts tallies decisions by kind.
func (p *Plan) Counts() map[constants.DecisionKind]int {
	out := make(map[constants.DecisionKind]int, 4)
	for _, d := range p.decisions {
		out[d.Kind]++
	}
	return out
}
