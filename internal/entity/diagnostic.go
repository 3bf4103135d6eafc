package entity

import "github.com/joseph-ayodele/invoice-reconciler/constants"

// Diagnostic is a non-fatal condition surfaced to the operator.
type Diagnostic struct {
	Code          constants.DiagnosticCode `json:"code"`
	Severity      constants.Severity       `json:"severity"`
	Source        string                   `json:"source,omitempty"`
	InvoiceNumber string                   `json:"invoice_number,omitempty"`
	Pages         []int                    `json:"pages,omitempty"`
	Message       string                   `json:"message"`
}
