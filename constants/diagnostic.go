package constants

// DiagnosticCode identifies a non-fatal condition recorded during a run.
type DiagnosticCode string

const (
	DiagDuplicateCandidateInvoice DiagnosticCode = "duplicate_candidate_invoice"
	DiagUnresolvedOutdatedInvoice DiagnosticCode = "unresolved_outdated_invoice"
	DiagDuplicateExistingInvoice  DiagnosticCode = "duplicate_existing_invoice"
	DiagCandidateDeclinedCurrent  DiagnosticCode = "candidate_declined_current"
	DiagCandidateWithoutNumber    DiagnosticCode = "candidate_without_invoice_number"
	DiagNonconformantInsert       DiagnosticCode = "nonconformant_insert"
	DiagContinuationAssumed       DiagnosticCode = "continuation_assumed"
	DiagOrphanPages               DiagnosticCode = "orphan_pages"
	DiagRecognitionFailed         DiagnosticCode = "recognition_failed"
	DiagDuplicateCandidateFile    DiagnosticCode = "duplicate_candidate_file"
	DiagUnreadableCandidate       DiagnosticCode = "unreadable_candidate"
)

// Severity orders diagnostics for reporting.
type Severity string

const (
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)
