package constants

// DecisionKind is the closed set of per-unit reconciliation outcomes.
type DecisionKind string

const (
	DecisionKeep    DecisionKind = "KEEP"
	DecisionReplace DecisionKind = "REPLACE"
	DecisionInsert  DecisionKind = "INSERT"
	DecisionDrop    DecisionKind = "DROP"
)

// InsertOrder controls how Insert decisions are ordered at the end of the plan.
type InsertOrder string

const (
	InsertOrderEncounter     InsertOrder = "encounter"
	InsertOrderInvoiceNumber InsertOrder = "invoice_number"
)

// RunStatus is the canonical status for rows in the run table.
type RunStatus string

// Stable values (store these exact strings in DB).
const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusSucceeded RunStatus = "SUCCEEDED"
	RunStatusFailed    RunStatus = "FAILED"
)
