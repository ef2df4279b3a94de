package constants

// UnitStatus is the outcome of one source document in a run.
type UnitStatus string

// Stable values written to the run report.
const (
	UnitStatusSuccess   UnitStatus = "success"
	UnitStatusSkipped   UnitStatus = "skipped"   // already processed or too little text
	UnitStatusFailed    UnitStatus = "failed"    // logged to errors.jsonl
	UnitStatusCancelled UnitStatus = "cancelled" // run stopped before the unit ran
)
