package domain

// ClearingState tracks the in-flight lifecycle of a single claim.
type ClearingState string

const (
	StateIntaken         ClearingState = "INTAKEN"
	StateAttestedOK      ClearingState = "ATTESTED_OK"
	StateCleared         ClearingState = "CLEARED"
	StateHonoringPending ClearingState = "HONORING_PENDING"
	StateHonored         ClearingState = "HONORED"
	StateFailedExternal  ClearingState = "FAILED_EXTERNAL"
	StateManualReview    ClearingState = "MANUAL_REVIEW"
	StateRejected        ClearingState = "REJECTED"
)

// SpendResult is what Finalize returns regardless of the downstream honoring
// outcome: once cleared, fulfillment status is a separate, independently
// queryable fact.
type SpendResult struct {
	Success     bool
	TransferID  TransferID
	State       ClearingState
	Attestation Attestation
}
