package constants

// AttemptState names the per-call states of an extraction, as logged by the client.
type AttemptState string

const (
	StateIdle         AttemptState = "IDLE"
	StateAttempting   AttemptState = "ATTEMPTING"
	StateFinalAttempt AttemptState = "FINAL_ATTEMPT"
	StateSuccess      AttemptState = "SUCCESS" // terminal
	StateFailed       AttemptState = "FAILED"  // terminal
)
