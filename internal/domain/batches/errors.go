package batches

import "errors"

// Precondition errors surfaced to the Run caller. Everything else that goes
// wrong during a run is captured as a failed item outcome, never an error.
var (
	ErrBatchNotFound = errors.New("batch not found")
	ErrBatchRunning  = errors.New("batch already running")
	ErrBatchFinished = errors.New("batch already finished")

	// ErrItemTerminal guards against double-processing: an item that
	// already reached completed/failed never goes back to running.
	ErrItemTerminal = errors.New("item already in terminal state")
)
