package ai

import "errors"

// Error taxonomy for the advisor engine. Callers distinguish these with
// errors.Is to decide whether to fall back to the catalog path.
var (
	// ErrNotConfigured indicates an embedding or generation capability is
	// missing or misconfigured. Aborts the current operation.
	ErrNotConfigured = errors.New("ai capability not configured")

	// ErrRetrieval indicates the knowledge index is unreachable.
	// Aborts the current operation.
	ErrRetrieval = errors.New("knowledge index unreachable")

	// ErrGeneration indicates a generation call failed or returned content
	// that could not be parsed. Recovered locally per sub-result.
	ErrGeneration = errors.New("generation failed")

	// ErrInvalidDocument indicates a malformed document at ingest
	// (missing id or content, nested metadata). Rejects only the
	// offending document; the rest of a batch still commits.
	ErrInvalidDocument = errors.New("invalid document")
)
