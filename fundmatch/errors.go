package fundmatch

import "errors"

var (
	// ErrStoreUnavailable means the embedding artifact is missing or unreadable.
	ErrStoreUnavailable = errors.New("fund store unavailable")
	// ErrStoreCorrupt means the artifact was read but its contents are inconsistent.
	ErrStoreCorrupt = errors.New("fund store corrupt")
	// ErrEmbeddingUnavailable means the embedding model could not be loaded or run.
	// Exact lookups keep working.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrInvalidArgument is returned before any work is done.
	ErrInvalidArgument = errors.New("invalid argument")
)
