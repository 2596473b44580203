// Package ragerr defines the error taxonomy shared by the ingestion and
// query orchestrators. Errors are either sentinels (compared with errors.Is)
// or typed wrappers carrying a transient/permanent classification that the
// retry layer consults.
package ragerr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrJobNotFound        = errors.New("job not found")
	ErrAlreadyProcessing  = errors.New("job already processing")
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrDimensionMismatch signals a configuration defect, not a bad record.
	// It is always permanent and aborts the owning job or request.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrNoRelevantContent is the sentinel for a query that matched nothing.
	ErrNoRelevantContent = errors.New("no relevant content")
)

// FetchError covers page retrieval failures. 5xx responses, timeouts and
// connection errors are transient; 4xx responses and unsupported content
// types are permanent.
type FetchError struct {
	URL        string
	StatusCode int
	Transient  bool
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ChunkingError means the sanitized content could not be chunked. Always
// permanent: retrying the same content cannot succeed.
type ChunkingError struct {
	Err error
}

func (e *ChunkingError) Error() string { return fmt.Sprintf("chunking: %v", e.Err) }
func (e *ChunkingError) Unwrap() error { return e.Err }

// EmbeddingError covers embedding provider failures. Rate limits and
// overload are transient; auth failures and dimension mismatches are
// permanent.
type EmbeddingError struct {
	Transient bool
	Err       error
}

func (e *EmbeddingError) Error() string { return fmt.Sprintf("embedding provider: %v", e.Err) }
func (e *EmbeddingError) Unwrap() error { return e.Err }

// VectorIndexError covers vector index reads and writes. Treated as
// transient unless the index reports a schema or dimension conflict.
type VectorIndexError struct {
	Transient bool
	Err       error
}

func (e *VectorIndexError) Error() string { return fmt.Sprintf("vector index: %v", e.Err) }
func (e *VectorIndexError) Unwrap() error { return e.Err }

// GenerationError covers generation provider failures.
type GenerationError struct {
	Transient bool
	Err       error
}

func (e *GenerationError) Error() string { return fmt.Sprintf("generation provider: %v", e.Err) }
func (e *GenerationError) Unwrap() error { return e.Err }

// IsTransient reports whether err is worth retrying. Anything outside the
// taxonomy defaults to permanent so programmer errors surface instead of
// looping.
func IsTransient(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Transient
	}
	var ee *EmbeddingError
	if errors.As(err, &ee) {
		return ee.Transient
	}
	var ve *VectorIndexError
	if errors.As(err, &ve) {
		return ve.Transient
	}
	var ge *GenerationError
	if errors.As(err, &ge) {
		return ge.Transient
	}
	return false
}
