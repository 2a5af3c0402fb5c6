package catalog

import (
	"errors"
	"fmt"
)

// ErrNotFound signals that an operation targeted a natural key with no
// matching row. Enrichment never creates rows, so a miss surfaces as-is.
var ErrNotFound = errors.New("not found")

// ValidationError marks a raw record that cannot be loaded because it
// lacks its required natural key. The batch continues past it.
type ValidationError struct {
	Reason string
	Title  string
}

func (e *ValidationError) Error() string {
	if e.Title != "" {
		return fmt.Sprintf("invalid record %q: %s", e.Title, e.Reason)
	}
	return fmt.Sprintf("invalid record: %s", e.Reason)
}

// ConstraintViolation wraps an integrity failure while loading a single
// record. The record's transaction has been rolled back; the batch
// continues with the next record.
type ConstraintViolation struct {
	TMDBID int64
	Err    error
}

func (e *ConstraintViolation) Error() string {
	return fmt.Sprintf("constraint violation loading tmdb id %d: %v", e.TMDBID, e.Err)
}

func (e *ConstraintViolation) Unwrap() error { return e.Err }
