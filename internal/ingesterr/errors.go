// Package ingesterr holds the error taxonomy shared by fetchers, validators,
// the warehouse and the loaders.
package ingesterr

import (
	"context"
	"errors"
	"fmt"
)

const (
	KindFetch         = "fetch"
	KindValidation    = "validation"
	KindUpsert        = "upsert"
	KindUnknownEntity = "unknown_entity"
	KindTimeout       = "timeout"
	KindCanceled      = "canceled"
	KindInternal      = "internal"
)

// FetchError is a network or vendor API failure. It never touches persisted state.
type FetchError struct {
	Source    string
	EntityKey string
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s/%s: %v", e.Source, e.EntityKey, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ValidationError names the invariant a batch violated. Row is the offending
// record index, or -1 when the violation is batch-wide.
type ValidationError struct {
	Invariant string
	Row       int
	Detail    string
}

func (e *ValidationError) Error() string {
	if e.Row >= 0 {
		return fmt.Sprintf("validation %s failed at row %d: %s", e.Invariant, e.Row, e.Detail)
	}
	return fmt.Sprintf("validation %s failed: %s", e.Invariant, e.Detail)
}

// UpsertError reports a staging or reconcile failure. The transaction has been
// rolled back when this is returned.
type UpsertError struct {
	Table     string
	Attempted int
	Err       error
}

func (e *UpsertError) Error() string {
	return fmt.Sprintf("upsert %s (%d rows attempted): %v", e.Table, e.Attempted, e.Err)
}

func (e *UpsertError) Unwrap() error { return e.Err }

// UnknownEntityError means the entity key cannot be mapped to a key the source
// understands, e.g. a ticker without a CIK.
type UnknownEntityError struct {
	Source    string
	EntityKey string
	Reason    string
}

func (e *UnknownEntityError) Error() string {
	return fmt.Sprintf("unknown entity %s for %s: %s", e.EntityKey, e.Source, e.Reason)
}

// Kind classifies err into one of the Kind* constants.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	var (
		unknown    *UnknownEntityError
		validation *ValidationError
		upsert     *UpsertError
		fetch      *FetchError
	)
	switch {
	case errors.As(err, &unknown):
		return KindUnknownEntity
	case errors.As(err, &validation):
		return KindValidation
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.As(err, &upsert):
		return KindUpsert
	case errors.As(err, &fetch):
		return KindFetch
	default:
		return KindInternal
	}
}
