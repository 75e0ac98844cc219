package model

import (
	"errors"
)

var (
	// ErrResourceUnavailable means the shared resource could not be launched,
	// even after a retry. It aborts the batch.
	ErrResourceUnavailable = errors.New("resource unavailable")
	// ErrIsolatedContextUnavailable fails a single task.
	ErrIsolatedContextUnavailable = errors.New("isolated context unavailable")
	// ErrInspection wraps inspector failures which are not plain errors, such
	// as panics.
	ErrInspection = errors.New("inspection failed")
	// ErrObserverHook wraps an error returned by an observer.
	ErrObserverHook = errors.New("observer hook failed")
)
