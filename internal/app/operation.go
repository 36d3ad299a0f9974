package app

import (
	"time"

	"cms-go/internal/cms"
)

// Operation statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Operation tracks one CLI invocation. Its ID tags every log line the
// invocation writes.
type Operation struct {
	ID        string
	Name      string
	StartedAt time.Time
	Status    string
	Err       error
}

// NewOperation starts an operation named after the CLI command.
func NewOperation(name string, clock cms.Clock) *Operation {
	start := clock.Now().UTC()
	return &Operation{
		ID:        start.Format("20060102T150405Z"),
		Name:      name,
		StartedAt: start,
		Status:    StatusSuccess,
	}
}

// Fail marks the operation as failed. The first error is kept.
func (op *Operation) Fail(err error) {
	if err == nil {
		return
	}
	op.Status = StatusError
	if op.Err == nil {
		op.Err = err
	}
}

// Failed reports whether Fail was called with an error.
func (op *Operation) Failed() bool {
	return op.Status == StatusError
}

// Elapsed returns the time since the operation started.
func (op *Operation) Elapsed(clock cms.Clock) time.Duration {
	return clock.Now().Sub(op.StartedAt)
}
