package history

import (
	"errors"

	"github.com/artemvlas/veretino-sub000/internal/vt"
)

// Operation outcomes stored in the status column.
const (
	StatusRunning  = "running"
	StatusSuccess  = "success"
	StatusCanceled = "canceled"
	StatusError    = "error"
)

// StatusOf maps the result of an operation to its stored status.
func StatusOf(sum vt.Summary, err error) string {
	switch {
	case errors.Is(err, vt.ErrCanceled), err == nil && sum.Canceled:
		return StatusCanceled
	case err != nil:
		return StatusError
	default:
		return StatusSuccess
	}
}
