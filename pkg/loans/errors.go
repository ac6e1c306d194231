package loans

import "errors"

var (
	// Infrastructure failures. Business outcomes are never reported as errors.
	ErrLoad    = errors.New("load ledger state")
	ErrPersist = errors.New("persist ledger state")

	ErrLoanNotFound        = errors.New("loan not found")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrBookStillLent       = errors.New("book still has an active or overdue loan")
)
