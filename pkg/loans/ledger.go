package loans

import (
	"biblioteca/pkg/models"
	"time"
)

const (
	MaxActiveLoans = 3
	LoanPeriod     = 14 * 24 * time.Hour

	LimitReachedMessage = "Loan limit reached. You already have 3 active loans; return a book before requesting another one."
	UnavailableMessage  = "The book is not available. Would you like to reserve it?"
)

type LoanOutcome int

const (
	LoanGranted LoanOutcome = iota + 1
	LoanLimitReached
	LoanUnavailable
)

func (o LoanOutcome) String() string {
	switch o {
	case LoanGranted:
		return "granted"
	case LoanLimitReached:
		return "limit_reached"
	case LoanUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// LoanResult describes what a loan request did. Loan is set only when the
// outcome is LoanGranted.
type LoanResult struct {
	Outcome LoanOutcome
	Loan    *models.Loan
	Message string
}

func (r LoanResult) Success() bool { return r.Outcome == LoanGranted }

type ReservationResult struct {
	Success     bool
	Reservation models.Reservation
}

// Ledger is the loan and reservation state. Its methods are the business
// rules; they mutate the receiver and never touch storage.
type Ledger struct {
	Loans        []models.Loan
	Reservations []models.Reservation
	Availability Availability
}

func newLedger() *Ledger {
	return &Ledger{Availability: Availability{}}
}

func (l *Ledger) clone() *Ledger {
	out := &Ledger{
		Loans:        make([]models.Loan, len(l.Loans)),
		Reservations: make([]models.Reservation, len(l.Reservations)),
		Availability: l.Availability.clone(),
	}
	copy(out.Loans, l.Loans)
	copy(out.Reservations, l.Reservations)
	return out
}

func (l *Ledger) activeLoanCount(userID string) int {
	n := 0
	for _, loan := range l.Loans {
		if loan.UserID == userID && loan.Status == models.LoanStatusActive {
			n++
		}
	}
	return n
}

// requestLoan checks the loan cap before availability, so a user at the cap
// hears about the limit even when the book is free.
func (l *Ledger) requestLoan(book models.Book, userID string, now time.Time, id string) LoanResult {
	if l.activeLoanCount(userID) >= MaxActiveLoans {
		return LoanResult{Outcome: LoanLimitReached, Message: LimitReachedMessage}
	}
	if !l.Availability.IsAvailable(book.ID) {
		return LoanResult{Outcome: LoanUnavailable, Message: UnavailableMessage}
	}

	loan := models.Loan{
		ID:         id,
		BookID:     book.ID,
		BookTitle:  book.Title,
		BookAuthor: book.AuthorLine(),
		UserID:     userID,
		LoanDate:   now,
		ReturnDate: now.Add(LoanPeriod),
		Status:     models.LoanStatusActive,
	}
	l.Loans = append(l.Loans, loan)
	l.Availability.MarkUnavailable(book.ID)

	return LoanResult{Outcome: LoanGranted, Loan: &loan}
}

// reserve appends a pending reservation. Duplicates by the same user are
// accepted and positions are never recompacted.
func (l *Ledger) reserve(book models.Book, userID string, now time.Time, id string) models.Reservation {
	queued := 0
	for _, r := range l.Reservations {
		if r.BookID == book.ID {
			queued++
		}
	}

	reservation := models.Reservation{
		ID:              id,
		BookID:          book.ID,
		BookTitle:       book.Title,
		BookAuthor:      book.AuthorLine(),
		UserID:          userID,
		Position:        queued + 1,
		ReservationDate: now,
		Status:          models.ReservationStatusPending,
	}
	l.Reservations = append(l.Reservations, reservation)
	return reservation
}

func (l *Ledger) userLoans(userID string) []models.Loan {
	out := []models.Loan{}
	for _, loan := range l.Loans {
		if loan.UserID == userID {
			out = append(out, loan)
		}
	}
	return out
}

func (l *Ledger) userReservations(userID string) []models.Reservation {
	out := []models.Reservation{}
	for _, r := range l.Reservations {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out
}

func (l *Ledger) reservationPosition(bookID, userID string) int {
	for _, r := range l.Reservations {
		if r.BookID == bookID && r.UserID == userID {
			return r.Position
		}
	}
	return 0
}

func (l *Ledger) returnLoan(loanID, userID string) (models.Loan, error) {
	for i := range l.Loans {
		loan := &l.Loans[i]
		if loan.ID != loanID || loan.UserID != userID {
			continue
		}
		if loan.Status != models.LoanStatusActive && loan.Status != models.LoanStatusOverdue {
			return *loan, ErrInvalidTransition
		}
		loan.Status = models.LoanStatusReturned
		return *loan, nil
	}
	return models.Loan{}, ErrLoanNotFound
}

func (l *Ledger) sweepOverdue(now time.Time) int {
	n := 0
	for i := range l.Loans {
		loan := &l.Loans[i]
		if loan.Status == models.LoanStatusActive && now.After(loan.ReturnDate) {
			loan.Status = models.LoanStatusOverdue
			n++
		}
	}
	return n
}

func (l *Ledger) transitionReservation(id string, to string) (models.Reservation, error) {
	for i := range l.Reservations {
		r := &l.Reservations[i]
		if r.ID != id {
			continue
		}
		if !reservationTransitionAllowed(r.Status, to) {
			return *r, ErrInvalidTransition
		}
		r.Status = to
		return *r, nil
	}
	return models.Reservation{}, ErrReservationNotFound
}

func reservationTransitionAllowed(from, to string) bool {
	switch to {
	case models.ReservationStatusReady:
		return from == models.ReservationStatusPending
	case models.ReservationStatusExpired:
		return from == models.ReservationStatusPending || from == models.ReservationStatusReady
	}
	return false
}

func (l *Ledger) restoreAvailability(bookID string) error {
	for _, loan := range l.Loans {
		if loan.BookID != bookID {
			continue
		}
		if loan.Status == models.LoanStatusActive || loan.Status == models.LoanStatusOverdue {
			return ErrBookStillLent
		}
	}
	l.Availability.MarkAvailable(bookID)
	return nil
}

// rebuildAvailability marks every book held by an active or overdue loan as
// checked out.
func (l *Ledger) rebuildAvailability() {
	for _, loan := range l.Loans {
		if loan.Status == models.LoanStatusActive || loan.Status == models.LoanStatusOverdue {
			l.Availability.MarkUnavailable(loan.BookID)
		}
	}
}
