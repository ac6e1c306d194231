package loans

import (
	"biblioteca/pkg/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)

func dune() models.Book {
	return models.Book{ID: "dune", Title: "Dune", Authors: []string{"Frank Herbert"}, Categories: []string{"Fiction"}}
}

func book(id string) models.Book {
	return models.Book{ID: id, Title: "Book " + id, Authors: []string{"A. Author", "B. Author"}}
}

func TestAvailabilityDefaultsToAvailable(t *testing.T) {
	a := Availability{}
	assert.True(t, a.IsAvailable("x"))

	a.MarkUnavailable("x")
	assert.False(t, a.IsAvailable("x"))
	assert.True(t, a.IsAvailable("y"))

	a.MarkAvailable("x")
	assert.True(t, a.IsAvailable("x"))
	assert.NotContains(t, a, "x")
}

func TestRequestLoanGranted(t *testing.T) {
	l := newLedger()

	res := l.requestLoan(book("b1"), "u1", t0, "loan-1")

	require.Equal(t, LoanGranted, res.Outcome)
	require.NotNil(t, res.Loan)
	assert.True(t, res.Success())
	assert.Equal(t, "loan-1", res.Loan.ID)
	assert.Equal(t, "Book b1", res.Loan.BookTitle)
	assert.Equal(t, "A. Author, B. Author", res.Loan.BookAuthor)
	assert.Equal(t, models.LoanStatusActive, res.Loan.Status)
	assert.Equal(t, t0.AddDate(0, 0, 14), res.Loan.ReturnDate)
	assert.False(t, l.Availability.IsAvailable("b1"))
}

func TestRequestLoanLimitCheckedBeforeAvailability(t *testing.T) {
	l := newLedger()
	for _, id := range []string{"b1", "b2", "b3"} {
		require.Equal(t, LoanGranted, l.requestLoan(book(id), "u1", t0, "loan-"+id).Outcome)
	}

	// b4 is free, but the cap wins
	res := l.requestLoan(book("b4"), "u1", t0, "loan-b4")
	assert.Equal(t, LoanLimitReached, res.Outcome)
	assert.Equal(t, LimitReachedMessage, res.Message)
	assert.Nil(t, res.Loan)
	assert.True(t, l.Availability.IsAvailable("b4"))
	assert.Len(t, l.Loans, 3)

	// b1 is checked out, the cap still wins
	res = l.requestLoan(book("b1"), "u1", t0, "loan-b1-again")
	assert.Equal(t, LoanLimitReached, res.Outcome)
}

func TestRequestLoanUnavailable(t *testing.T) {
	l := newLedger()
	l.requestLoan(dune(), "u1", t0, "loan-1")

	res := l.requestLoan(dune(), "u2", t0, "loan-2")
	assert.Equal(t, LoanUnavailable, res.Outcome)
	assert.Equal(t, UnavailableMessage, res.Message)
	assert.Len(t, l.Loans, 1)
}

func TestOverdueLoansDoNotCountTowardCap(t *testing.T) {
	l := newLedger()
	for _, id := range []string{"b1", "b2", "b3"} {
		l.requestLoan(book(id), "u1", t0, "loan-"+id)
	}

	n := l.sweepOverdue(t0.Add(LoanPeriod + time.Second))
	assert.Equal(t, 3, n)
	assert.Equal(t, 0, l.activeLoanCount("u1"))

	res := l.requestLoan(book("b4"), "u1", t0, "loan-b4")
	assert.Equal(t, LoanGranted, res.Outcome)
}

func TestSweepOverdueLeavesLoansWithinPeriod(t *testing.T) {
	l := newLedger()
	l.requestLoan(book("b1"), "u1", t0, "loan-1")

	assert.Equal(t, 0, l.sweepOverdue(t0.Add(LoanPeriod)))
	assert.Equal(t, models.LoanStatusActive, l.Loans[0].Status)
}

func TestReservePositions(t *testing.T) {
	l := newLedger()

	assert.Equal(t, 1, l.reserve(dune(), "u1", t0, "r1").Position)
	assert.Equal(t, 2, l.reserve(dune(), "u2", t0, "r2").Position)
	assert.Equal(t, 1, l.reserve(book("other"), "u2", t0, "r3").Position)
	assert.Equal(t, 3, l.reserve(dune(), "u3", t0, "r4").Position)
}

// Duplicate reservations by the same user are accepted; the position lookup
// reports the first one.
func TestReserveAllowsDuplicates(t *testing.T) {
	l := newLedger()
	l.reserve(dune(), "u1", t0, "r1")
	l.reserve(dune(), "u2", t0, "r2")
	dup := l.reserve(dune(), "u1", t0, "r3")

	assert.Equal(t, 3, dup.Position)
	assert.Len(t, l.userReservations("u1"), 2)
	assert.Equal(t, 1, l.reservationPosition("dune", "u1"))
	assert.Equal(t, 0, l.reservationPosition("dune", "u9"))
	assert.Equal(t, 0, l.reservationPosition("other", "u1"))
}

// Positions keep the original queue depth after earlier reservations leave.
func TestReservePositionsNotRecompacted(t *testing.T) {
	l := newLedger()
	first := l.reserve(dune(), "u1", t0, "r1")
	l.reserve(dune(), "u2", t0, "r2")

	_, err := l.transitionReservation(first.ID, models.ReservationStatusExpired)
	require.NoError(t, err)

	assert.Equal(t, 2, l.reservationPosition("dune", "u2"))
	assert.Equal(t, 3, l.reserve(dune(), "u3", t0, "r3").Position)
}

func TestReturnLoanKeepsBookUnavailable(t *testing.T) {
	l := newLedger()
	l.requestLoan(dune(), "u1", t0, "loan-1")

	loan, err := l.returnLoan("loan-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusReturned, loan.Status)
	assert.False(t, l.Availability.IsAvailable("dune"))

	_, err = l.returnLoan("loan-1", "u1")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = l.returnLoan("loan-1", "someone-else")
	assert.ErrorIs(t, err, ErrLoanNotFound)
}

func TestRestoreAvailability(t *testing.T) {
	l := newLedger()
	l.requestLoan(dune(), "u1", t0, "loan-1")

	assert.ErrorIs(t, l.restoreAvailability("dune"), ErrBookStillLent)

	_, err := l.returnLoan("loan-1", "u1")
	require.NoError(t, err)
	require.NoError(t, l.restoreAvailability("dune"))
	assert.True(t, l.Availability.IsAvailable("dune"))
}

func TestReservationTransitions(t *testing.T) {
	l := newLedger()
	r := l.reserve(dune(), "u1", t0, "r1")

	ready, err := l.transitionReservation(r.ID, models.ReservationStatusReady)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusReady, ready.Status)

	_, err = l.transitionReservation(r.ID, models.ReservationStatusReady)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	expired, err := l.transitionReservation(r.ID, models.ReservationStatusExpired)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusExpired, expired.Status)

	_, err = l.transitionReservation(r.ID, models.ReservationStatusPending)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = l.transitionReservation("missing", models.ReservationStatusReady)
	assert.ErrorIs(t, err, ErrReservationNotFound)
}

func TestCloneIsIndependent(t *testing.T) {
	l := newLedger()
	l.requestLoan(dune(), "u1", t0, "loan-1")

	c := l.clone()
	c.requestLoan(book("b2"), "u1", t0, "loan-2")
	c.Loans[0].Status = models.LoanStatusReturned

	assert.Len(t, l.Loans, 1)
	assert.Equal(t, models.LoanStatusActive, l.Loans[0].Status)
	assert.True(t, l.Availability.IsAvailable("b2"))
}

func TestLoanOutcomeString(t *testing.T) {
	assert.Equal(t, "granted", LoanGranted.String())
	assert.Equal(t, "limit_reached", LoanLimitReached.String())
	assert.Equal(t, "unavailable", LoanUnavailable.String())
	assert.Equal(t, "unknown", LoanOutcome(0).String())
}
