package loans

import (
	"biblioteca/pkg/metrics"
	"biblioteca/pkg/models"
	"biblioteca/pkg/storage"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Engine owns the loan, reservation, availability and favorites ledgers of
// one library. It is safe for concurrent use.
//
// Every mutation works on a copy of the current state, persists the copy and
// only then makes it current. A failed write leaves the current state as it was.
type Engine struct {
	store storage.Store
	log   *slog.Logger
	now   func() time.Time
	newID func() string

	mu     sync.RWMutex
	ledger *Ledger

	favMu     sync.RWMutex
	favorites Favorites
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// NewEngine loads the persisted state from store.
func NewEngine(ctx context.Context, store storage.Store, opts ...Option) (*Engine, error) {
	e := &Engine{
		store: store,
		log:   slog.Default(),
		now:   time.Now,
		newID: newUUID,
	}
	for _, opt := range opts {
		opt(e)
	}

	ledger, err := loadLedger(ctx, store, e.log)
	if err != nil {
		return nil, err
	}
	favorites, err := loadFavorites(ctx, store, e.log)
	if err != nil {
		return nil, err
	}
	e.ledger = ledger
	e.favorites = favorites

	e.log.Info("Loan engine loaded",
		"loans", len(ledger.Loans),
		"reservations", len(ledger.Reservations),
		"favoriteUsers", len(favorites))
	return e, nil
}

// UUIDv7 ids sort in creation order.
func newUUID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func (e *Engine) timestamp() time.Time {
	return e.now().UTC()
}

// commit persists next and makes it current. Callers hold e.mu.
func (e *Engine) commit(ctx context.Context, next *Ledger) error {
	values, err := encodeLedger(next)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	if err := saveAll(ctx, e.store, values); err != nil {
		metrics.PersistFailures.WithLabelValues("loans").Inc()
		e.log.Error("Failed to persist loan ledger", "err", err)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	e.ledger = next
	return nil
}

func (e *Engine) RequestLoan(ctx context.Context, book models.Book, userID string) (LoanResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.ledger.clone()
	result := next.requestLoan(book, userID, e.timestamp(), e.newID())
	if result.Outcome == LoanGranted {
		if err := e.commit(ctx, next); err != nil {
			return LoanResult{}, err
		}
		e.log.Info("Loan granted", "loan", result.Loan.ID, "book", book.ID, "user", userID)
	}

	metrics.LoanRequests.WithLabelValues(result.Outcome.String()).Inc()
	return result, nil
}

func (e *Engine) CreateReservation(ctx context.Context, book models.Book, userID string) (ReservationResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.ledger.clone()
	reservation := next.reserve(book, userID, e.timestamp(), e.newID())
	if err := e.commit(ctx, next); err != nil {
		return ReservationResult{}, err
	}

	metrics.ReservationsCreated.Inc()
	e.log.Info("Reservation created", "reservation", reservation.ID, "book", book.ID, "user", userID, "position", reservation.Position)
	return ReservationResult{Success: true, Reservation: reservation}, nil
}

// UserLoans returns every loan of the user, in any status, in ledger order.
func (e *Engine) UserLoans(userID string) []models.Loan {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.userLoans(userID)
}

func (e *Engine) UserReservations(userID string) []models.Reservation {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.userReservations(userID)
}

// ReservationPosition returns the queue position of the user's first
// reservation for the book, or 0 if there is none.
func (e *Engine) ReservationPosition(bookID, userID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.reservationPosition(bookID, userID)
}

func (e *Engine) IsBookAvailable(bookID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.Availability.IsAvailable(bookID)
}

// ReturnLoan moves an active or overdue loan to returned. The book stays
// unavailable until RestoreAvailability is called for it.
func (e *Engine) ReturnLoan(ctx context.Context, loanID, userID string) (models.Loan, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.ledger.clone()
	loan, err := next.returnLoan(loanID, userID)
	if err != nil {
		return loan, err
	}
	if err := e.commit(ctx, next); err != nil {
		return models.Loan{}, err
	}
	metrics.LoanTransitions.WithLabelValues(models.LoanStatusReturned).Inc()
	return loan, nil
}

// SweepOverdue marks every active loan past its return date as overdue and
// reports how many changed.
func (e *Engine) SweepOverdue(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.ledger.clone()
	n := next.sweepOverdue(e.timestamp())
	if n == 0 {
		return 0, nil
	}
	if err := e.commit(ctx, next); err != nil {
		return 0, err
	}
	metrics.LoanTransitions.WithLabelValues(models.LoanStatusOverdue).Add(float64(n))
	e.log.Info("Overdue sweep finished", "overdue", n)
	return n, nil
}

func (e *Engine) MarkReservationReady(ctx context.Context, reservationID string) (models.Reservation, error) {
	return e.transitionReservation(ctx, reservationID, models.ReservationStatusReady)
}

func (e *Engine) ExpireReservation(ctx context.Context, reservationID string) (models.Reservation, error) {
	return e.transitionReservation(ctx, reservationID, models.ReservationStatusExpired)
}

func (e *Engine) transitionReservation(ctx context.Context, id, to string) (models.Reservation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.ledger.clone()
	reservation, err := next.transitionReservation(id, to)
	if err != nil {
		return reservation, err
	}
	if err := e.commit(ctx, next); err != nil {
		return models.Reservation{}, err
	}
	metrics.LoanTransitions.WithLabelValues(to).Inc()
	return reservation, nil
}

// RestoreAvailability makes a book lendable again once no active or overdue
// loan holds it. It is the only way a book becomes available after a loan.
func (e *Engine) RestoreAvailability(ctx context.Context, bookID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.ledger.clone()
	if err := next.restoreAvailability(bookID); err != nil {
		return err
	}
	return e.commit(ctx, next)
}

func (e *Engine) AddToFavorites(ctx context.Context, book models.Book, userID string) (FavoriteResult, error) {
	e.favMu.Lock()
	defer e.favMu.Unlock()

	if e.favorites.has(userID, book.ID) {
		metrics.FavoriteChanges.WithLabelValues("add", "exists").Inc()
		return FavoriteResult{Success: false, Message: FavoriteExistsMessage}, nil
	}

	next := e.favorites.withUser(userID)
	next.add(book, userID)
	if err := e.commitFavorites(ctx, next); err != nil {
		return FavoriteResult{}, err
	}
	metrics.FavoriteChanges.WithLabelValues("add", "ok").Inc()
	return FavoriteResult{Success: true, Message: FavoriteAddedMessage}, nil
}

// RemoveFromFavorites always succeeds, even when the book was not a favorite.
func (e *Engine) RemoveFromFavorites(ctx context.Context, bookID, userID string) (FavoriteResult, error) {
	e.favMu.Lock()
	defer e.favMu.Unlock()

	next := e.favorites.withUser(userID)
	next.remove(bookID, userID)
	if err := e.commitFavorites(ctx, next); err != nil {
		return FavoriteResult{}, err
	}
	metrics.FavoriteChanges.WithLabelValues("remove", "ok").Inc()
	return FavoriteResult{Success: true, Message: FavoriteRemovedMessage}, nil
}

func (e *Engine) UserFavorites(userID string) []models.Book {
	e.favMu.RLock()
	defer e.favMu.RUnlock()
	return e.favorites.list(userID)
}

func (e *Engine) IsFavorite(bookID, userID string) bool {
	e.favMu.RLock()
	defer e.favMu.RUnlock()
	return e.favorites.has(userID, bookID)
}

func (e *Engine) commitFavorites(ctx context.Context, next Favorites) error {
	raw, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", ErrPersist, KeyFavorites, err)
	}
	if err := e.store.Set(ctx, KeyFavorites, raw); err != nil {
		metrics.PersistFailures.WithLabelValues("favorites").Inc()
		e.log.Error("Failed to persist favorites", "err", err)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	e.favorites = next
	return nil
}
