package loans

import (
	"biblioteca/pkg/models"
	"biblioteca/pkg/storage"
	"context"
	"fmt"
	"log/slog"

	jsoniter "github.com/json-iterator/go"
)

const (
	KeyLoans        = "loans"
	KeyReservations = "reservations"
	KeyAvailability = "bookAvailability"
	KeyFavorites    = "favorites"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func encodeLedger(l *Ledger) (map[string][]byte, error) {
	loans, err := json.Marshal(l.Loans)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", KeyLoans, err)
	}
	reservations, err := json.Marshal(l.Reservations)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", KeyReservations, err)
	}
	availability, err := json.Marshal(l.Availability)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", KeyAvailability, err)
	}
	return map[string][]byte{
		KeyLoans:        loans,
		KeyReservations: reservations,
		KeyAvailability: availability,
	}, nil
}

// saveAll writes values as one unit when the store supports it.
func saveAll(ctx context.Context, s storage.Store, values map[string][]byte) error {
	if b, ok := s.(storage.Batcher); ok {
		return b.SetMany(ctx, values)
	}
	for _, key := range []string{KeyLoans, KeyReservations, KeyAvailability, KeyFavorites} {
		value, ok := values[key]
		if !ok {
			continue
		}
		if err := s.Set(ctx, key, value); err != nil {
			return err
		}
	}
	return nil
}

// loadKey decodes one key into v. A missing key leaves v untouched; a
// corrupt key is logged and reported as not loaded so the other keys still load.
func loadKey(ctx context.Context, s storage.Store, log *slog.Logger, key string, v any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %w", ErrLoad, key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		log.Warn("Discarding unreadable stored value", "key", key, "err", err)
		return false, nil
	}
	return true, nil
}

func loadLedger(ctx context.Context, s storage.Store, log *slog.Logger) (*Ledger, error) {
	l := newLedger()

	var loans []models.Loan
	if ok, err := loadKey(ctx, s, log, KeyLoans, &loans); err != nil {
		return nil, err
	} else if ok {
		l.Loans = loans
	}

	var reservations []models.Reservation
	if ok, err := loadKey(ctx, s, log, KeyReservations, &reservations); err != nil {
		return nil, err
	} else if ok {
		l.Reservations = reservations
	}

	var saved map[string]bool
	if _, err := loadKey(ctx, s, log, KeyAvailability, &saved); err != nil {
		return nil, err
	}
	for bookID, available := range saved {
		if !available {
			l.Availability.MarkUnavailable(bookID)
		}
	}
	l.rebuildAvailability()

	return l, nil
}

func loadFavorites(ctx context.Context, s storage.Store, log *slog.Logger) (Favorites, error) {
	var favorites Favorites
	if ok, err := loadKey(ctx, s, log, KeyFavorites, &favorites); err != nil {
		return nil, err
	} else if !ok || favorites == nil {
		return Favorites{}, nil
	}
	return favorites, nil
}
