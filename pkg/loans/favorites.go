package loans

import (
	"biblioteca/pkg/models"
	"sort"
)

const (
	FavoriteAddedMessage   = "Book added to favorites"
	FavoriteExistsMessage  = "Book is already a favorite"
	FavoriteRemovedMessage = "Book removed from favorites"
)

type FavoriteResult struct {
	Success bool
	Message string
}

// Favorites holds userID -> bookID -> book snapshot.
type Favorites map[string]map[string]models.Book

func (f Favorites) has(userID, bookID string) bool {
	_, ok := f[userID][bookID]
	return ok
}

// withUser returns a copy of f in which userID's set may be modified freely.
func (f Favorites) withUser(userID string) Favorites {
	out := make(Favorites, len(f)+1)
	for k, v := range f {
		out[k] = v
	}
	books := make(map[string]models.Book, len(f[userID])+1)
	for k, v := range f[userID] {
		books[k] = v
	}
	out[userID] = books
	return out
}

func (f Favorites) add(book models.Book, userID string) {
	f[userID][book.ID] = book
}

func (f Favorites) remove(bookID, userID string) {
	delete(f[userID], bookID)
	if len(f[userID]) == 0 {
		delete(f, userID)
	}
}

// list returns the user's favorites ordered by book id.
func (f Favorites) list(userID string) []models.Book {
	out := make([]models.Book, 0, len(f[userID]))
	for _, book := range f[userID] {
		out = append(out, book)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
