package loans

// Availability maps a book id to whether it can be lent right now.
// A missing entry means available.
type Availability map[string]bool

func (a Availability) IsAvailable(bookID string) bool {
	available, ok := a[bookID]
	return !ok || available
}

func (a Availability) MarkUnavailable(bookID string) {
	a[bookID] = false
}

// MarkAvailable drops the entry so the book falls back to the default.
// Only RestoreAvailability reaches it.
func (a Availability) MarkAvailable(bookID string) {
	delete(a, bookID)
}

func (a Availability) clone() Availability {
	out := make(Availability, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}
