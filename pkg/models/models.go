package models

import (
	"strings"
	"time"
)

const (
	LoanStatusActive   = "active"
	LoanStatusReturned = "returned"
	LoanStatusOverdue  = "overdue"
)

const (
	ReservationStatusPending = "pending"
	ReservationStatusReady   = "ready"
	ReservationStatusExpired = "expired"
)

// Book is a normalized catalog record. It is owned by the catalog and never
// mutated by the loan engine.
type Book struct {
	ID            string   `json:"id" binding:"required"`
	Title         string   `json:"title" binding:"required"`
	Authors       []string `json:"authors"`
	Categories    []string `json:"categories"`
	Subtitle      string   `json:"subtitle,omitempty"`
	Publisher     string   `json:"publisher,omitempty"`
	PublishedDate string   `json:"publishedDate,omitempty"`
	Description   string   `json:"description,omitempty"`
	Thumbnail     string   `json:"thumbnail,omitempty"`
	PageCount     int      `json:"pageCount,omitempty"`
	Language      string   `json:"language,omitempty"`

	PreviewLink         string               `json:"previewLink,omitempty"`
	InfoLink            string               `json:"infoLink,omitempty"`
	AverageRating       float64              `json:"averageRating,omitempty"`
	RatingsCount        int                  `json:"ratingsCount,omitempty"`
	IndustryIdentifiers []IndustryIdentifier `json:"industryIdentifiers,omitempty"`
}

// IndustryIdentifier is an ISBN or similar code of a catalog volume.
type IndustryIdentifier struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

// AuthorLine joins the authors the way loans and reservations snapshot them.
func (b Book) AuthorLine() string {
	return strings.Join(b.Authors, ", ")
}

type Loan struct {
	ID         string    `json:"id"`
	BookID     string    `json:"bookId"`
	BookTitle  string    `json:"bookTitle"`
	BookAuthor string    `json:"bookAuthor"`
	UserID     string    `json:"userId"`
	LoanDate   time.Time `json:"loanDate"`
	ReturnDate time.Time `json:"returnDate"`
	Status     string    `json:"status"`
}

type Reservation struct {
	ID              string    `json:"id"`
	BookID          string    `json:"bookId"`
	BookTitle       string    `json:"bookTitle"`
	BookAuthor      string    `json:"bookAuthor"`
	UserID          string    `json:"userId"`
	Position        int       `json:"position"`
	ReservationDate time.Time `json:"reservationDate"`
	Status          string    `json:"status"`
}

// KVEntry is one scoped key of the persistent key/value store.
type KVEntry struct {
	Key       string `gorm:"primaryKey;size:191"`
	Value     string `gorm:"type:text;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (KVEntry) TableName() string { return "kv_entries" }
