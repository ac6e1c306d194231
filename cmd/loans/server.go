package main

import (
	"biblioteca/pkg/loans"
	"biblioteca/pkg/models"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

const userHeader = "X-User-Id"

type server struct {
	engine *loans.Engine
	db     *gorm.DB
}

func newRouter(s *server) *gin.Engine {
	r := gin.Default()

	r.GET("/api/v1/loans", s.getLoans)
	r.POST("/api/v1/loans", s.requestLoan)
	r.POST("/api/v1/loans/:loanId/return", s.returnLoan)
	r.POST("/api/v1/overdue/sweep", s.sweepOverdue)

	r.GET("/api/v1/reservations", s.getReservations)
	r.POST("/api/v1/reservations", s.createReservation)
	r.GET("/api/v1/reservations/position", s.getReservationPosition)
	r.POST("/api/v1/reservations/:reservationId/ready", s.markReservationReady)
	r.POST("/api/v1/reservations/:reservationId/expire", s.expireReservation)

	r.GET("/api/v1/books/:bookId/availability", s.getAvailability)
	r.POST("/api/v1/books/:bookId/restore", s.restoreAvailability)

	r.GET("/api/v1/favorites", s.getFavorites)
	r.POST("/api/v1/favorites", s.addFavorite)
	r.GET("/api/v1/favorites/:bookId", s.isFavorite)
	r.DELETE("/api/v1/favorites/:bookId", s.removeFavorite)

	r.GET("/manage/health", s.healthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func requireUser(c *gin.Context) (string, bool) {
	userID := c.GetHeader(userHeader)
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": userHeader + " header is required"})
		return "", false
	}
	return userID, true
}

func bindBook(c *gin.Context) (models.Book, bool) {
	var book models.Book
	if err := c.ShouldBindJSON(&book); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return book, false
	}
	return book, true
}

// writeError maps engine errors onto HTTP statuses. Persistence failures are
// always 500 and never reported as a business outcome.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, loans.ErrLoanNotFound), errors.Is(err, loans.ErrReservationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, loans.ErrInvalidTransition), errors.Is(err, loans.ErrBookStillLent):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist library state"})
	}
}

func loanJSON(loan models.Loan) gin.H {
	return gin.H{
		"id":         loan.ID,
		"bookId":     loan.BookID,
		"bookTitle":  loan.BookTitle,
		"bookAuthor": loan.BookAuthor,
		"userId":     loan.UserID,
		"loanDate":   loan.LoanDate.Format(time.RFC3339),
		"returnDate": loan.ReturnDate.Format(time.RFC3339),
		"status":     loan.Status,
	}
}

func reservationJSON(r models.Reservation) gin.H {
	return gin.H{
		"id":              r.ID,
		"bookId":          r.BookID,
		"bookTitle":       r.BookTitle,
		"bookAuthor":      r.BookAuthor,
		"userId":          r.UserID,
		"position":        r.Position,
		"reservationDate": r.ReservationDate.Format(time.RFC3339),
		"status":          r.Status,
	}
}

func (s *server) getLoans(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	userLoans := s.engine.UserLoans(userID)
	items := make([]gin.H, len(userLoans))
	for i, loan := range userLoans {
		items[i] = loanJSON(loan)
	}
	c.JSON(http.StatusOK, items)
}

func (s *server) requestLoan(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	book, ok := bindBook(c)
	if !ok {
		return
	}

	result, err := s.engine.RequestLoan(c.Request.Context(), book, userID)
	if err != nil {
		writeError(c, err)
		return
	}

	switch result.Outcome {
	case loans.LoanGranted:
		c.JSON(http.StatusCreated, gin.H{
			"outcome": result.Outcome.String(),
			"loan":    loanJSON(*result.Loan),
		})
	case loans.LoanUnavailable:
		c.JSON(http.StatusConflict, gin.H{
			"outcome":    result.Outcome.String(),
			"message":    result.Message,
			"canReserve": true,
		})
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"outcome": result.Outcome.String(),
			"message": result.Message,
		})
	}
}

func (s *server) returnLoan(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	loan, err := s.engine.ReturnLoan(c.Request.Context(), c.Param("loanId"), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, loanJSON(loan))
}

func (s *server) sweepOverdue(c *gin.Context) {
	n, err := s.engine.SweepOverdue(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"overdue": n})
}

func (s *server) getReservations(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	reservations := s.engine.UserReservations(userID)
	items := make([]gin.H, len(reservations))
	for i, r := range reservations {
		items[i] = reservationJSON(r)
	}
	c.JSON(http.StatusOK, items)
}

func (s *server) createReservation(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	book, ok := bindBook(c)
	if !ok {
		return
	}

	result, err := s.engine.CreateReservation(c.Request.Context(), book, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":     result.Success,
		"reservation": reservationJSON(result.Reservation),
	})
}

func (s *server) getReservationPosition(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	bookID := c.Query("bookId")
	if bookID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bookId is required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"bookId":   bookID,
		"position": s.engine.ReservationPosition(bookID, userID),
	})
}

func (s *server) markReservationReady(c *gin.Context) {
	r, err := s.engine.MarkReservationReady(c.Request.Context(), c.Param("reservationId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reservationJSON(r))
}

func (s *server) expireReservation(c *gin.Context) {
	r, err := s.engine.ExpireReservation(c.Request.Context(), c.Param("reservationId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reservationJSON(r))
}

func (s *server) getAvailability(c *gin.Context) {
	bookID := c.Param("bookId")
	c.JSON(http.StatusOK, gin.H{
		"bookId":    bookID,
		"available": s.engine.IsBookAvailable(bookID),
	})
}

func (s *server) restoreAvailability(c *gin.Context) {
	bookID := c.Param("bookId")
	if err := s.engine.RestoreAvailability(c.Request.Context(), bookID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookId": bookID, "available": true})
}

func (s *server) getFavorites(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.engine.UserFavorites(userID))
}

func (s *server) addFavorite(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	book, ok := bindBook(c)
	if !ok {
		return
	}

	result, err := s.engine.AddToFavorites(c.Request.Context(), book, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	status := http.StatusCreated
	if !result.Success {
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"success": result.Success, "message": result.Message})
}

func (s *server) isFavorite(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	bookID := c.Param("bookId")
	c.JSON(http.StatusOK, gin.H{
		"bookId":   bookID,
		"favorite": s.engine.IsFavorite(bookID, userID),
	})
}

func (s *server) removeFavorite(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	result, err := s.engine.RemoveFromFavorites(c.Request.Context(), c.Param("bookId"), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": result.Success, "message": result.Message})
}

func (s *server) healthCheck(ctx *gin.Context) {
	sqlDB, err := s.db.DB()
	if err != nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "DOWN",
			"details": "Database connection failed",
			"error":   err.Error(),
		})
		return
	}
	if err := sqlDB.Ping(); err != nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "DOWN",
			"details": "Database ping failed",
			"error":   err.Error(),
		})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "UP"})
}
