package main

import (
	"biblioteca/pkg/catalog"
	"biblioteca/pkg/circuitbreaker"
	"biblioteca/pkg/config"
	"biblioteca/pkg/queue"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const userHeader = "X-User-Id"

const (
	retryBackoff     = 5 * time.Second
	retryMaxAttempts = 6
	retryPoll        = time.Second
)

var (
	loansServiceURL string
	httpClient      *http.Client
	loansBreaker    *circuitbreaker.CircuitBreaker
	catalogClient   *catalog.Client
	retryQueue      *queue.Queue

	// favoriteWrites orders direct favorites writes and replays, so a replay
	// never lands after a newer write for the same book.
	favoriteWrites sync.Mutex
)

// errUpstream marks a loans service answer that should count against its breaker.
var errUpstream = errors.New("loans service unavailable")

func main() {
	cfg, err := config.Load(os.Getenv("LIBRARY_CONFIG"))
	if err != nil {
		slog.Error("Failed to load config", "err", err)
		os.Exit(1)
	}

	loansServiceURL = cfg.Gateway.LoansServiceURL
	httpClient = &http.Client{
		Timeout: cfg.Gateway.Timeout,
	}
	loansBreaker = circuitbreaker.NewCircuitBreaker("loans", cfg.Gateway.BreakerFailures, cfg.Gateway.BreakerCooldown)
	catalogClient = catalog.NewClient(
		cfg.Gateway.CatalogURL,
		cfg.Gateway.CatalogAPIKey,
		cfg.Gateway.Timeout,
		circuitbreaker.NewCircuitBreaker("catalog", cfg.Gateway.BreakerFailures, cfg.Gateway.BreakerCooldown),
	)

	retryQueue = queue.NewQueue(retryBackoff)
	go runRetries(context.Background(), retryPoll)

	r := setupRouter()

	slog.Info("Gateway service starting", "port", cfg.Gateway.Port)
	if err := r.Run(":" + cfg.Gateway.Port); err != nil {
		slog.Error("Gateway stopped", "err", err)
		os.Exit(1)
	}
}

func setupRouter() *gin.Engine {
	r := gin.Default()

	r.GET("/api/v1/books", searchBooksHandler)
	r.GET("/api/v1/books/:bookId", getBookHandler)
	r.GET("/api/v1/books/:bookId/availability", getAvailabilityHandler)
	r.POST("/api/v1/books/:bookId/loan", borrowHandler("/api/v1/loans"))
	r.POST("/api/v1/books/:bookId/reserve", borrowHandler("/api/v1/reservations"))
	r.POST("/api/v1/books/:bookId/favorite", addFavoriteHandler)
	r.DELETE("/api/v1/books/:bookId/favorite", removeFavoriteHandler)
	r.GET("/api/v1/loans", userListHandler("/api/v1/loans"))
	r.GET("/api/v1/reservations", userListHandler("/api/v1/reservations"))
	r.GET("/api/v1/favorites", userListHandler("/api/v1/favorites"))
	r.GET("/manage/health", healthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func searchBooksHandler(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}
	maxResults := 0
	if raw := c.Query("maxResults"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "maxResults must be a positive number"})
			return
		}
		maxResults = n
	}

	result, err := catalogClient.Search(c.Request.Context(), query, maxResults)
	if err != nil {
		writeCatalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func getBookHandler(c *gin.Context) {
	book, err := catalogClient.GetBook(c.Request.Context(), c.Param("bookId"))
	if err != nil {
		writeCatalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

func writeCatalogError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, catalog.ErrBookNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Book not found"})
	case errors.Is(err, circuitbreaker.ErrOpen):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "catalog is temporarily unavailable"})
	default:
		slog.Error("Catalog request failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query the catalog"})
	}
}

// borrowHandler resolves the book in the catalog and hands the full record to
// the loans service, so loans and reservations snapshot catalog data.
func borrowHandler(path string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, body, ok := resolveBook(c)
		if !ok {
			return
		}
		forward(c, http.MethodPost, path, userID, body)
	}
}

func resolveBook(c *gin.Context) (string, []byte, bool) {
	userID := c.GetHeader(userHeader)
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": userHeader + " header is required"})
		return "", nil, false
	}

	book, err := catalogClient.GetBook(c.Request.Context(), c.Param("bookId"))
	if err != nil {
		writeCatalogError(c, err)
		return "", nil, false
	}
	body, err := json.Marshal(book)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create request body"})
		return "", nil, false
	}
	return userID, body, true
}

func addFavoriteHandler(c *gin.Context) {
	userID, body, ok := resolveBook(c)
	if !ok {
		return
	}
	writeOrQueue(c, favoriteKey(userID, c.Param("bookId")), http.MethodPost, "/api/v1/favorites", userID, body)
}

func removeFavoriteHandler(c *gin.Context) {
	userID := c.GetHeader(userHeader)
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": userHeader + " header is required"})
		return
	}
	bookID := c.Param("bookId")
	writeOrQueue(c, favoriteKey(userID, bookID), http.MethodDelete, "/api/v1/favorites/"+url.PathEscape(bookID), userID, nil)
}

func favoriteKey(userID, bookID string) string {
	return userID + " " + bookID
}

// writeOrQueue performs a favorites write and, when the loans service cannot
// take it right now, accepts it for a later replay. Only idempotent writes
// may come through here. A pending replay for the same key is superseded by
// this write whether or not it succeeds.
func writeOrQueue(c *gin.Context, key, method, path, userID string, body []byte) {
	favoriteWrites.Lock()
	defer favoriteWrites.Unlock()

	if n := retryQueue.DropKey(key); n > 0 {
		slog.Info("Discarded superseded favorites write", "key", key, "count", n)
	}
	status, data, err := callLoans(c.Request.Context(), method, path, userID, body)
	if err == nil {
		c.Data(status, "application/json", data)
		return
	}

	req := &queue.RetryRequest{
		ID:          uuid.NewString(),
		Key:         key,
		Method:      method,
		Path:        path,
		UserID:      userID,
		Body:        body,
		MaxAttempts: retryMaxAttempts,
	}
	retryQueue.Enqueue(req)
	slog.Warn("Favorites write queued for retry", "id", req.ID, "method", method, "path", path, "err", err)
	c.JSON(http.StatusAccepted, gin.H{"queued": true, "requestId": req.ID})
}

// runRetries replays due requests until ctx is done.
func runRetries(ctx context.Context, poll time.Duration) {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			drainRetries(ctx)
		}
	}
}

func drainRetries(ctx context.Context) {
	for replayNext(ctx) {
	}
}

// replayNext sends the next due request and reports whether there was one.
func replayNext(ctx context.Context) bool {
	favoriteWrites.Lock()
	defer favoriteWrites.Unlock()

	req := retryQueue.Dequeue()
	if req == nil {
		return false
	}
	if _, _, err := callLoans(ctx, req.Method, req.Path, req.UserID, req.Body); err != nil {
		if !retryQueue.Requeue(req) {
			slog.Error("Dropping favorites write after retries", "id", req.ID, "attempts", req.Attempts, "err", err)
		}
		return true
	}
	slog.Info("Replayed favorites write", "id", req.ID, "path", req.Path)
	return true
}

func getAvailabilityHandler(c *gin.Context) {
	forward(c, http.MethodGet, "/api/v1/books/"+url.PathEscape(c.Param("bookId"))+"/availability", "", nil)
}

func userListHandler(path string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(userHeader)
		if userID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": userHeader + " header is required"})
			return
		}
		forward(c, http.MethodGet, path, userID, nil)
	}
}

// callLoans sends one request to the loans service through its breaker.
// Transport errors and 5xx answers count as breaker failures; the body of a
// 5xx answer is still returned.
func callLoans(ctx context.Context, method, path, userID string, body []byte) (int, []byte, error) {
	var status int
	var data []byte
	err := loansBreaker.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, method, loansServiceURL+path, bytes.NewReader(body))
		if err != nil {
			return err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if userID != "" {
			req.Header.Set(userHeader, userID)
		}
		resp, err := httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		status = resp.StatusCode
		if status >= http.StatusInternalServerError {
			return fmt.Errorf("%w: status %d", errUpstream, status)
		}
		return nil
	})
	return status, data, err
}

// forward relays a request to the loans service and copies its answer back.
func forward(c *gin.Context, method, path, userID string, body []byte) {
	status, data, err := callLoans(c.Request.Context(), method, path, userID, body)
	switch {
	case err == nil, errors.Is(err, errUpstream):
		c.Data(status, "application/json", data)
	case errors.Is(err, circuitbreaker.ErrOpen):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "loans service is temporarily unavailable"})
	default:
		slog.Error("Loans service request failed", "method", method, "path", path, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to perform the request"})
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "UP",
		"loans":   loansBreaker.GetState().String(),
		"queued":  queuedIDs(),
		"details": "Gateway is active",
	})
}

func queuedIDs() []string {
	pending := retryQueue.GetAll()
	ids := make([]string, len(pending))
	for i, req := range pending {
		ids[i] = req.ID
	}
	return ids
}
