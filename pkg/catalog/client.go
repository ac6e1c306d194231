package catalog

import (
	"biblioteca/pkg/circuitbreaker"
	"biblioteca/pkg/metrics"
	"biblioteca/pkg/models"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var ErrBookNotFound = errors.New("book not found in catalog")

const (
	defaultMaxResults = 20
	unknownTitle      = "Untitled"
	unknownAuthor     = "Unknown author"
	noDescription     = "No description available."
	defaultLanguage   = "es"
	placeholderCover  = "/assets/no-cover.png"
)

// Client searches a Google Books compatible volumes API and normalizes the
// volumes into models.Book.
type Client struct {
	BaseURL    string
	APIKey     string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
}

func NewClient(baseURL, apiKey string, timeout time.Duration, breaker *circuitbreaker.CircuitBreaker) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		breaker: breaker,
	}
}

type SearchResult struct {
	Items      []models.Book `json:"items"`
	TotalItems int           `json:"totalItems"`
}

type volumeList struct {
	Items      []volume `json:"items"`
	TotalItems int      `json:"totalItems"`
}

type volume struct {
	ID         string `json:"id"`
	VolumeInfo struct {
		Title         string   `json:"title"`
		Subtitle      string   `json:"subtitle"`
		Authors       []string `json:"authors"`
		Publisher     string   `json:"publisher"`
		PublishedDate string   `json:"publishedDate"`
		Description   string   `json:"description"`
		PageCount     int      `json:"pageCount"`
		Categories    []string `json:"categories"`
		Language      string   `json:"language"`
		PreviewLink   string   `json:"previewLink"`
		InfoLink      string   `json:"infoLink"`
		AverageRating float64  `json:"averageRating"`
		RatingsCount  int      `json:"ratingsCount"`
		ImageLinks    struct {
			Thumbnail      string `json:"thumbnail"`
			SmallThumbnail string `json:"smallThumbnail"`
		} `json:"imageLinks"`
		IndustryIdentifiers []models.IndustryIdentifier `json:"industryIdentifiers"`
	} `json:"volumeInfo"`
}

// Search runs a free-text query. maxResults <= 0 uses the default of 20.
func (c *Client) Search(ctx context.Context, query string, maxResults int) (SearchResult, error) {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("maxResults", strconv.Itoa(maxResults))
	params.Set("orderBy", "relevance")

	var list volumeList
	if err := c.get(ctx, "search", c.BaseURL, params, &list); err != nil {
		return SearchResult{}, err
	}

	result := SearchResult{Items: make([]models.Book, 0, len(list.Items)), TotalItems: list.TotalItems}
	for _, v := range list.Items {
		result.Items = append(result.Items, v.toBook())
	}
	return result, nil
}

func (c *Client) GetBook(ctx context.Context, id string) (models.Book, error) {
	var v volume
	if err := c.get(ctx, "get", c.BaseURL+"/"+url.PathEscape(id), url.Values{}, &v); err != nil {
		return models.Book{}, err
	}
	return v.toBook(), nil
}

func (c *Client) get(ctx context.Context, op, endpoint string, params url.Values, out any) error {
	if c.APIKey != "" {
		params.Set("key", c.APIKey)
	}
	if encoded := params.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	// A missing volume is an answer, not a failure of the catalog.
	notFound := false
	err := c.breaker.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("catalog request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read catalog response: %w", err)
		}
		switch {
		case resp.StatusCode == http.StatusNotFound:
			notFound = true
			return nil
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("catalog returned status %d", resp.StatusCode)
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode catalog response: %w", err)
		}
		return nil
	})
	if err == nil && notFound {
		err = ErrBookNotFound
	}

	switch {
	case err == nil:
		metrics.CatalogRequests.WithLabelValues(op, "ok").Inc()
	case errors.Is(err, ErrBookNotFound):
		metrics.CatalogRequests.WithLabelValues(op, "not_found").Inc()
	default:
		metrics.CatalogRequests.WithLabelValues(op, "error").Inc()
	}
	return err
}

func (v volume) toBook() models.Book {
	info := v.VolumeInfo
	book := models.Book{
		ID:            v.ID,
		Title:         info.Title,
		Authors:       info.Authors,
		Categories:    info.Categories,
		Subtitle:      info.Subtitle,
		Publisher:     info.Publisher,
		PublishedDate: info.PublishedDate,
		Description:   info.Description,
		Thumbnail:     info.ImageLinks.Thumbnail,
		PageCount:     info.PageCount,
		Language:      info.Language,

		PreviewLink:         info.PreviewLink,
		InfoLink:            info.InfoLink,
		AverageRating:       info.AverageRating,
		RatingsCount:        info.RatingsCount,
		IndustryIdentifiers: info.IndustryIdentifiers,
	}
	if book.Title == "" {
		book.Title = unknownTitle
	}
	if len(book.Authors) == 0 {
		book.Authors = []string{unknownAuthor}
	}
	if book.Categories == nil {
		book.Categories = []string{}
	}
	if book.Description == "" {
		book.Description = noDescription
	}
	if book.Language == "" {
		book.Language = defaultLanguage
	}
	if book.Thumbnail == "" {
		book.Thumbnail = info.ImageLinks.SmallThumbnail
	}
	if book.Thumbnail == "" {
		book.Thumbnail = placeholderCover
	}
	if book.IndustryIdentifiers == nil {
		book.IndustryIdentifiers = []models.IndustryIdentifier{}
	}
	return book
}
