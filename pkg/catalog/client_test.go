package catalog

import (
	"biblioteca/pkg/circuitbreaker"
	"biblioteca/pkg/models"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const volumesJSON = `{
  "totalItems": 2,
  "items": [
    {
      "id": "dune",
      "volumeInfo": {
        "title": "Dune",
        "authors": ["Frank Herbert"],
        "categories": ["Fiction"],
        "pageCount": 412,
        "language": "en",
        "previewLink": "http://books/dune/preview",
        "infoLink": "http://books/dune/info",
        "averageRating": 4.5,
        "ratingsCount": 1200,
        "industryIdentifiers": [{"type": "ISBN_13", "identifier": "9780441172719"}],
        "imageLinks": {"smallThumbnail": "http://img/dune-small"}
      }
    },
    {"id": "bare", "volumeInfo": {}}
  ]
}`

func newTestClient(url string) *Client {
	breaker := circuitbreaker.NewCircuitBreaker("catalog-test", 1, time.Minute)
	return NewClient(url, "secret", time.Second, breaker)
}

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "dune", r.URL.Query().Get("q"))
		assert.Equal(t, "20", r.URL.Query().Get("maxResults"))
		assert.Equal(t, "relevance", r.URL.Query().Get("orderBy"))
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		w.Write([]byte(volumesJSON))
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).Search(context.Background(), "dune", 0)
	require.NoError(t, err)

	assert.Equal(t, 2, res.TotalItems)
	require.Len(t, res.Items, 2)

	dune := res.Items[0]
	assert.Equal(t, "dune", dune.ID)
	assert.Equal(t, []string{"Frank Herbert"}, dune.Authors)
	assert.Equal(t, 412, dune.PageCount)
	assert.Equal(t, "http://img/dune-small", dune.Thumbnail)
	assert.Equal(t, "en", dune.Language)
	assert.Equal(t, "http://books/dune/preview", dune.PreviewLink)
	assert.Equal(t, "http://books/dune/info", dune.InfoLink)
	assert.Equal(t, 4.5, dune.AverageRating)
	assert.Equal(t, 1200, dune.RatingsCount)
	assert.Equal(t, []models.IndustryIdentifier{{Type: "ISBN_13", Identifier: "9780441172719"}}, dune.IndustryIdentifiers)
	assert.Equal(t, noDescription, dune.Description)

	bare := res.Items[1]
	assert.Equal(t, unknownTitle, bare.Title)
	assert.Equal(t, []string{unknownAuthor}, bare.Authors)
	assert.NotNil(t, bare.Categories)
	assert.Equal(t, noDescription, bare.Description)
	assert.Equal(t, defaultLanguage, bare.Language)
	assert.Equal(t, placeholderCover, bare.Thumbnail)
	assert.NotNil(t, bare.IndustryIdentifiers)
	assert.Empty(t, bare.IndustryIdentifiers)
}

func TestGetBook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/dune" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"id":"dune","volumeInfo":{"title":"Dune","authors":["Frank Herbert"]}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	book, err := c.GetBook(context.Background(), "dune")
	require.NoError(t, err)
	assert.Equal(t, "Dune", book.Title)

	for i := 0; i < 3; i++ {
		_, err = c.GetBook(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrBookNotFound)
	}
	// not-found answers do not trip the breaker
	assert.Equal(t, circuitbreaker.StateClosed, c.breaker.GetState())
}

func TestServerErrorsOpenBreaker(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	for i := 0; i < 2; i++ {
		_, err := c.Search(context.Background(), "x", 5)
		assert.Error(t, err)
	}

	_, err := c.Search(context.Background(), "x", 5)
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Equal(t, 2, calls)
}
