package loans

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddToFavoritesTwice(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, newMemStore())

	first, err := e.AddToFavorites(ctx, dune(), "u1")
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.Equal(t, FavoriteAddedMessage, first.Message)

	second, err := e.AddToFavorites(ctx, dune(), "u1")
	require.NoError(t, err)
	assert.False(t, second.Success)
	assert.Equal(t, FavoriteExistsMessage, second.Message)

	assert.Len(t, e.UserFavorites("u1"), 1)
	assert.True(t, e.IsFavorite("dune", "u1"))
}

func TestFavoritesAreScopedPerUser(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, newMemStore())

	_, err := e.AddToFavorites(ctx, dune(), "u1")
	require.NoError(t, err)
	res, err := e.AddToFavorites(ctx, dune(), "u2")
	require.NoError(t, err)
	assert.True(t, res.Success)

	// ids that would collide under "user_book" string keys
	_, err = e.AddToFavorites(ctx, book("b_x"), "u")
	require.NoError(t, err)
	assert.False(t, e.IsFavorite("x", "u_b"))

	assert.Len(t, e.UserFavorites("u1"), 1)
	assert.Len(t, e.UserFavorites("u2"), 1)
	assert.Len(t, e.UserFavorites("u"), 1)
	assert.Empty(t, e.UserFavorites("u_b"))
}

func TestRemoveFromFavorites(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, newMemStore())

	_, err := e.AddToFavorites(ctx, dune(), "u1")
	require.NoError(t, err)
	_, err = e.AddToFavorites(ctx, book("b2"), "u1")
	require.NoError(t, err)

	res, err := e.RemoveFromFavorites(ctx, "dune", "u1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, e.IsFavorite("dune", "u1"))
	assert.Len(t, e.UserFavorites("u1"), 1)

	// never present
	res, err = e.RemoveFromFavorites(ctx, "ghost", "u9")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, e.IsFavorite("ghost", "u9"))
}

func TestUserFavoritesSortedByBookID(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, newMemStore())

	for _, id := range []string{"m", "c", "x"} {
		_, err := e.AddToFavorites(ctx, book(id), "u1")
		require.NoError(t, err)
	}

	got := e.UserFavorites("u1")
	require.Len(t, got, 3)
	assert.Equal(t, []string{"c", "m", "x"}, []string{got[0].ID, got[1].ID, got[2].ID})
	assert.Equal(t, []string{"A. Author", "B. Author"}, got[0].Authors)
}

func TestFavoritesSurviveReload(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	e := newTestEngine(t, store)

	_, err := e.AddToFavorites(ctx, dune(), "u1")
	require.NoError(t, err)

	reloaded := newTestEngine(t, store)
	assert.True(t, reloaded.IsFavorite("dune", "u1"))
	assert.Equal(t, e.UserFavorites("u1"), reloaded.UserFavorites("u1"))

	res, err := reloaded.AddToFavorites(ctx, dune(), "u1")
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestWithUserDoesNotAliasOriginal(t *testing.T) {
	f := Favorites{}
	next := f.withUser("u1")
	next.add(dune(), "u1")

	assert.False(t, f.has("u1", "dune"))
	assert.True(t, next.has("u1", "dune"))
}
