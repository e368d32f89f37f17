package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/zazmarga/online-cinema/internal/catalog"
	"github.com/zazmarga/online-cinema/internal/ledger"
	"github.com/zazmarga/online-cinema/pkg/db/dbtest"
	"github.com/zazmarga/online-cinema/pkg/db/models"
	pkgerrors "github.com/zazmarga/online-cinema/pkg/errors"
)

type harness struct {
	svc    Service
	conn   *gorm.DB
	ledger ledger.Service
}

func newHarness(t *testing.T) harness {
	t.Helper()
	client, conn := dbtest.Client(t)
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	require.NoError(t, err)
	svc, err := NewService(NewRepository(conn), client, catalog.NewRepository(conn), ledgerSvc)
	require.NoError(t, err)
	return harness{svc: svc, conn: conn, ledger: ledgerSvc}
}

func TestAddAndList(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := uuid.New()
	m1 := dbtest.SeedMovie(t, h.conn, "Alien", "9.99")
	m2 := dbtest.SeedMovie(t, h.conn, "Heat", "5.99")

	line, err := h.svc.Add(ctx, userID, m1.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alien", line.Name)
	_, err = h.svc.Add(ctx, userID, m2.ID)
	require.NoError(t, err)

	view, err := h.svc.List(ctx, userID)
	require.NoError(t, err)
	require.Len(t, view.Items, 2)
	assert.Equal(t, m1.ID, view.Items[0].MovieID)
	assert.Equal(t, "15.98", view.Total.StringFixed(2))

	var carts int64
	require.NoError(t, h.conn.Model(&models.Cart{}).Where("user_id = ?", userID).Count(&carts).Error)
	assert.Equal(t, int64(1), carts, "a user owns exactly one cart row")
}

func TestAddRejectsDuplicate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := uuid.New()
	movie := dbtest.SeedMovie(t, h.conn, "Ran", "7.99")

	_, err := h.svc.Add(ctx, userID, movie.ID)
	require.NoError(t, err)

	_, err = h.svc.Add(ctx, userID, movie.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	assert.Equal(t, MessageAlreadyInCart, pkgerrors.As(err).Message())
}

func TestAddRejectsOwnedMovie(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := uuid.New()
	movie := dbtest.SeedMovie(t, h.conn, "Solaris", "4.00")
	_, err := h.ledger.Grant(ctx, ledger.GrantInput{UserID: userID, MovieID: movie.ID})
	require.NoError(t, err)

	_, err = h.svc.Add(ctx, userID, movie.ID)
	require.Error(t, err)
	assert.Equal(t, MessageAlreadyPurchased, pkgerrors.As(err).Message())

	view, err := h.svc.List(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
}

func TestAddUnknownMovie(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Add(context.Background(), uuid.New(), uuid.New())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.Equal(t, MessageMovieNotFound, pkgerrors.As(err).Message())
}

func TestRemoveAndClear(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := uuid.New()
	m1 := dbtest.SeedMovie(t, h.conn, "Alien", "9.99")
	m2 := dbtest.SeedMovie(t, h.conn, "Heat", "5.99")

	err := h.svc.Remove(ctx, userID, m1.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "no cart yet")

	_, err = h.svc.Add(ctx, userID, m1.ID)
	require.NoError(t, err)
	_, err = h.svc.Add(ctx, userID, m2.ID)
	require.NoError(t, err)

	require.NoError(t, h.svc.Remove(ctx, userID, m1.ID))
	err = h.svc.Remove(ctx, userID, m1.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	require.NoError(t, h.svc.Clear(ctx, userID))
	require.NoError(t, h.svc.Clear(ctx, userID), "clearing an empty cart is a no-op")
	require.NoError(t, h.svc.Clear(ctx, uuid.New()), "clearing an absent cart is a no-op")

	view, err := h.svc.List(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
}

func TestListMarksVanishedMovies(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := uuid.New()
	movie := dbtest.SeedMovie(t, h.conn, "Gone", "3.00")
	_, err := h.svc.Add(ctx, userID, movie.ID)
	require.NoError(t, err)
	require.NoError(t, h.conn.Delete(&models.Movie{}, "id = ?", movie.ID).Error)

	view, err := h.svc.List(ctx, userID)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.False(t, view.Items[0].Available)
	assert.True(t, view.Total.IsZero())
}

func TestNewServiceValidation(t *testing.T) {
	_, err := NewService(nil, nil, nil, nil)
	assert.Error(t, err)
}
