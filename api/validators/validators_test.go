package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/zazmarga/online-cinema/pkg/errors"
	"github.com/zazmarga/online-cinema/pkg/pagination"
)

type addItemBody struct {
	MovieID string `json:"movie_id" validate:"required,uuid"`
}

func TestDecodeJSONBody(t *testing.T) {
	var body addItemBody
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"movie_id":"`+uuid.NewString()+`"}`))
	require.NoError(t, DecodeJSONBody(req, &body))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"movie_id":"nope"}`))
	err := DecodeJSONBody(req, &body)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, map[string]string{"movie_id": "must be a valid uuid"}, pkgerrors.As(err).Details())

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"movie_id":"x","extra":1}`))
	require.True(t, pkgerrors.IsCode(DecodeJSONBody(req, &body), pkgerrors.CodeValidation))
}

func TestParsePagination(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?cursor=abc", nil)
	params, err := ParsePagination(req)
	require.NoError(t, err)
	assert.Equal(t, pagination.Params{Limit: pagination.DefaultLimit, Cursor: "abc"}, params)

	req = httptest.NewRequest(http.MethodGet, "/?limit=500", nil)
	_, err = ParsePagination(req)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseQueryDate(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?date_from=2025-03-09", nil)
	got, err := ParseQueryDate(req, "date_from")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Equal(time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)))

	missing, err := ParseQueryDate(req, "date_to")
	require.NoError(t, err)
	assert.Nil(t, missing)

	req = httptest.NewRequest(http.MethodGet, "/?date_from=09-03-2025", nil)
	_, err = ParseQueryDate(req, "date_from")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseQueryLists(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/?status=pending,%20paid&status=canceled&user_ids="+a.String()+","+b.String(), nil)
	assert.Equal(t, []string{"pending", "paid", "canceled"}, ParseQueryList(req, "status"))

	ids, err := ParseQueryUUIDs(req, "user_ids")
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a, b}, ids)

	req = httptest.NewRequest(http.MethodGet, "/?user_ids=bogus", nil)
	_, err = ParseQueryUUIDs(req, "user_ids")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParsePathUUID(t *testing.T) {
	id := uuid.New()
	rc := chi.NewRouteContext()
	rc.URLParams.Add("orderId", id.String())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))

	got, err := ParsePathUUID(req, "orderId")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ParsePathUUID(req, "movieId")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyEmptyAndMistyped(t *testing.T) {
	var body addItemBody
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	err := DecodeJSONBody(req, &body)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, "request body is required", pkgerrors.As(err).Message())

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"movie_id":42}`))
	err = DecodeJSONBody(req, &body)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, map[string]string{"movie_id": "must be a string"}, pkgerrors.As(err).Details())
}
