package cart

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zazmarga/online-cinema/api/middleware"
	cartsvc "github.com/zazmarga/online-cinema/internal/cart"
	pkgerrors "github.com/zazmarga/online-cinema/pkg/errors"
)

type stubCartService struct {
	added   []uuid.UUID
	removed []uuid.UUID
	cleared bool
	addErr  error
	view    *cartsvc.CartView
}

func (s *stubCartService) Add(_ context.Context, _ uuid.UUID, movieID uuid.UUID) (*cartsvc.CartLine, error) {
	if s.addErr != nil {
		return nil, s.addErr
	}
	s.added = append(s.added, movieID)
	return &cartsvc.CartLine{MovieID: movieID, Name: "Heat", Price: decimal.RequireFromString("4.99"), Available: true}, nil
}

func (s *stubCartService) Remove(_ context.Context, _ uuid.UUID, movieID uuid.UUID) error {
	s.removed = append(s.removed, movieID)
	return nil
}

func (s *stubCartService) Clear(context.Context, uuid.UUID) error {
	s.cleared = true
	return nil
}

func (s *stubCartService) List(context.Context, uuid.UUID) (*cartsvc.CartView, error) {
	if s.view == nil {
		return &cartsvc.CartView{Items: []cartsvc.CartLine{}}, nil
	}
	return s.view, nil
}

func authedRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
}

func TestCartAddReturnsMessage(t *testing.T) {
	svc := &stubCartService{}
	movieID := uuid.New()

	resp := httptest.NewRecorder()
	CartAdd(svc, nil).ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/cart/items", `{"movie_id":"`+movieID.String()+`"}`))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	var body struct {
		Data struct {
			Message string `json:"message"`
			Item    struct {
				MovieID string `json:"movie_id"`
			} `json:"item"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Message != cartsvc.MessageAdded {
		t.Fatalf("unexpected message %q", body.Data.Message)
	}
	if body.Data.Item.MovieID != movieID.String() || len(svc.added) != 1 {
		t.Fatalf("expected movie forwarded to service")
	}
}

func TestCartAddRejectsMissingMovie(t *testing.T) {
	svc := &stubCartService{}
	resp := httptest.NewRecorder()
	CartAdd(svc, nil).ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/cart/items", `{}`))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if len(svc.added) != 0 {
		t.Fatalf("service must not be called")
	}
}

func TestCartAddMapsConflicts(t *testing.T) {
	svc := &stubCartService{addErr: pkgerrors.New(pkgerrors.CodeConflict, cartsvc.MessageAlreadyPurchased)}
	resp := httptest.NewRecorder()
	CartAdd(svc, nil).ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/cart/items", `{"movie_id":"`+uuid.NewString()+`"}`))
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), cartsvc.MessageAlreadyPurchased) {
		t.Fatalf("expected conflict message in body, got %s", resp.Body.String())
	}
}

func TestCartRequiresUser(t *testing.T) {
	resp := httptest.NewRecorder()
	CartList(&stubCartService{}, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCartRemoveAndClear(t *testing.T) {
	svc := &stubCartService{}
	movieID := uuid.New()

	router := chi.NewRouter()
	router.Delete("/api/v1/cart/items/{movieId}", CartRemove(svc, nil))
	router.Delete("/api/v1/cart/items", CartClear(svc, nil))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, authedRequest(http.MethodDelete, "/api/v1/cart/items/"+movieID.String(), ""))
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", resp.Code)
	}
	if len(svc.removed) != 1 || svc.removed[0] != movieID {
		t.Fatalf("expected removal of %s", movieID)
	}

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, authedRequest(http.MethodDelete, "/api/v1/cart/items/not-a-uuid", ""))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, authedRequest(http.MethodDelete, "/api/v1/cart/items", ""))
	if resp.Code != http.StatusNoContent || !svc.cleared {
		t.Fatalf("expected cart cleared, got %d", resp.Code)
	}
}
