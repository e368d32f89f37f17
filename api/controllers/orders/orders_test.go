package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/zazmarga/online-cinema/api/middleware"
	checkoutsvc "github.com/zazmarga/online-cinema/internal/checkout"
	internalorders "github.com/zazmarga/online-cinema/internal/orders"
	"github.com/zazmarga/online-cinema/pkg/enums"
	pkgerrors "github.com/zazmarga/online-cinema/pkg/errors"
	"github.com/zazmarga/online-cinema/pkg/pagination"
)

type stubOrdersService struct {
	createResult *internalorders.CreateOrderResult
	cancelErr    error
	canceled     []uuid.UUID
	listParams   pagination.Params
	adminParams  internalorders.AdminListParams
}

func (s *stubOrdersService) CreateOrder(context.Context, uuid.UUID) (*internalorders.CreateOrderResult, error) {
	return s.createResult, nil
}

func (s *stubOrdersService) CancelOrder(_ context.Context, _ uuid.UUID, orderID uuid.UUID) error {
	if s.cancelErr != nil {
		return s.cancelErr
	}
	s.canceled = append(s.canceled, orderID)
	return nil
}

func (s *stubOrdersService) TransitionToPaid(context.Context, *gorm.DB, uuid.UUID) error {
	panic("not implemented")
}

func (s *stubOrdersService) ListMyOrders(_ context.Context, _ uuid.UUID, params pagination.Params) (*internalorders.OrderList, error) {
	s.listParams = params
	return &internalorders.OrderList{Items: []internalorders.OrderDTO{}}, nil
}

func (s *stubOrdersService) GetMyOrder(_ context.Context, _ uuid.UUID, orderID uuid.UUID) (*internalorders.OrderDTO, error) {
	return &internalorders.OrderDTO{ID: orderID, Status: enums.OrderStatusPending}, nil
}

func (s *stubOrdersService) ListAllOrders(_ context.Context, params internalorders.AdminListParams) (*internalorders.OrderList, error) {
	s.adminParams = params
	return &internalorders.OrderList{Items: []internalorders.OrderDTO{}}, nil
}

type stubCheckoutService struct {
	input checkoutsvc.ConfirmInput
	err   error
}

func (s *stubCheckoutService) ConfirmAndPreparePayment(_ context.Context, input checkoutsvc.ConfirmInput) (*checkoutsvc.CheckoutSession, error) {
	s.input = input
	if s.err != nil {
		return nil, s.err
	}
	return &checkoutsvc.CheckoutSession{
		SessionID:   "cs_test_1",
		RedirectURL: "https://checkout.stripe.com/c/pay/cs_test_1",
		Total:       decimal.RequireFromString("10.99"),
	}, nil
}

func newRouter(orders internalorders.Service, checkout checkoutsvc.Service) http.Handler {
	r := chi.NewRouter()
	r.Post("/api/v1/orders", Create(orders, nil))
	r.Get("/api/v1/orders", List(orders, nil))
	r.Get("/api/v1/orders/{orderId}", Detail(orders, nil))
	r.Post("/api/v1/orders/{orderId}/cancel", Cancel(orders, nil))
	r.Post("/api/v1/orders/{orderId}/checkout", Checkout(checkout, nil))
	r.Get("/api/v1/admin/orders", AdminList(orders, nil))
	return r
}

func authed(req *http.Request, email string) *http.Request {
	ctx := middleware.WithUserID(req.Context(), uuid.NewString())
	if email != "" {
		ctx = middleware.WithEmail(ctx, email)
	}
	return req.WithContext(ctx)
}

func decodeMessage(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Data struct {
			Message string `json:"message"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body.Data.Message
}

func TestCreateRespondsCreatedWithMessage(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrdersService{createResult: &internalorders.CreateOrderResult{
		Message: "Movie with id=x deleted from cart. Order has been created successfully.",
		OrderID: &orderID,
	}}

	resp := httptest.NewRecorder()
	newRouter(svc, nil).ServeHTTP(resp, authed(httptest.NewRequest(http.MethodPost, "/api/v1/orders", nil), ""))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
	if got := decodeMessage(t, resp); got != svc.createResult.Message {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestCancelReportsOutcome(t *testing.T) {
	svc := &stubOrdersService{}
	orderID := uuid.New()

	resp := httptest.NewRecorder()
	newRouter(svc, nil).ServeHTTP(resp, authed(httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/cancel", nil), ""))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if got := decodeMessage(t, resp); got != internalorders.MessageOrderCanceled {
		t.Fatalf("unexpected message %q", got)
	}
	if len(svc.canceled) != 1 || svc.canceled[0] != orderID {
		t.Fatalf("expected cancel of %s", orderID)
	}

	svc.cancelErr = pkgerrors.New(pkgerrors.CodeNotFound, internalorders.MessageOrderNotCancelable)
	resp = httptest.NewRecorder()
	newRouter(svc, nil).ServeHTTP(resp, authed(httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/cancel", nil), ""))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestCheckoutForwardsEmailAndReturnsSession(t *testing.T) {
	checkout := &stubCheckoutService{}
	orderID := uuid.New()

	resp := httptest.NewRecorder()
	req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/checkout", nil), "viewer@example.com")
	newRouter(&stubOrdersService{}, checkout).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if checkout.input.OrderID != orderID || checkout.input.CustomerEmail != "viewer@example.com" {
		t.Fatalf("unexpected input %+v", checkout.input)
	}
	var body struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data["redirect_url"] != "https://checkout.stripe.com/c/pay/cs_test_1" || body.Data["session_id"] != "cs_test_1" {
		t.Fatalf("unexpected body %v", body.Data)
	}

	checkout.err = pkgerrors.New(pkgerrors.CodeStateConflict, checkoutsvc.MessageOrderFinalized)
	resp = httptest.NewRecorder()
	newRouter(&stubOrdersService{}, checkout).ServeHTTP(resp, authed(httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/checkout", nil), ""))
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
}

func TestListParsesPagination(t *testing.T) {
	svc := &stubOrdersService{}
	resp := httptest.NewRecorder()
	newRouter(svc, nil).ServeHTTP(resp, authed(httptest.NewRequest(http.MethodGet, "/api/v1/orders?limit=5&cursor=abc", nil), ""))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.listParams.Limit != 5 || svc.listParams.Cursor != "abc" {
		t.Fatalf("unexpected params %+v", svc.listParams)
	}
}

func TestDetailRejectsMalformedID(t *testing.T) {
	resp := httptest.NewRecorder()
	newRouter(&stubOrdersService{}, nil).ServeHTTP(resp, authed(httptest.NewRequest(http.MethodGet, "/api/v1/orders/nope", nil), ""))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAdminListParsesFilters(t *testing.T) {
	svc := &stubOrdersService{}
	userA, userB := uuid.New(), uuid.New()
	target := "/api/v1/admin/orders?user_ids=" + userA.String() + "," + userB.String() +
		"&date_from=2025-01-01&date_to=2025-01-31&status=pending,paid"

	resp := httptest.NewRecorder()
	newRouter(svc, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, target, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}

	got := svc.adminParams
	if len(got.UserIDs) != 2 || got.UserIDs[0] != userA {
		t.Fatalf("unexpected user ids %v", got.UserIDs)
	}
	if got.DateFrom == nil || !got.DateFrom.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date_from %v", got.DateFrom)
	}
	if got.DateTo == nil || got.DateTo.Day() != 31 {
		t.Fatalf("unexpected date_to %v", got.DateTo)
	}
	if len(got.Statuses) != 2 || got.Statuses[1] != enums.OrderStatusPaid {
		t.Fatalf("unexpected statuses %v", got.Statuses)
	}
}

func TestAdminListRejectsUnknownStatus(t *testing.T) {
	resp := httptest.NewRecorder()
	newRouter(&stubOrdersService{}, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders?status=shipped", nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
