package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	pkgerrors "github.com/zazmarga/online-cinema/pkg/errors"
	"github.com/zazmarga/online-cinema/pkg/pagination"
)

// Service exposes the payment history.
type Service interface {
	ListMyPayments(ctx context.Context, userID uuid.UUID, params pagination.Params) (*PaymentList, error)
	ListAllPayments(ctx context.Context, params AdminListParams) (*PaymentList, error)
}

type service struct {
	repo Repository
}

// NewService builds the payments read service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListMyPayments(ctx context.Context, userID uuid.UUID, params pagination.Params) (*PaymentList, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if err := validateCursor(params.Cursor); err != nil {
		return nil, err
	}
	list, err := s.repo.ListByUser(ctx, userID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
	}
	return list, nil
}

func (s *service) ListAllPayments(ctx context.Context, params AdminListParams) (*PaymentList, error) {
	if params.DateFrom != nil && params.DateTo != nil && params.DateTo.Before(*params.DateFrom) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "date_to must not be before date_from")
	}
	for _, status := range params.Statuses {
		if !status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid status %q", status))
		}
	}
	if err := validateCursor(params.Cursor); err != nil {
		return nil, err
	}
	list, err := s.repo.ListAll(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
	}
	return list, nil
}

func validateCursor(raw string) error {
	if _, err := pagination.ParseCursor(raw); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	return nil
}
