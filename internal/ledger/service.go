package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zazmarga/online-cinema/pkg/db/models"
	pkgerrors "github.com/zazmarga/online-cinema/pkg/errors"
)

// OwnedMovie is a ledger entry joined with its catalog data.
type OwnedMovie struct {
	MovieID     uuid.UUID  `json:"movie_id"`
	Name        string     `json:"name"`
	Year        int        `json:"year"`
	Genres      []string   `json:"genres"`
	OrderID     *uuid.UUID `json:"order_id,omitempty"`
	PurchasedAt time.Time  `json:"purchased_at"`
}

// GrantInput identifies the ownership fact to append.
type GrantInput struct {
	UserID  uuid.UUID
	MovieID uuid.UUID
	OrderID *uuid.UUID
}

// Service is the single authority on which movies a user already owns.
type Service interface {
	WithTx(tx *gorm.DB) Service
	IsPurchased(ctx context.Context, userID, movieID uuid.UUID) (bool, error)
	PurchasedMovieIDs(ctx context.Context, userID uuid.UUID, movieIDs []uuid.UUID) (map[uuid.UUID]bool, error)
	Grant(ctx context.Context, input GrantInput) (bool, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]OwnedMovie, error)
}

type service struct {
	repo Repository
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	return &service{repo: s.repo.WithTx(tx)}
}

func (s *service) IsPurchased(ctx context.Context, userID, movieID uuid.UUID) (bool, error) {
	if userID == uuid.Nil || movieID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "user id and movie id are required")
	}
	owned, err := s.repo.Exists(ctx, userID, movieID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check purchase ledger")
	}
	return owned, nil
}

func (s *service) PurchasedMovieIDs(ctx context.Context, userID uuid.UUID, movieIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	owned := make(map[uuid.UUID]bool, len(movieIDs))
	ids, err := s.repo.ExistingMovieIDs(ctx, userID, movieIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check purchase ledger")
	}
	for _, id := range ids {
		owned[id] = true
	}
	return owned, nil
}

// Grant appends (user, movie). An existing entry is a no-op reported as false.
func (s *service) Grant(ctx context.Context, input GrantInput) (bool, error) {
	if input.UserID == uuid.Nil || input.MovieID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "user id and movie id are required")
	}
	inserted, err := s.repo.InsertIgnoreConflict(ctx, &models.PurchasedMovie{
		UserID:  input.UserID,
		MovieID: input.MovieID,
		OrderID: input.OrderID,
	})
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "grant movie ownership")
	}
	return inserted, nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID) ([]OwnedMovie, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	movies, err := s.repo.ListOwned(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list owned movies")
	}
	return movies, nil
}
