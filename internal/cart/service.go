package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/zazmarga/online-cinema/internal/catalog"
	"github.com/zazmarga/online-cinema/internal/ledger"
	"github.com/zazmarga/online-cinema/pkg/db/models"
	pkgerrors "github.com/zazmarga/online-cinema/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes the per-user cart operations.
type Service interface {
	Add(ctx context.Context, userID, movieID uuid.UUID) (*CartLine, error)
	Remove(ctx context.Context, userID, movieID uuid.UUID) error
	Clear(ctx context.Context, userID uuid.UUID) error
	List(ctx context.Context, userID uuid.UUID) (*CartView, error)
}

type service struct {
	repo    CartRepository
	tx      txRunner
	catalog catalog.Repository
	ledger  ledger.Service
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, tx txRunner, catalogRepo catalog.Repository, ledgerSvc ledger.Service) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		catalog: catalogRepo,
		ledger:  ledgerSvc,
	}, nil
}

func (s *service) Add(ctx context.Context, userID, movieID uuid.UUID) (*CartLine, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if movieID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "movie id required")
	}

	var line *CartLine
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		movie, err := s.catalog.WithTx(tx).GetMovie(ctx, movieID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load movie")
		}
		if movie == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, MessageMovieNotFound)
		}

		owned, err := s.ledger.WithTx(tx).IsPurchased(ctx, userID, movieID)
		if err != nil {
			return err
		}
		if owned {
			return pkgerrors.New(pkgerrors.CodeConflict, MessageAlreadyPurchased)
		}

		repo := s.repo.WithTx(tx)
		cart, err := repo.EnsureForUser(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure cart")
		}

		item := &models.CartItem{CartID: cart.ID, MovieID: movieID}
		inserted, err := repo.InsertItem(ctx, item)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert cart item")
		}
		if !inserted {
			return pkgerrors.New(pkgerrors.CodeConflict, MessageAlreadyInCart)
		}

		l := lineFor(*item, movie)
		line = &l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

func (s *service) Remove(ctx context.Context, userID, movieID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if movieID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "movie id required")
	}
	cart, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if cart == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, MessageNotInCart)
	}
	removed, err := s.repo.DeleteItem(ctx, cart.ID, movieID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
	}
	if removed == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, MessageNotInCart)
	}
	return nil
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	cart, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if cart == nil {
		return nil
	}
	if _, err := s.repo.DeleteAllItems(ctx, cart.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) (*CartView, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	view := &CartView{Items: []CartLine{}, Total: decimal.Zero}

	cart, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if cart == nil {
		return view, nil
	}
	items, err := s.repo.ListItems(ctx, cart.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart items")
	}

	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.MovieID)
	}
	movies, err := s.catalog.GetMovies(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load movies")
	}

	for _, item := range items {
		var movie *models.Movie
		if m, ok := movies[item.MovieID]; ok {
			movie = &m
		}
		line := lineFor(item, movie)
		if line.Available {
			view.Total = view.Total.Add(line.Price)
		}
		view.Items = append(view.Items, line)
	}
	return view, nil
}

func lineFor(item models.CartItem, movie *models.Movie) CartLine {
	line := CartLine{
		MovieID: item.MovieID,
		AddedAt: item.AddedAt,
		Genres:  []string{},
		Price:   decimal.Zero,
	}
	if movie == nil {
		return line
	}
	line.Name = movie.Name
	line.Year = movie.Year
	line.Price = movie.Price
	line.Available = true
	if movie.Genres != nil {
		line.Genres = movie.Genres
	}
	return line
}
