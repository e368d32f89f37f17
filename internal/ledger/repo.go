package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zazmarga/online-cinema/pkg/db/models"
)

// Repository manages persistence for the purchase ledger. Rows are never
// updated or deleted.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Exists(ctx context.Context, userID, movieID uuid.UUID) (bool, error)
	ExistingMovieIDs(ctx context.Context, userID uuid.UUID, movieIDs []uuid.UUID) ([]uuid.UUID, error)
	InsertIgnoreConflict(ctx context.Context, entry *models.PurchasedMovie) (bool, error)
	ListOwned(ctx context.Context, userID uuid.UUID) ([]OwnedMovie, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Exists(ctx context.Context, userID, movieID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.PurchasedMovie{}).
		Where("user_id = ? AND movie_id = ?", userID, movieID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) ExistingMovieIDs(ctx context.Context, userID uuid.UUID, movieIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(movieIDs) == 0 {
		return nil, nil
	}
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.PurchasedMovie{}).
		Where("user_id = ? AND movie_id IN ?", userID, movieIDs).
		Pluck("movie_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// InsertIgnoreConflict reports whether a new row was written.
func (r *repository) InsertIgnoreConflict(ctx context.Context, entry *models.PurchasedMovie) (bool, error) {
	if entry.PurchasedAt.IsZero() {
		entry.PurchasedAt = time.Now().UTC()
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "movie_id"}},
			DoNothing: true,
		}).
		Create(entry)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) ListOwned(ctx context.Context, userID uuid.UUID) ([]OwnedMovie, error) {
	var rows []ownedRow
	if err := r.db.WithContext(ctx).
		Table("purchased_movies pm").
		Select("pm.movie_id, pm.order_id, pm.purchased_at, m.name, m.year, m.genres").
		Joins("LEFT JOIN movies m ON m.id = pm.movie_id").
		Where("pm.user_id = ?", userID).
		Order("pm.purchased_at DESC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]OwnedMovie, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDTO())
	}
	return out, nil
}

type ownedRow struct {
	MovieID     uuid.UUID
	OrderID     *uuid.UUID
	PurchasedAt time.Time
	Name        *string
	Year        *int
	Genres      []string `gorm:"serializer:json"`
}

func (r ownedRow) toDTO() OwnedMovie {
	dto := OwnedMovie{
		MovieID:     r.MovieID,
		OrderID:     r.OrderID,
		PurchasedAt: r.PurchasedAt,
		Genres:      r.Genres,
	}
	if r.Name != nil {
		dto.Name = *r.Name
	}
	if r.Year != nil {
		dto.Year = *r.Year
	}
	if dto.Genres == nil {
		dto.Genres = []string{}
	}
	return dto
}
