package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zazmarga/online-cinema/pkg/db/models"
)

// Repository resolves movies against the catalog tables. The catalog itself is
// maintained elsewhere; this service only reads it.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetMovie(ctx context.Context, id uuid.UUID) (*models.Movie, error)
	GetMovies(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Movie, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a catalog repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// GetMovie returns nil, nil when the movie does not exist.
func (r *repository) GetMovie(ctx context.Context, id uuid.UUID) (*models.Movie, error) {
	var movie models.Movie
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&movie).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &movie, nil
}

// GetMovies returns the movies that still exist, keyed by id.
func (r *repository) GetMovies(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Movie, error) {
	out := make(map[uuid.UUID]models.Movie, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var movies []models.Movie
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&movies).Error; err != nil {
		return nil, err
	}
	for _, movie := range movies {
		out[movie.ID] = movie
	}
	return out, nil
}
