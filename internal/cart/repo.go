package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zazmarga/online-cinema/pkg/db/models"
)

type Repository struct {
	db *gorm.DB
}

// NewRepository binds a cart repository to the provided database handle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByUser returns nil, nil when the user has no cart row yet.
func (r *Repository) FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	return r.findByUser(r.db.WithContext(ctx), userID)
}

// FindByUserForUpdate locks the cart row until the surrounding transaction ends,
// serializing concurrent checkouts of the same cart.
func (r *Repository) FindByUserForUpdate(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	return r.findByUser(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), userID)
}

func (r *Repository) findByUser(query *gorm.DB, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := query.Where("user_id = ?", userID).First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// EnsureForUser creates the cart row when missing. A racing creator is absorbed
// by the unique user_id index.
func (r *Repository) EnsureForUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	candidate := models.Cart{
		ID:        uuid.New(),
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&candidate).Error; err != nil {
		return nil, err
	}
	cart, err := r.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, errors.New("cart missing after ensure")
	}
	return cart, nil
}

func (r *Repository) ListItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("added_at ASC").
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// InsertItem reports false when the (cart, movie) pair already exists.
func (r *Repository) InsertItem(ctx context.Context, item *models.CartItem) (bool, error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.AddedAt.IsZero() {
		item.AddedAt = time.Now().UTC()
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cart_id"}, {Name: "movie_id"}},
			DoNothing: true,
		}).
		Create(item)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *Repository) DeleteItem(ctx context.Context, cartID, movieID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("cart_id = ? AND movie_id = ?", cartID, movieID).
		Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}

// DeleteItemsByID removes exactly the listed items, leaving anything added since.
func (r *Repository) DeleteItemsByID(ctx context.Context, cartID uuid.UUID, itemIDs []uuid.UUID) (int64, error) {
	if len(itemIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Where("cart_id = ? AND id IN ?", cartID, itemIDs).
		Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}

func (r *Repository) DeleteAllItems(ctx context.Context, cartID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}
