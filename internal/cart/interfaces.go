package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zazmarga/online-cinema/pkg/db/models"
)

// CartRepository defines the persistence surface required by the cart service
// and by order creation, which drains the cart.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	FindByUserForUpdate(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	EnsureForUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	ListItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error)
	InsertItem(ctx context.Context, item *models.CartItem) (bool, error)
	DeleteItem(ctx context.Context, cartID, movieID uuid.UUID) (int64, error)
	DeleteItemsByID(ctx context.Context, cartID uuid.UUID, itemIDs []uuid.UUID) (int64, error)
	DeleteAllItems(ctx context.Context, cartID uuid.UUID) (int64, error)
}
