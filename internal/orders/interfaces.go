package orders

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/zazmarga/online-cinema/pkg/db/models"
	"github.com/zazmarga/online-cinema/pkg/enums"
	"github.com/zazmarga/online-cinema/pkg/pagination"
)

// Repository defines persistence operations for the orders tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindByIDForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	ActiveMovieIDs(ctx context.Context, userID uuid.UUID, movieIDs []uuid.UUID) ([]uuid.UUID, error)
	TransitionStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus) (int64, error)
	RestampPendingPrices(ctx context.Context, orderID uuid.UUID, prices map[uuid.UUID]decimal.Decimal, total decimal.Decimal) error
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error)
	ListAll(ctx context.Context, params AdminListParams) (*OrderList, error)
	Detail(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error)
}
