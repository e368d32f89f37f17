package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zazmarga/online-cinema/pkg/db/models"
	"github.com/zazmarga/online-cinema/pkg/enums"
	"github.com/zazmarga/online-cinema/pkg/pagination"
)

// ErrNotPending is returned when a guarded write finds the order already finalized.
var ErrNotPending = errors.New("order is not pending")

type repository struct {
	db *gorm.DB
}

// NewRepository returns an orders repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create persists the order row and its items.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	now := time.Now().UTC()
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = order.CreatedAt

	items := order.Items
	order.Items = nil
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return err
	}
	for i := range items {
		if items[i].ID == uuid.Nil {
			items[i].ID = uuid.New()
		}
		items[i].OrderID = order.ID
	}
	if len(items) > 0 {
		if err := r.db.WithContext(ctx).Create(&items).Error; err != nil {
			return err
		}
	}
	order.Items = items
	return nil
}

// FindByID returns nil, nil when the order does not exist.
func (r *repository) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return r.find(r.db.WithContext(ctx), orderID)
}

// FindByIDForUpdate locks the order row until the surrounding transaction ends.
func (r *repository) FindByIDForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), orderID)
}

func (r *repository) find(query *gorm.DB, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := query.Where("id = ?", orderID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	var items []models.OrderItem
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ActiveMovieIDs returns the subset of movieIDs already held by one of the
// user's orders that is not canceled.
func (r *repository) ActiveMovieIDs(ctx context.Context, userID uuid.UUID, movieIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(movieIDs) == 0 {
		return nil, nil
	}
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Table("order_items oi").
		Distinct("oi.movie_id").
		Joins("JOIN orders o ON o.id = oi.order_id").
		Where("o.user_id = ? AND o.status <> ?", userID, enums.OrderStatusCanceled).
		Where("oi.movie_id IN ?", movieIDs).
		Pluck("oi.movie_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// TransitionStatus is a compare-and-set on status; zero rows means another
// writer finalized the order first.
func (r *repository) TransitionStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

// RestampPendingPrices overwrites the order total and price_at_order for the
// items in prices, refusing to touch an order that is no longer pending. A nil
// prices map updates the total only.
func (r *repository) RestampPendingPrices(ctx context.Context, orderID uuid.UUID, prices map[uuid.UUID]decimal.Decimal, total decimal.Decimal) error {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, enums.OrderStatusPending).
		Updates(map[string]any{
			"total_amount": total,
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotPending
	}
	for itemID, price := range prices {
		if err := r.db.WithContext(ctx).
			Model(&models.OrderItem{}).
			Where("id = ? AND order_id = ?", itemID, orderID).
			Update("price_at_order", price).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	query := r.db.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID)
	return r.page(ctx, pagination.ApplyDesc(query, "", cursor, params.Limit), params.Limit)
}

func (r *repository) ListAll(ctx context.Context, params AdminListParams) (*OrderList, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	query := r.db.WithContext(ctx).Model(&models.Order{})
	if len(params.UserIDs) > 0 {
		query = query.Where("user_id IN ?", params.UserIDs)
	}
	if params.DateFrom != nil {
		query = query.Where("created_at >= ?", startOfDay(*params.DateFrom))
	}
	if params.DateTo != nil {
		query = query.Where("created_at < ?", startOfDay(*params.DateTo).AddDate(0, 0, 1))
	}
	if len(params.Statuses) > 0 {
		query = query.Where("status IN ?", params.Statuses)
	}
	return r.page(ctx, pagination.ApplyDesc(query, "", cursor, params.Limit), params.Limit)
}

func (r *repository) Detail(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := r.FindByID(ctx, orderID)
	if err != nil || order == nil {
		return nil, err
	}
	items, err := r.itemsFor(ctx, []uuid.UUID{order.ID})
	if err != nil {
		return nil, err
	}
	dto := toDTO(*order, items[order.ID])
	return &dto, nil
}

func (r *repository) page(ctx context.Context, query *gorm.DB, limit int) (*OrderList, error) {
	var rows []models.Order
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	items, err := r.itemsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	dtos := make([]OrderDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, toDTO(row, items[row.ID]))
	}
	page := pagination.Trim(dtos, limit, orderCursor)
	return &page, nil
}

type itemRow struct {
	ID           uuid.UUID
	OrderID      uuid.UUID
	MovieID      uuid.UUID
	PriceAtOrder decimal.Decimal
	MovieName    *string
}

func (r *repository) itemsFor(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]OrderItemDTO, error) {
	out := make(map[uuid.UUID][]OrderItemDTO, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}
	var rows []itemRow
	if err := r.db.WithContext(ctx).
		Table("order_items oi").
		Select("oi.id, oi.order_id, oi.movie_id, oi.price_at_order, m.name AS movie_name").
		Joins("LEFT JOIN movies m ON m.id = oi.movie_id").
		Where("oi.order_id IN ?", orderIDs).
		Order("oi.id ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		item := OrderItemDTO{
			ID:           row.ID,
			MovieID:      row.MovieID,
			PriceAtOrder: row.PriceAtOrder,
		}
		if row.MovieName != nil {
			item.MovieName = *row.MovieName
		}
		out[row.OrderID] = append(out[row.OrderID], item)
	}
	return out, nil
}

func toDTO(order models.Order, items []OrderItemDTO) OrderDTO {
	if items == nil {
		items = []OrderItemDTO{}
	}
	return OrderDTO{
		ID:          order.ID,
		UserID:      order.UserID,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
		Items:       items,
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
