package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zazmarga/online-cinema/pkg/db/models"
	"github.com/zazmarga/online-cinema/pkg/pagination"
)

// Repository persists payments and serves their read projections.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// Insert writes the payment and its items. It reports false without
	// writing anything when external_payment_id is already recorded.
	Insert(ctx context.Context, payment *models.Payment) (bool, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.Payment, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*PaymentList, error)
	ListAll(ctx context.Context, params AdminListParams) (*PaymentList, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payments repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, payment *models.Payment) (bool, error) {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	items := payment.Items
	payment.Items = nil

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "external_payment_id"}}, DoNothing: true}).
		Create(payment)
	payment.Items = items
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	for i := range items {
		if items[i].ID == uuid.Nil {
			items[i].ID = uuid.New()
		}
		items[i].PaymentID = payment.ID
	}
	if len(items) > 0 {
		if err := r.db.WithContext(ctx).Create(&items).Error; err != nil {
			return false, err
		}
	}
	payment.Items = items
	return true, nil
}

// FindByExternalID returns nil, nil when no payment carries the identifier.
func (r *repository) FindByExternalID(ctx context.Context, externalID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).Where("external_payment_id = ?", externalID).First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*PaymentList, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	query := r.db.WithContext(ctx).Model(&models.Payment{}).Where("user_id = ?", userID)
	return r.page(ctx, pagination.ApplyDesc(query, "", cursor, params.Limit), params.Limit)
}

func (r *repository) ListAll(ctx context.Context, params AdminListParams) (*PaymentList, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	query := r.db.WithContext(ctx).Model(&models.Payment{})
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

func (r *repository) page(ctx context.Context, query *gorm.DB, limit int) (*PaymentList, error) {
	var rows []models.Payment
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
	dtos := make([]PaymentDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, toDTO(row, items[row.ID]))
	}
	page := pagination.Trim(dtos, limit, paymentCursor)
	return &page, nil
}

type itemRow struct {
	ID             uuid.UUID
	PaymentID      uuid.UUID
	OrderItemID    uuid.UUID
	PriceAtPayment decimal.Decimal
	MovieID        *uuid.UUID
	MovieName      *string
}

func (r *repository) itemsFor(ctx context.Context, paymentIDs []uuid.UUID) (map[uuid.UUID][]PaymentItemDTO, error) {
	out := make(map[uuid.UUID][]PaymentItemDTO, len(paymentIDs))
	if len(paymentIDs) == 0 {
		return out, nil
	}
	var rows []itemRow
	if err := r.db.WithContext(ctx).
		Table("payment_items pi").
		Select("pi.id, pi.payment_id, pi.order_item_id, pi.price_at_payment, oi.movie_id, m.name AS movie_name").
		Joins("LEFT JOIN order_items oi ON oi.id = pi.order_item_id").
		Joins("LEFT JOIN movies m ON m.id = oi.movie_id").
		Where("pi.payment_id IN ?", paymentIDs).
		Order("pi.id ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		item := PaymentItemDTO{
			ID:             row.ID,
			OrderItemID:    row.OrderItemID,
			MovieID:        row.MovieID,
			PriceAtPayment: row.PriceAtPayment,
		}
		if row.MovieName != nil {
			item.MovieName = *row.MovieName
		}
		out[row.PaymentID] = append(out[row.PaymentID], item)
	}
	return out, nil
}

func toDTO(payment models.Payment, items []PaymentItemDTO) PaymentDTO {
	if items == nil {
		items = []PaymentItemDTO{}
	}
	return PaymentDTO{
		ID:                payment.ID,
		UserID:            payment.UserID,
		OrderID:           payment.OrderID,
		Status:            payment.Status,
		Amount:            payment.Amount,
		Currency:          payment.Currency,
		ExternalPaymentID: payment.ExternalPaymentID,
		CreatedAt:         payment.CreatedAt,
		Items:             items,
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
