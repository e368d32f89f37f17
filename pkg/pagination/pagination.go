package pagination

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 25
	// MaxLimit caps how many rows any cursor query can request.
	MaxLimit = 100
)

// Params holds cursor pagination inputs from controllers or services.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor represents the pagination cursor components.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// Page is a slice of rows plus the cursor for the next slice, if any.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// NormalizeLimit enforces the configured default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// LimitWithBuffer returns the normalization result plus one to detect the next page.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// EncodeCursor builds a base64 cursor string from the provided values.
func EncodeCursor(cursor Cursor) string {
	payload := fmt.Sprintf("%s|%s", cursor.CreatedAt.UTC().Format(time.RFC3339Nano), cursor.ID.String())
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

// ParseCursor decodes the cursor string back into its components.
func ParseCursor(value string) (*Cursor, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid cursor format")
	}

	t, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid cursor timestamp: %w", err)
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid cursor id: %w", err)
	}
	return &Cursor{
		CreatedAt: t,
		ID:        id,
	}, nil
}

// ApplyDesc orders the query newest first and skips rows at or before the cursor.
// The table prefix qualifies the created_at/id columns when joins are involved.
func ApplyDesc(query *gorm.DB, table string, cursor *Cursor, limit int) *gorm.DB {
	col := func(name string) string {
		if table == "" {
			return name
		}
		return table + "." + name
	}
	if cursor != nil {
		query = query.Where(
			fmt.Sprintf("(%s < ?) OR (%s = ? AND %s < ?)", col("created_at"), col("created_at"), col("id")),
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}
	return query.
		Order(col("created_at") + " DESC").
		Order(col("id") + " DESC").
		Limit(LimitWithBuffer(limit))
}

// Trim cuts the buffered row and computes the next cursor from the last kept row.
func Trim[T any](rows []T, limit int, key func(T) Cursor) Page[T] {
	limit = NormalizeLimit(limit)
	page := Page[T]{Items: rows}
	if len(rows) > limit {
		page.Items = rows[:limit]
		page.NextCursor = EncodeCursor(key(page.Items[len(page.Items)-1]))
	}
	if page.Items == nil {
		page.Items = []T{}
	}
	return page
}
