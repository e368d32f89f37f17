package cartdto

import "github.com/google/uuid"

// AddItemRequest is the body of POST /api/v1/cart/items.
type AddItemRequest struct {
	MovieID uuid.UUID `json:"movie_id" validate:"required"`
}
