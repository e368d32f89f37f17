package cartdto

import "github.com/zazmarga/online-cinema/internal/cart"

// AddItemResponse echoes the added line alongside the outcome message.
type AddItemResponse struct {
	Message string         `json:"message"`
	Item    *cart.CartLine `json:"item,omitempty"`
}
