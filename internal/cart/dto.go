package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User-facing outcomes of cart operations.
const (
	MessageAdded            = "The movie has been added to user cart successfully."
	MessageMovieNotFound    = "Movie not found."
	MessageAlreadyPurchased = "Movie with this ID already is purchased by user."
	MessageAlreadyInCart    = "Movie with this ID already in user cart."
	MessageNotInCart        = "Movie is not in user cart."
)

// CartLine is a cart item joined with live catalog data.
type CartLine struct {
	MovieID   uuid.UUID       `json:"movie_id"`
	Name      string          `json:"name"`
	Year      int             `json:"year"`
	Price     decimal.Decimal `json:"price"`
	Genres    []string        `json:"genres"`
	Available bool            `json:"available"`
	AddedAt   time.Time       `json:"added_at"`
}

// CartView is the read projection returned by List.
type CartView struct {
	Items []CartLine      `json:"items"`
	Total decimal.Decimal `json:"total"`
}
