package models

// All lists every persisted model in dependency order, for sqlite AutoMigrate.
func All() []any {
	return []any{
		&Movie{},
		&Cart{},
		&CartItem{},
		&Order{},
		&OrderItem{},
		&Payment{},
		&PaymentItem{},
		&PurchasedMovie{},
		&OutboxEvent{},
	}
}
