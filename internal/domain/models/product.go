package models

import "github.com/shopspring/decimal"

// Product представляет товар каталога. Цена изменяемая, поэтому в заказ она копируется по значению.
type Product struct {
	ID       int64
	SKU      string
	Title    string
	Price    decimal.Decimal
	IsActive bool
}
