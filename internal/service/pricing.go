package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/linemk/peckup-shop/internal/domain/models"
	"github.com/linemk/peckup-shop/internal/storage"
	"github.com/shopspring/decimal"
)

// ItemInput - строка заказа, как её прислал клиент
type ItemInput struct {
	ProductID int64
	Quantity  int
	Size      *string
	Color     *string
}

// PricingEngine фиксирует цену товара в позиции заказа на момент оформления.
// Дальнейшие изменения каталога на созданный заказ не влияют.
type PricingEngine struct {
	products storage.ProductStorage
}

func NewPricingEngine(products storage.ProductStorage) *PricingEngine {
	return &PricingEngine{products: products}
}

// SnapshotLine читает товар в транзакции заказа и копирует цену, название и sku по значению
func (p *PricingEngine) SnapshotLine(ctx context.Context, tx *sql.Tx, in ItemInput) (models.OrderItem, error) {
	if in.Quantity < 1 {
		return models.OrderItem{}, fmt.Errorf("product %d: %w", in.ProductID, ErrInvalidQuantity)
	}

	product, err := p.products.GetProductByID(ctx, tx, in.ProductID)
	if err != nil {
		if errors.Is(err, storage.ErrProductNotFound) {
			return models.OrderItem{}, fmt.Errorf("product %d: %w", in.ProductID, ErrProductNotFound)
		}
		return models.OrderItem{}, fmt.Errorf("failed to load product %d: %w", in.ProductID, err)
	}
	if !product.IsActive {
		return models.OrderItem{}, fmt.Errorf("product %d: %w", in.ProductID, ErrProductUnavailable)
	}

	return models.OrderItem{
		ProductID:   product.ID,
		ProductName: product.Title,
		ProductSKU:  product.SKU,
		Quantity:    in.Quantity,
		Price:       product.Price,
		Size:        copyString(in.Size),
		Color:       copyString(in.Color),
	}, nil
}

// Snapshot обрабатывает все строки до первой ошибки и считает подытог.
// Вызывается до любых вставок, так что ошибка на строке N не оставляет частичного заказа.
func (p *PricingEngine) Snapshot(ctx context.Context, tx *sql.Tx, inputs []ItemInput) ([]models.OrderItem, decimal.Decimal, error) {
	if len(inputs) == 0 {
		return nil, decimal.Zero, ErrEmptyOrder
	}

	items := make([]models.OrderItem, 0, len(inputs))
	subtotal := decimal.Zero
	for _, in := range inputs {
		item, err := p.SnapshotLine(ctx, tx, in)
		if err != nil {
			return nil, decimal.Zero, err
		}
		subtotal = subtotal.Add(item.LineTotal())
		items = append(items, item)
	}
	return items, subtotal, nil
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
