package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/linemk/peckup-shop/internal/domain/models"
)

// ProductStorage - чтение каталога. Заказ только читает товары, цены не меняет.
type ProductStorage interface {
	// GetProductByID получает товар по id в рамках транзакции заказа.
	GetProductByID(ctx context.Context, tx *sql.Tx, id int64) (*models.Product, error)
}

type productRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) ProductStorage {
	return &productRepository{db: db}
}

func (r *productRepository) GetProductByID(ctx context.Context, tx *sql.Tx, id int64) (*models.Product, error) {
	product := &models.Product{}
	query := "SELECT id, sku, title, price, is_active FROM products WHERE id = $1"
	row := tx.QueryRowContext(ctx, query, id)
	if err := row.Scan(&product.ID, &product.SKU, &product.Title, &product.Price, &product.IsActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return product, nil
}
