package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// IdempotencyStorage хранит соответствие ключа идемпотентности клиента и созданного заказа.
type IdempotencyStorage interface {
	// FindOrderID ищет заказ по ключу, созданный не раньше since.
	FindOrderID(ctx context.Context, userID int64, key string, since time.Time) (int64, bool, error)
	// SaveKey в транзакции заказа удаляет просроченную запись с тем же ключом и сохраняет новую.
	// При гонке двух одинаковых запросов возвращает ErrIdempotencyConflict.
	SaveKey(ctx context.Context, tx *sql.Tx, userID int64, key string, orderID int64, expiredBefore time.Time) error
}

type idempotencyRepository struct {
	db *sql.DB
}

func NewIdempotencyRepository(db *sql.DB) IdempotencyStorage {
	return &idempotencyRepository{db: db}
}

func (r *idempotencyRepository) FindOrderID(ctx context.Context, userID int64, key string, since time.Time) (int64, bool, error) {
	var orderID int64
	query := `SELECT order_id FROM order_idempotency
	          WHERE user_id = $1 AND idempotency_key = $2 AND created_at > $3`
	err := r.db.QueryRowContext(ctx, query, userID, key, since).Scan(&orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to find idempotency key: %w", err)
	}
	return orderID, true, nil
}

func (r *idempotencyRepository) SaveKey(ctx context.Context, tx *sql.Tx, userID int64, key string, orderID int64, expiredBefore time.Time) error {
	_, err := tx.ExecContext(ctx,
		`DELETE FROM order_idempotency WHERE user_id = $1 AND idempotency_key = $2 AND created_at <= $3`,
		userID, key, expiredBefore)
	if err != nil {
		return fmt.Errorf("failed to purge expired idempotency key: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO order_idempotency (user_id, idempotency_key, order_id, created_at) VALUES ($1, $2, $3, NOW())`,
		userID, key, orderID)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok && constraint == constraintIdempotency {
			return ErrIdempotencyConflict
		}
		return fmt.Errorf("failed to save idempotency key: %w", err)
	}
	return nil
}
