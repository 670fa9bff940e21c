package storage

import (
	"errors"

	"github.com/lib/pq"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrUserExists          = errors.New("user already exists")
	ErrProductNotFound     = errors.New("product not found")
	ErrAddressNotFound     = errors.New("address not found")
	ErrOrderNotFound       = errors.New("order not found")
	ErrDuplicateIdentifier = errors.New("order or receipt number already taken")
	ErrIdempotencyConflict = errors.New("idempotency key already used")
)

const (
	pqUniqueViolation = "23505"

	constraintOrderNumber   = "uq_orders_order_number"
	constraintReceiptNumber = "uq_orders_receipt_number"
	constraintIdempotency   = "pk_order_idempotency"
	constraintUserEmail     = "users_email_key"
)

// uniqueViolation возвращает имя нарушенного ограничения уникальности
func uniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}
