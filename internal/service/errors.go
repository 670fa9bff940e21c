package service

import "errors"

// Категории ошибок. Хендлеры выбирают HTTP статус по категории через errors.Is.
var (
	ErrValidation              = errors.New("validation failed")
	ErrNotFound                = errors.New("not found")
	ErrOwnership               = errors.New("resource not owned by caller")
	ErrInvalidTransition       = errors.New("invalid status transition")
	ErrOrderCreationFailed     = errors.New("failed to create order")
	ErrReceiptGenerationFailed = errors.New("failed to generate receipt")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrConflict                = errors.New("conflict")
)

var (
	ErrEmptyOrder            = categoryError(ErrValidation, "order items are required")
	ErrInvalidQuantity       = categoryError(ErrValidation, "quantity must be at least 1")
	ErrInvalidPaymentMethod  = categoryError(ErrValidation, "unsupported payment method")
	ErrPaymentMethodMismatch = categoryError(ErrValidation, "payment_details.payment_method does not match payment_method")
	ErrInvalidIdempotencyKey = categoryError(ErrValidation, "idempotency key is too long")
	ErrProductUnavailable    = categoryError(ErrValidation, "product is not available")
	ErrInvalidStatus         = categoryError(ErrValidation, "invalid order status")
	ErrProductNotFound       = categoryError(ErrNotFound, "product not found")
	ErrAddressNotFound       = categoryError(ErrNotFound, "address not found")
	ErrOrderNotFound         = categoryError(ErrNotFound, "order not found")
	ErrAddressNotOwned       = categoryError(ErrOwnership, "address not found")
	ErrOrderNotOwned         = categoryError(ErrOwnership, "order not found")
	ErrOrderNotCancellable   = categoryError(ErrInvalidTransition, "cannot cancel this order")
	ErrInvalidCredentials    = categoryError(ErrUnauthorized, "invalid credentials")
	ErrEmailTaken            = categoryError(ErrConflict, "email already registered")
)

// categorized - конкретная ошибка, которая через Unwrap относится к своей категории.
// Текст наружу отдаётся как есть, поэтому AddressNotOwned выглядит так же, как AddressNotFound.
type categorized struct {
	msg      string
	category error
}

func categoryError(category error, msg string) error {
	return &categorized{msg: msg, category: category}
}

func (e *categorized) Error() string { return e.msg }
func (e *categorized) Unwrap() error { return e.category }

// PublicMessage возвращает текст конкретной ошибки без префиксов op, либо fallback
func PublicMessage(err error, fallback string) string {
	var c *categorized
	if errors.As(err, &c) {
		return c.msg
	}
	return fallback
}
