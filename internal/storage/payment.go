package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/linemk/peckup-shop/internal/domain/models"
)

func (r *orderRepository) CreatePaymentDetail(ctx context.Context, tx *sql.Tx, orderID int64, pd *models.PaymentDetail) error {
	query := `INSERT INTO payment_details (order_id, payment_method, card_number_last4, card_holder_name,
	          card_expiry_month, card_expiry_year, upi_id, upi_name, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW()) RETURNING id`
	err := tx.QueryRowContext(ctx, query,
		orderID, pd.PaymentMethod, pd.CardNumberLast4, pd.CardHolderName,
		pd.CardExpiryMonth, pd.CardExpiryYear, pd.UPIID, pd.UPIName,
	).Scan(&pd.ID)
	if err != nil {
		return fmt.Errorf("failed to create payment detail: %w", err)
	}
	return nil
}

func (r *orderRepository) GetPaymentDetail(ctx context.Context, orderID int64) (*models.PaymentDetail, error) {
	pd := &models.PaymentDetail{}
	query := `SELECT id, payment_method, card_number_last4, card_holder_name, card_expiry_month,
	          card_expiry_year, upi_id, upi_name
	          FROM payment_details WHERE order_id = $1`
	row := r.db.QueryRowContext(ctx, query, orderID)
	if err := row.Scan(&pd.ID, &pd.PaymentMethod, &pd.CardNumberLast4, &pd.CardHolderName,
		&pd.CardExpiryMonth, &pd.CardExpiryYear, &pd.UPIID, &pd.UPIName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get payment detail: %w", err)
	}
	return pd, nil
}
