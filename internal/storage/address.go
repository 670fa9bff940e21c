package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/linemk/peckup-shop/internal/domain/models"
)

// AddressStorage - чтение адресов доставки
type AddressStorage interface {
	// GetAddressByID возвращает адрес вместе с владельцем, проверку владельца делает сервис.
	GetAddressByID(ctx context.Context, tx *sql.Tx, id int64) (*models.Address, error)
}

type addressRepository struct {
	db *sql.DB
}

func NewAddressRepository(db *sql.DB) AddressStorage {
	return &addressRepository{db: db}
}

func (r *addressRepository) GetAddressByID(ctx context.Context, tx *sql.Tx, id int64) (*models.Address, error) {
	a := &models.Address{}
	query := `SELECT id, user_id, full_name, phone, address_line1, address_line2, city, state, pincode, is_default
	          FROM addresses WHERE id = $1`
	row := tx.QueryRowContext(ctx, query, id)
	if err := row.Scan(&a.ID, &a.UserID, &a.FullName, &a.Phone, &a.AddressLine1, &a.AddressLine2,
		&a.City, &a.State, &a.Pincode, &a.IsDefault); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAddressNotFound
		}
		return nil, err
	}
	return a, nil
}
