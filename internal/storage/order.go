package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/linemk/peckup-shop/internal/domain/models"
	"github.com/shopspring/decimal"
)

// OrderStorage описывает методы для работы с заказами, их позициями и данными оплаты.
type OrderStorage interface {
	// CreateOrder вставляет строку заказа в транзакции и заполняет ID, CreatedAt, UpdatedAt.
	CreateOrder(ctx context.Context, tx *sql.Tx, order *models.Order) error
	// CreateOrderItem вставляет позицию заказа с уже зафиксированной ценой.
	CreateOrderItem(ctx context.Context, tx *sql.Tx, item *models.OrderItem) error
	// CreatePaymentDetail сохраняет данные оплаты (не больше одной записи на заказ).
	CreatePaymentDetail(ctx context.Context, tx *sql.Tx, orderID int64, pd *models.PaymentDetail) error

	// GetOrderByID возвращает заказ с данными покупателя, без позиций.
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	// GetOrderItems возвращает позиции в порядке вставки.
	GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	// GetPaymentDetail возвращает nil, если данных оплаты нет.
	GetPaymentDetail(ctx context.Context, orderID int64) (*models.PaymentDetail, error)
	// GetOrdersByUserID возвращает заказы пользователя, новые первыми.
	GetOrdersByUserID(ctx context.Context, userID int64) ([]*models.Order, error)

	// CancelOrder атомарно переводит заказ в cancelled, если текущий статус это допускает.
	// false означает, что ни одна строка не обновилась.
	CancelOrder(ctx context.Context, tx *sql.Tx, id, userID int64) (bool, error)
	// GetOrderStatusTx читает текущий статус заказа пользователя в транзакции.
	GetOrderStatusTx(ctx context.Context, tx *sql.Tx, id, userID int64) (models.OrderStatus, error)
	// UpdateOrderStatus выставляет любой статус без проверки перехода (админка).
	UpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus) error
	// DeleteOrder удаляет заказ, позиции и оплата удаляются каскадом.
	DeleteOrder(ctx context.Context, id int64) error
	// GetOrderStats считает заказы по статусам, выручку по RevenueStatuses и заказы, созданные начиная с recentSince.
	GetOrderStats(ctx context.Context, recentSince time.Time) (*models.OrderStats, error)
}

type orderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) OrderStorage {
	return &orderRepository{db: db}
}

func (r *orderRepository) CreateOrder(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	query := `INSERT INTO orders (order_number, receipt_number, user_id, address_id, total_amount, status,
	          payment_method, payment_status, ship_full_name, ship_phone, ship_address_line1, ship_address_line2,
	          ship_city, ship_state, ship_pincode, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW(), NOW())
	          RETURNING id, created_at, updated_at`
	ship := order.ShippingAddress
	err := tx.QueryRowContext(ctx, query,
		order.OrderNumber, order.ReceiptNumber, order.UserID, order.AddressID, order.TotalAmount, order.Status,
		order.PaymentMethod, order.PaymentStatus, ship.FullName, ship.Phone, ship.AddressLine1, ship.AddressLine2,
		ship.City, ship.State, ship.Pincode,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok &&
			(constraint == constraintOrderNumber || constraint == constraintReceiptNumber) {
			return ErrDuplicateIdentifier
		}
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (r *orderRepository) CreateOrderItem(ctx context.Context, tx *sql.Tx, item *models.OrderItem) error {
	query := `INSERT INTO order_items (order_id, product_id, product_name, product_sku, quantity, price, size, color)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	err := tx.QueryRowContext(ctx, query,
		item.OrderID, item.ProductID, item.ProductName, item.ProductSKU, item.Quantity, item.Price, item.Size, item.Color,
	).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("failed to create order item: %w", err)
	}
	return nil
}

const orderColumns = `o.id, o.order_number, o.receipt_number, o.user_id, o.address_id, o.total_amount, o.status,
		o.payment_method, o.payment_status, o.ship_full_name, o.ship_phone, o.ship_address_line1, o.ship_address_line2,
		o.ship_city, o.ship_state, o.ship_pincode, o.created_at, o.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner, extra ...any) (*models.Order, error) {
	o := &models.Order{}
	ship := &o.ShippingAddress
	dest := []any{
		&o.ID, &o.OrderNumber, &o.ReceiptNumber, &o.UserID, &o.AddressID, &o.TotalAmount, &o.Status,
		&o.PaymentMethod, &o.PaymentStatus, &ship.FullName, &ship.Phone, &ship.AddressLine1, &ship.AddressLine2,
		&ship.City, &ship.State, &ship.Pincode, &o.CreatedAt, &o.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *orderRepository) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	query := `SELECT ` + orderColumns + `, u.name, u.email
		FROM orders o
		JOIN users u ON u.id = o.user_id
		WHERE o.id = $1`
	customer := &models.Customer{}
	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id), &customer.Name, &customer.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	order.Customer = customer
	return order, nil
}

func (r *orderRepository) GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, product_name, product_sku, quantity, price, size, color
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var it models.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.ProductSKU,
			&it.Quantity, &it.Price, &it.Size, &it.Color); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *orderRepository) GetOrdersByUserID(ctx context.Context, userID int64) ([]*models.Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders o
		WHERE o.user_id = $1
		ORDER BY o.created_at DESC, o.id DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

// CancelOrder - проверка статуса и запись в одном UPDATE, без гонки между чтением и записью
func (r *orderRepository) CancelOrder(ctx context.Context, tx *sql.Tx, id, userID int64) (bool, error) {
	query := `UPDATE orders SET status = $1, updated_at = NOW()
	          WHERE id = $2 AND user_id = $3 AND status IN ($4, $5)`
	res, err := tx.ExecContext(ctx, query,
		models.OrderStatusCancelled, id, userID, models.OrderStatusPending, models.OrderStatusConfirmed)
	if err != nil {
		return false, fmt.Errorf("failed to cancel order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *orderRepository) GetOrderStatusTx(ctx context.Context, tx *sql.Tx, id, userID int64) (models.OrderStatus, error) {
	var status models.OrderStatus
	row := tx.QueryRowContext(ctx, "SELECT status FROM orders WHERE id = $1 AND user_id = $2", id, userID)
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrOrderNotFound
		}
		return "", err
	}
	return status, nil
}

func (r *orderRepository) UpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus) error {
	res, err := r.db.ExecContext(ctx, "UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2", status, id)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *orderRepository) DeleteOrder(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM orders WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *orderRepository) GetOrderStats(ctx context.Context, recentSince time.Time) (*models.OrderStats, error) {
	stats := &models.OrderStats{StatusCounts: make(map[models.OrderStatus]int64)}

	rows, err := r.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM orders GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count orders by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status models.OrderStatus
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		stats.StatusCounts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	revenueStatuses := make([]string, 0, len(models.RevenueStatuses))
	for _, st := range models.RevenueStatuses {
		revenueStatuses = append(revenueStatuses, string(st))
	}
	var revenue decimal.Decimal
	err = r.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(total_amount), 0) FROM orders WHERE status = ANY($1)",
		pq.Array(revenueStatuses),
	).Scan(&revenue)
	if err != nil {
		return nil, fmt.Errorf("failed to sum revenue: %w", err)
	}
	stats.TotalRevenue = revenue

	err = r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders WHERE created_at >= $1", recentSince).
		Scan(&stats.RecentOrders)
	if err != nil {
		return nil, fmt.Errorf("failed to count recent orders: %w", err)
	}
	return stats, nil
}
