package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Valid проверяет, что статус входит в набор из пяти допустимых значений
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// Cancellable - отменить можно только заказ, который ещё не отправлен
func (s OrderStatus) Cancellable() bool {
	return s == OrderStatusPending || s == OrderStatusConfirmed
}

// RevenueStatuses - статусы, заказы в которых учитываются в выручке
var RevenueStatuses = []OrderStatus{OrderStatusConfirmed, OrderStatusShipped, OrderStatusDelivered}

// OrderStats - сводка по заказам для админки
type OrderStats struct {
	StatusCounts map[OrderStatus]int64 `json:"status_counts"`
	TotalRevenue decimal.Decimal       `json:"total_revenue"`
	RecentOrders int64                 `json:"recent_orders"`
}

const (
	PaymentMethodCOD  = "cod"
	PaymentMethodCard = "card"
	PaymentMethodUPI  = "upi"

	PaymentStatusPending = "pending"
)

// Order - заказ пользователя с зафиксированными ценами
type Order struct {
	ID              int64           `json:"id"`
	OrderNumber     string          `json:"order_number"`
	ReceiptNumber   string          `json:"receipt_number"`
	UserID          int64           `json:"user_id"`
	AddressID       *int64          `json:"address_id"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Status          OrderStatus     `json:"status"`
	PaymentMethod   string          `json:"payment_method"`
	PaymentStatus   string          `json:"payment_status"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	Items           []OrderItem     `json:"order_items"`
	PaymentDetails  *PaymentDetail  `json:"payment_details"`
	Customer        *Customer       `json:"-"` // заполняется при загрузке агрегата целиком
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ItemsSubtotal пересчитывает сумму по позициям, не используя сохранённый TotalAmount
func (o *Order) ItemsSubtotal() decimal.Decimal {
	subtotal := decimal.Zero
	for _, item := range o.Items {
		subtotal = subtotal.Add(item.LineTotal())
	}
	return subtotal
}

// OrderItem - позиция заказа, цена скопирована из каталога в момент оформления
type OrderItem struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"-"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	ProductSKU  string          `json:"sku"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Size        *string         `json:"size"`
	Color       *string         `json:"color"`
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// PaymentDetail - данные оплаты, от карты хранятся только последние 4 цифры
type PaymentDetail struct {
	ID              int64   `json:"id"`
	PaymentMethod   string  `json:"payment_method"`
	CardNumberLast4 *string `json:"card_number_last4"`
	CardHolderName  *string `json:"card_holder_name"`
	CardExpiryMonth *string `json:"card_expiry_month"`
	CardExpiryYear  *string `json:"card_expiry_year"`
	UPIID           *string `json:"upi_id"`
	UPIName         *string `json:"upi_name"`
}
