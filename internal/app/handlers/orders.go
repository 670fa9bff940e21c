package handlers

import (
	"log/slog"
	"net/http"

	"github.com/linemk/peckup-shop/internal/domain/models"
	"github.com/linemk/peckup-shop/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/peckup-shop/internal/service"
	"github.com/shopspring/decimal"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type OrderItemRequest struct {
	ProductID int64   `json:"product_id" validate:"required,gt=0"`
	Quantity  *int    `json:"quantity" validate:"omitempty,min=1,max=1000"` // не передано - 1 штука
	Size      *string `json:"size" validate:"omitempty,max=20"`
	Color     *string `json:"color" validate:"omitempty,max=30"`
}

// PaymentDetailsRequest - от карты принимаются только последние 4 цифры
type PaymentDetailsRequest struct {
	PaymentMethod   string  `json:"payment_method" validate:"omitempty,oneof=cod card upi"`
	CardNumberLast4 *string `json:"card_number_last4" validate:"omitempty,len=4,numeric"`
	CardHolderName  *string `json:"card_holder_name" validate:"omitempty,max=100"`
	CardExpiryMonth *string `json:"card_expiry_month" validate:"omitempty,len=2,numeric"`
	CardExpiryYear  *string `json:"card_expiry_year" validate:"omitempty,len=4,numeric"`
	UPIID           *string `json:"upi_id" validate:"omitempty,max=100"`
	UPIName         *string `json:"upi_name" validate:"omitempty,max=100"`
}

type CreateOrderRequest struct {
	AddressID      int64                  `json:"address_id" validate:"required,gt=0"`
	Items          []OrderItemRequest     `json:"items" validate:"required,min=1,max=100,dive"`
	PaymentMethod  string                 `json:"payment_method" validate:"omitempty,oneof=cod card upi"`
	PaymentDetails *PaymentDetailsRequest `json:"payment_details"`
}

func (req CreateOrderRequest) toInput(idempotencyKey string) service.CreateOrderInput {
	in := service.CreateOrderInput{
		AddressID:      req.AddressID,
		Items:          make([]service.ItemInput, 0, len(req.Items)),
		PaymentMethod:  req.PaymentMethod,
		IdempotencyKey: idempotencyKey,
	}
	for _, item := range req.Items {
		quantity := 1
		if item.Quantity != nil {
			quantity = *item.Quantity
		}
		in.Items = append(in.Items, service.ItemInput{
			ProductID: item.ProductID,
			Quantity:  quantity,
			Size:      item.Size,
			Color:     item.Color,
		})
	}
	if pd := req.PaymentDetails; pd != nil {
		in.PaymentDetails = &service.PaymentDetailsInput{
			PaymentMethod:   pd.PaymentMethod,
			CardNumberLast4: pd.CardNumberLast4,
			CardHolderName:  pd.CardHolderName,
			CardExpiryMonth: pd.CardExpiryMonth,
			CardExpiryYear:  pd.CardExpiryYear,
			UPIID:           pd.UPIID,
			UPIName:         pd.UPIName,
		}
	}
	return in
}

// OrderResponse - заказ с вычисленными итогами. Customer заполняется только для админки.
type OrderResponse struct {
	*models.Order
	Subtotal     decimal.Decimal  `json:"subtotal"`
	ShippingCost decimal.Decimal  `json:"shipping_cost"`
	Customer     *models.Customer `json:"customer,omitempty"`
}

func newOrderResponse(order *models.Order, withCustomer bool) OrderResponse {
	if order.Items == nil {
		order.Items = []models.OrderItem{}
	}
	resp := OrderResponse{
		Order:        order,
		Subtotal:     order.ItemsSubtotal(),
		ShippingCost: service.ShippingCost(),
	}
	if withCustomer {
		resp.Customer = order.Customer
	}
	return resp
}

type OrderEnvelope struct {
	Message string        `json:"message,omitempty"`
	Order   OrderResponse `json:"order"`
}

type OrdersEnvelope struct {
	Orders []OrderResponse `json:"orders"`
}

// CreateOrderHandler обрабатывает POST /api/orders.
// Повтор с тем же Idempotency-Key возвращает уже созданный заказ со статусом 200.
func CreateOrderHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreateOrderHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			writeError(w, logger, http.StatusUnauthorized, "unauthorized")
			return
		}
		logger = logger.With(slog.Int64("userID", userID))

		var req CreateOrderRequest
		if err := decodeJSON(w, r, &req); err != nil {
			logger.Warn("invalid request: decoding error", slog.Any("error", err))
			writeError(w, logger, http.StatusBadRequest, "invalid request")
			return
		}
		if err := validate.Struct(req); err != nil {
			logger.Warn("invalid request: validation error", slog.Any("error", err))
			writeError(w, logger, http.StatusBadRequest, validationMessage(err))
			return
		}

		order, replayed, err := orderService.CreateOrder(r.Context(), userID, req.toInput(r.Header.Get(IdempotencyKeyHeader)))
		if err != nil {
			respondError(w, logger, err, "failed to create order")
			return
		}

		if replayed {
			writeJSON(w, logger, http.StatusOK, OrderEnvelope{Message: "Order already created", Order: newOrderResponse(order, false)})
			return
		}
		writeJSON(w, logger, http.StatusCreated, OrderEnvelope{Message: "Order created successfully", Order: newOrderResponse(order, false)})
	}
}

// ListOrdersHandler обрабатывает GET /api/orders
func ListOrdersHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ListOrdersHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			writeError(w, logger, http.StatusUnauthorized, "unauthorized")
			return
		}

		orders, err := orderService.ListOrders(r.Context(), userID)
		if err != nil {
			respondError(w, logger, err, "failed to fetch orders")
			return
		}

		resp := OrdersEnvelope{Orders: make([]OrderResponse, 0, len(orders))}
		for _, order := range orders {
			resp.Orders = append(resp.Orders, newOrderResponse(order, false))
		}
		writeJSON(w, logger, http.StatusOK, resp)
	}
}

// GetOrderHandler обрабатывает GET /api/orders/{id}
func GetOrderHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetOrderHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			writeError(w, logger, http.StatusUnauthorized, "unauthorized")
			return
		}
		orderID, err := orderIDParam(r)
		if err != nil {
			writeError(w, logger, http.StatusBadRequest, err.Error())
			return
		}

		order, err := orderService.GetOrder(r.Context(), orderID, userID)
		if err != nil {
			respondError(w, logger, err, "failed to fetch order")
			return
		}
		writeJSON(w, logger, http.StatusOK, OrderEnvelope{Order: newOrderResponse(order, false)})
	}
}

// CancelOrderHandler обрабатывает POST /api/orders/{id}/cancel
func CancelOrderHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CancelOrderHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			writeError(w, logger, http.StatusUnauthorized, "unauthorized")
			return
		}
		orderID, err := orderIDParam(r)
		if err != nil {
			writeError(w, logger, http.StatusBadRequest, err.Error())
			return
		}

		order, err := orderService.CancelOrder(r.Context(), orderID, userID)
		if err != nil {
			respondError(w, logger, err, "failed to cancel order")
			return
		}
		writeJSON(w, logger, http.StatusOK, OrderEnvelope{Message: "Order cancelled successfully", Order: newOrderResponse(order, false)})
	}
}
