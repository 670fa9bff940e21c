package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/linemk/peckup-shop/internal/config"
	"github.com/linemk/peckup-shop/internal/domain/models"
	"github.com/linemk/peckup-shop/internal/events"
	"github.com/linemk/peckup-shop/internal/lib/metrics"
	"github.com/linemk/peckup-shop/internal/storage"
	"github.com/shopspring/decimal"
)

// совпадает с VARCHAR(128) колонки order_idempotency.idempotency_key
const maxIdempotencyKeyLen = 128

// IDGenerator выдаёт номера заказа и чека
type IDGenerator interface {
	GenerateOrderNumber() string
	GenerateReceiptNumber() string
}

// PaymentDetailsInput.PaymentMethod может дублировать способ оплаты заказа, но не противоречить ему
type PaymentDetailsInput struct {
	PaymentMethod   string
	CardNumberLast4 *string
	CardHolderName  *string
	CardExpiryMonth *string
	CardExpiryYear  *string
	UPIID           *string
	UPIName         *string
}

type CreateOrderInput struct {
	AddressID      int64
	Items          []ItemInput
	PaymentMethod  string
	PaymentDetails *PaymentDetailsInput
	IdempotencyKey string
}

type OrderService interface {
	// CreateOrder возвращает replayed = true, если заказ с тем же ключом идемпотентности уже создан.
	CreateOrder(ctx context.Context, userID int64, in CreateOrderInput) (*models.Order, bool, error)
	CancelOrder(ctx context.Context, orderID, userID int64) (*models.Order, error)
	GetOrder(ctx context.Context, orderID, userID int64) (*models.Order, error)
	ListOrders(ctx context.Context, userID int64) ([]*models.Order, error)
}

type orderService struct {
	log       *slog.Logger
	db        *sql.DB
	repos     Repositories
	pricing   *PricingEngine
	ids       IDGenerator
	publisher events.Publisher
	metrics   *metrics.OrderMetrics
	cfg       config.OrdersConfig
	now       func() time.Time
}

func NewOrderService(
	log *slog.Logger,
	db *sql.DB,
	repos Repositories,
	ids IDGenerator,
	publisher events.Publisher,
	m *metrics.OrderMetrics,
	cfg config.OrdersConfig,
) OrderService {
	if cfg.MaxIDAttempts < 1 {
		cfg.MaxIDAttempts = 1
	}
	return &orderService{
		log:       log,
		db:        db,
		repos:     repos,
		pricing:   NewPricingEngine(repos.Products),
		ids:       ids,
		publisher: publisher,
		metrics:   m,
		cfg:       cfg,
		now:       time.Now,
	}
}

func validateCreateInput(in *CreateOrderInput) error {
	if len(in.Items) == 0 {
		return ErrEmptyOrder
	}
	for _, item := range in.Items {
		if item.Quantity < 1 {
			return fmt.Errorf("product %d: %w", item.ProductID, ErrInvalidQuantity)
		}
	}
	if pd := in.PaymentDetails; pd != nil && pd.PaymentMethod != "" {
		switch in.PaymentMethod {
		case "":
			in.PaymentMethod = pd.PaymentMethod
		case pd.PaymentMethod:
		default:
			return ErrPaymentMethodMismatch
		}
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = models.PaymentMethodCOD
	}
	switch in.PaymentMethod {
	case models.PaymentMethodCOD, models.PaymentMethodCard, models.PaymentMethodUPI:
	default:
		return ErrInvalidPaymentMethod
	}
	if len(in.IdempotencyKey) > maxIdempotencyKeyLen {
		return ErrInvalidIdempotencyKey
	}
	return nil
}

// CreateOrder оформляет заказ одной транзакцией: адрес, снимок цен, номера, заказ, позиции, оплата.
// При коллизии номера заказа или чека транзакция повторяется целиком с новыми номерами.
func (s *orderService) CreateOrder(ctx context.Context, userID int64, in CreateOrderInput) (*models.Order, bool, error) {
	const op = "service.OrderService.CreateOrder"
	logger := s.log.With(
		slog.String("op", op),
		slog.Int64("userID", userID),
		slog.Int64("addressID", in.AddressID),
		slog.Int("items", len(in.Items)),
	)
	logger.Info("creating order")

	if err := validateCreateInput(&in); err != nil {
		logger.Warn("invalid order request", slog.Any("error", err))
		s.metrics.Failed.WithLabelValues(failureReason(err)).Inc()
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	if in.IdempotencyKey != "" {
		order, found, err := s.findReplay(ctx, userID, in.IdempotencyKey)
		if err != nil {
			logger.Error("failed to check idempotency key", slog.Any("error", err))
			return nil, false, fmt.Errorf("%s: %w: %w", op, ErrOrderCreationFailed, err)
		}
		if found {
			logger.Info("returning existing order for idempotency key", slog.Int64("orderID", order.ID))
			s.metrics.Replayed.Inc()
			return order, true, nil
		}
	}

	var orderID int64
	for attempt := 1; ; attempt++ {
		id, err := s.createOnce(ctx, logger, userID, in)
		if err == nil {
			orderID = id
			break
		}
		if errors.Is(err, storage.ErrDuplicateIdentifier) && attempt < s.cfg.MaxIDAttempts {
			logger.Warn("order identifier collision, retrying", slog.Int("attempt", attempt))
			s.metrics.IdentifierRetries.Inc()
			continue
		}
		if errors.Is(err, storage.ErrIdempotencyConflict) {
			// параллельный запрос с тем же ключом закоммитился первым
			order, found, ferr := s.findReplay(ctx, userID, in.IdempotencyKey)
			if ferr == nil && found {
				logger.Info("concurrent request won idempotency race", slog.Int64("orderID", order.ID))
				s.metrics.Replayed.Inc()
				return order, true, nil
			}
		}
		s.metrics.Failed.WithLabelValues(failureReason(err)).Inc()
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		logger.Error("failed to reload created order", slog.Any("error", err), slog.Int64("orderID", orderID))
		return nil, false, fmt.Errorf("%s: failed to reload order: %w", op, err)
	}

	s.metrics.Created.Inc()
	s.publish(ctx, logger, events.TypeOrderCreated, order)
	logger.Info("order created", slog.Int64("orderID", order.ID), slog.String("orderNumber", order.OrderNumber))
	return order, false, nil
}

// createOnce - одна попытка транзакции. Любая ошибка откатывает всё, что успели записать.
func (s *orderService) createOnce(ctx context.Context, logger *slog.Logger, userID int64, in CreateOrderInput) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return 0, fmt.Errorf("%w: failed to begin transaction: %w", ErrOrderCreationFailed, err)
	}

	fail := func(msg string, err error) (int64, error) {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		if isClientError(err) || errors.Is(err, storage.ErrDuplicateIdentifier) || errors.Is(err, storage.ErrIdempotencyConflict) {
			logger.Warn(msg, slog.Any("error", err))
		} else {
			logger.Error(msg, slog.Any("error", err))
		}
		return 0, fmt.Errorf("%w: %s: %w", ErrOrderCreationFailed, msg, err)
	}

	// Адрес и его владелец
	addr, err := s.repos.Addresses.GetAddressByID(ctx, tx, in.AddressID)
	if err != nil {
		if errors.Is(err, storage.ErrAddressNotFound) {
			err = ErrAddressNotFound
		}
		return fail("failed to load address", err)
	}
	if addr.UserID != userID {
		return fail("address belongs to another user", ErrAddressNotOwned)
	}

	// Снимок цен по всем строкам до первой вставки
	items, subtotal, err := s.pricing.Snapshot(ctx, tx, in.Items)
	if err != nil {
		return fail("failed to price order items", err)
	}

	addressID := addr.ID
	order := &models.Order{
		OrderNumber:     s.ids.GenerateOrderNumber(),
		ReceiptNumber:   s.ids.GenerateReceiptNumber(),
		UserID:          userID,
		AddressID:       &addressID,
		TotalAmount:     subtotal.Add(ShippingCost()),
		Status:          models.OrderStatusPending,
		PaymentMethod:   in.PaymentMethod,
		PaymentStatus:   models.PaymentStatusPending,
		ShippingAddress: addr.Snapshot(),
	}
	if err := s.repos.Orders.CreateOrder(ctx, tx, order); err != nil {
		return fail("failed to insert order", err)
	}

	for i := range items {
		items[i].OrderID = order.ID
		if err := s.repos.Orders.CreateOrderItem(ctx, tx, &items[i]); err != nil {
			return fail("failed to insert order item", err)
		}
	}

	if pd := in.PaymentDetails; pd != nil {
		detail := &models.PaymentDetail{
			PaymentMethod:   in.PaymentMethod,
			CardNumberLast4: pd.CardNumberLast4,
			CardHolderName:  pd.CardHolderName,
			CardExpiryMonth: pd.CardExpiryMonth,
			CardExpiryYear:  pd.CardExpiryYear,
			UPIID:           pd.UPIID,
			UPIName:         pd.UPIName,
		}
		if err := s.repos.Orders.CreatePaymentDetail(ctx, tx, order.ID, detail); err != nil {
			return fail("failed to insert payment details", err)
		}
	}

	if in.IdempotencyKey != "" {
		expiredBefore := s.now().Add(-s.cfg.IdempotencyWindow)
		if err := s.repos.Idempotency.SaveKey(ctx, tx, userID, in.IdempotencyKey, order.ID, expiredBefore); err != nil {
			return fail("failed to save idempotency key", err)
		}
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return 0, fmt.Errorf("%w: failed to commit transaction: %w", ErrOrderCreationFailed, err)
	}
	return order.ID, nil
}

// ShippingCost - доставка пока бесплатная
func ShippingCost() decimal.Decimal {
	return decimal.Zero
}

func (s *orderService) findReplay(ctx context.Context, userID int64, key string) (*models.Order, bool, error) {
	since := s.now().Add(-s.cfg.IdempotencyWindow)
	orderID, found, err := s.repos.Idempotency.FindOrderID(ctx, userID, key, since)
	if err != nil || !found {
		return nil, false, err
	}
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	return order, true, nil
}

// loadOrder собирает заказ целиком: позиции, оплата, адрес доставки, покупатель
func (s *orderService) loadOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	return hydrateOrder(ctx, s.repos.Orders, orderID)
}

func hydrateOrder(ctx context.Context, orders storage.OrderStorage, orderID int64) (*models.Order, error) {
	order, err := orders.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	items, err := orders.GetOrderItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	pd, err := orders.GetPaymentDetail(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order.PaymentDetails = pd
	return order, nil
}

// CancelOrder отменяет заказ одним условным UPDATE, без окна между проверкой статуса и записью
func (s *orderService) CancelOrder(ctx context.Context, orderID, userID int64) (*models.Order, error) {
	const op = "service.OrderService.CancelOrder"
	logger := s.log.With(slog.String("op", op), slog.Int64("orderID", orderID), slog.Int64("userID", userID))
	logger.Info("cancelling order")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	cancelled, err := s.repos.Orders.CancelOrder(ctx, tx, orderID, userID)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Error("failed to cancel order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to cancel order: %w", op, err)
	}

	if !cancelled {
		// ничего не обновилось: заказа нет, он чужой или статус уже не позволяет отмену
		status, err := s.repos.Orders.GetOrderStatusTx(ctx, tx, orderID, userID)
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		if err != nil {
			if errors.Is(err, storage.ErrOrderNotFound) {
				logger.Warn("order not found")
				return nil, fmt.Errorf("%s: %w", op, ErrOrderNotFound)
			}
			logger.Error("failed to read order status", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to read order status: %w", op, err)
		}
		logger.Warn("order cannot be cancelled", slog.String("status", string(status)))
		return nil, fmt.Errorf("%s: status %s: %w", op, status, ErrOrderNotCancellable)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		logger.Error("failed to reload order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to reload order: %w", op, err)
	}

	s.metrics.StatusChanges.WithLabelValues(string(models.OrderStatusCancelled)).Inc()
	s.publish(ctx, logger, events.TypeOrderCancelled, order)
	logger.Info("order cancelled")
	return order, nil
}

// GetOrder отдаёт заказ только владельцу, чужой заказ неотличим от несуществующего
func (s *orderService) GetOrder(ctx context.Context, orderID, userID int64) (*models.Order, error) {
	const op = "service.OrderService.GetOrder"
	logger := s.log.With(slog.String("op", op), slog.Int64("orderID", orderID), slog.Int64("userID", userID))

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			logger.Warn("order not found")
		} else {
			logger.Error("failed to load order", slog.Any("error", err))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if order.UserID != userID {
		logger.Warn("order belongs to another user")
		return nil, fmt.Errorf("%s: %w", op, ErrOrderNotOwned)
	}
	return order, nil
}

// ListOrders возвращает заказы пользователя с позициями, новые первыми
func (s *orderService) ListOrders(ctx context.Context, userID int64) ([]*models.Order, error) {
	const op = "service.OrderService.ListOrders"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID))

	orders, err := s.repos.Orders.GetOrdersByUserID(ctx, userID)
	if err != nil {
		logger.Error("failed to list orders", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for _, order := range orders {
		items, err := s.repos.Orders.GetOrderItems(ctx, order.ID)
		if err != nil {
			logger.Error("failed to load order items", slog.Any("error", err), slog.Int64("orderID", order.ID))
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		order.Items = items
	}
	if orders == nil {
		orders = []*models.Order{}
	}
	return orders, nil
}

func (s *orderService) publish(ctx context.Context, logger *slog.Logger, eventType string, order *models.Order) {
	publishEvent(ctx, logger, s.publisher, eventType, order)
}

// publishEvent - best effort: заказ уже закоммичен, ошибка брокера только логируется
func publishEvent(ctx context.Context, logger *slog.Logger, publisher events.Publisher, eventType string, order *models.Order) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, events.NewOrderEvent(eventType, order)); err != nil {
		logger.Warn("failed to publish order event", slog.String("type", eventType), slog.Any("error", err))
	}
}

func isClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrOwnership)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrOwnership):
		return "ownership"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, storage.ErrDuplicateIdentifier):
		return "duplicate_identifier"
	default:
		return "internal"
	}
}
