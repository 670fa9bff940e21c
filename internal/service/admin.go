package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/linemk/peckup-shop/internal/domain/models"
	"github.com/linemk/peckup-shop/internal/events"
	"github.com/linemk/peckup-shop/internal/lib/metrics"
	"github.com/linemk/peckup-shop/internal/storage"
)

// AdminService - операции поддержки над любыми заказами, без проверки владельца
type AdminService interface {
	GetOrder(ctx context.Context, orderID int64) (*models.Order, error)
	// UpdateStatus выставляет любой из пяти статусов, граф переходов не проверяется
	UpdateStatus(ctx context.Context, orderID int64, status models.OrderStatus) (*models.Order, error)
	DeleteOrder(ctx context.Context, orderID int64) error
	// OrderStats - счётчики по статусам, выручка и число заказов за последние 30 дней
	OrderStats(ctx context.Context) (*models.OrderStats, error)
}

const recentOrdersWindow = 30 * 24 * time.Hour

type adminService struct {
	log       *slog.Logger
	orders    storage.OrderStorage
	publisher events.Publisher
	metrics   *metrics.OrderMetrics
	now       func() time.Time
}

func NewAdminService(log *slog.Logger, orders storage.OrderStorage, publisher events.Publisher, m *metrics.OrderMetrics) AdminService {
	return &adminService{
		log:       log,
		orders:    orders,
		publisher: publisher,
		metrics:   m,
		now:       time.Now,
	}
}

func (s *adminService) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	const op = "service.AdminService.GetOrder"
	logger := s.log.With(slog.String("op", op), slog.Int64("orderID", orderID))

	order, err := hydrateOrder(ctx, s.orders, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			logger.Warn("order not found")
		} else {
			logger.Error("failed to load order", slog.Any("error", err))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return order, nil
}

func (s *adminService) UpdateStatus(ctx context.Context, orderID int64, status models.OrderStatus) (*models.Order, error) {
	const op = "service.AdminService.UpdateStatus"
	logger := s.log.With(slog.String("op", op), slog.Int64("orderID", orderID), slog.String("status", string(status)))
	logger.Info("updating order status")

	if !status.Valid() {
		logger.Warn("invalid status")
		return nil, fmt.Errorf("%s: %q: %w", op, status, ErrInvalidStatus)
	}

	if err := s.orders.UpdateOrderStatus(ctx, orderID, status); err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			logger.Warn("order not found")
			return nil, fmt.Errorf("%s: %w", op, ErrOrderNotFound)
		}
		logger.Error("failed to update status", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to update status: %w", op, err)
	}

	order, err := hydrateOrder(ctx, s.orders, orderID)
	if err != nil {
		logger.Error("failed to reload order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to reload order: %w", op, err)
	}

	s.metrics.StatusChanges.WithLabelValues(string(status)).Inc()
	publishEvent(ctx, logger, s.publisher, events.TypeOrderStatusChanged, order)
	logger.Info("order status updated")
	return order, nil
}

// DeleteOrder удаляет заказ вместе с позициями, оплатой и ключами идемпотентности (каскад в БД)
func (s *adminService) DeleteOrder(ctx context.Context, orderID int64) error {
	const op = "service.AdminService.DeleteOrder"
	logger := s.log.With(slog.String("op", op), slog.Int64("orderID", orderID))
	logger.Info("deleting order")

	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			logger.Warn("order not found")
			return fmt.Errorf("%s: %w", op, ErrOrderNotFound)
		}
		logger.Error("failed to load order", slog.Any("error", err))
		return fmt.Errorf("%s: failed to load order: %w", op, err)
	}

	if err := s.orders.DeleteOrder(ctx, orderID); err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			logger.Warn("order already deleted")
			return fmt.Errorf("%s: %w", op, ErrOrderNotFound)
		}
		logger.Error("failed to delete order", slog.Any("error", err))
		return fmt.Errorf("%s: failed to delete order: %w", op, err)
	}

	publishEvent(ctx, logger, s.publisher, events.TypeOrderDeleted, order)
	logger.Info("order deleted")
	return nil
}

func (s *adminService) OrderStats(ctx context.Context) (*models.OrderStats, error) {
	const op = "service.AdminService.OrderStats"
	logger := s.log.With(slog.String("op", op))

	stats, err := s.orders.GetOrderStats(ctx, s.now().Add(-recentOrdersWindow))
	if err != nil {
		logger.Error("failed to collect order stats", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return stats, nil
}
