package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/linemk/peckup-shop/internal/cache"
	"github.com/linemk/peckup-shop/internal/domain/models"
	"github.com/linemk/peckup-shop/internal/lib/metrics"
	"github.com/linemk/peckup-shop/internal/receipt"
	"github.com/linemk/peckup-shop/internal/storage"
)

// Renderer превращает заказ в PDF
type Renderer interface {
	Render(order *models.Order) ([]byte, error)
}

// Receipt - готовый файл чека
type Receipt struct {
	Filename string
	Data     []byte
}

type ReceiptService interface {
	// UserReceipt отдаёт чек только владельцу заказа
	UserReceipt(ctx context.Context, orderID, userID int64) (*Receipt, error)
	AdminReceipt(ctx context.Context, orderID int64) (*Receipt, error)
}

type receiptService struct {
	log      *slog.Logger
	orders   storage.OrderStorage
	renderer Renderer
	cache    cache.ReceiptCache
	metrics  *metrics.OrderMetrics
}

func NewReceiptService(log *slog.Logger, orders storage.OrderStorage, renderer Renderer, c cache.ReceiptCache, m *metrics.OrderMetrics) ReceiptService {
	if c == nil {
		c = cache.Nop{}
	}
	return &receiptService{
		log:      log,
		orders:   orders,
		renderer: renderer,
		cache:    c,
		metrics:  m,
	}
}

func (s *receiptService) UserReceipt(ctx context.Context, orderID, userID int64) (*Receipt, error) {
	const op = "service.ReceiptService.UserReceipt"
	logger := s.log.With(slog.String("op", op), slog.Int64("orderID", orderID), slog.Int64("userID", userID))

	order, err := hydrateOrder(ctx, s.orders, orderID)
	if err != nil {
		return nil, s.loadFailed(logger, op, err)
	}
	if order.UserID != userID {
		logger.Warn("order belongs to another user")
		return nil, fmt.Errorf("%s: %w", op, ErrOrderNotOwned)
	}
	return s.receiptFor(ctx, logger, op, order)
}

func (s *receiptService) AdminReceipt(ctx context.Context, orderID int64) (*Receipt, error) {
	const op = "service.ReceiptService.AdminReceipt"
	logger := s.log.With(slog.String("op", op), slog.Int64("orderID", orderID))

	order, err := hydrateOrder(ctx, s.orders, orderID)
	if err != nil {
		return nil, s.loadFailed(logger, op, err)
	}
	return s.receiptFor(ctx, logger, op, order)
}

func (s *receiptService) loadFailed(logger *slog.Logger, op string, err error) error {
	if errors.Is(err, ErrNotFound) {
		logger.Warn("order not found")
		return fmt.Errorf("%s: %w", op, err)
	}
	logger.Error("failed to load order", slog.Any("error", err))
	return fmt.Errorf("%s: failed to load order: %w", op, err)
}

// cacheKey меняется вместе с updated_at, поэтому правка заказа не отдаст старый PDF
func cacheKey(order *models.Order) string {
	return fmt.Sprintf("%s:%d", order.ReceiptNumber, order.UpdatedAt.UnixNano())
}

// receiptFor берёт чек из кэша или рисует заново. Ошибки кэша не мешают отдать чек.
func (s *receiptService) receiptFor(ctx context.Context, logger *slog.Logger, op string, order *models.Order) (*Receipt, error) {
	filename := receipt.Filename(order)
	key := cacheKey(order)

	data, found, err := s.cache.Get(ctx, key)
	if err != nil {
		logger.Warn("receipt cache read failed", slog.Any("error", err))
	}
	if err == nil && found {
		s.metrics.ReceiptsRendered.WithLabelValues("cache").Inc()
		return &Receipt{Filename: filename, Data: data}, nil
	}

	data, err = s.renderer.Render(order)
	if err != nil {
		logger.Error("failed to render receipt", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w: %w", op, ErrReceiptGenerationFailed, err)
	}
	s.metrics.ReceiptsRendered.WithLabelValues("render").Inc()

	if err := s.cache.Set(ctx, key, data); err != nil {
		logger.Warn("receipt cache write failed", slog.Any("error", err))
	}

	logger.Info("receipt generated", slog.String("receiptNumber", order.ReceiptNumber), slog.Int("bytes", len(data)))
	return &Receipt{Filename: filename, Data: data}, nil
}
