package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/linemk/peckup-shop/internal/config"
	"github.com/linemk/peckup-shop/internal/domain/models"
	"github.com/linemk/peckup-shop/internal/service"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdminService(f *fixture) service.AdminService {
	return service.NewAdminService(f.logger, f.orders, f.publisher, f.metrics)
}

func TestAdminUpdateStatus_AnyValueAllowed(t *testing.T) {
	f := newFixture(t, config.OrdersConfig{})
	svc := newAdminService(f)
	ctx := context.Background()
	existing := f.orders.insert(customerID, models.OrderStatusDelivered)

	// админ может вернуть заказ из терминального статуса
	order, err := svc.UpdateStatus(ctx, existing.ID, models.OrderStatusPending)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, order.Status)

	order, err = svc.UpdateStatus(ctx, existing.ID, models.OrderStatusShipped)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusShipped, order.Status)

	assert.Equal(t, []string{"order.status_changed", "order.status_changed"}, f.publisher.types())
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.StatusChanges.WithLabelValues("shipped")))
}

func TestAdminUpdateStatus_InvalidValue(t *testing.T) {
	f := newFixture(t, config.OrdersConfig{})
	svc := newAdminService(f)
	existing := f.orders.insert(customerID, models.OrderStatusPending)

	_, err := svc.UpdateStatus(context.Background(), existing.ID, models.OrderStatus("lost"))
	assert.True(t, errors.Is(err, service.ErrInvalidStatus))
	assert.True(t, errors.Is(err, service.ErrValidation))
	assert.Equal(t, models.OrderStatusPending, f.orders.orders[existing.ID].Status)
}

func TestAdminUpdateStatus_NotFound(t *testing.T) {
	f := newFixture(t, config.OrdersConfig{})
	svc := newAdminService(f)

	_, err := svc.UpdateStatus(context.Background(), 999, models.OrderStatusShipped)
	assert.True(t, errors.Is(err, service.ErrNotFound))
	assert.Empty(t, f.publisher.types())
}

func TestAdminGetOrder_AnyOwner(t *testing.T) {
	f := newFixture(t, config.OrdersConfig{})
	svc := newAdminService(f)
	existing := f.orders.insert(otherUserID, models.OrderStatusConfirmed)

	order, err := svc.GetOrder(context.Background(), existing.ID)
	require.NoError(t, err)
	assert.Equal(t, otherUserID, order.UserID)
	require.NotNil(t, order.Customer)
	assert.Equal(t, "ravi@example.com", order.Customer.Email)
}

func TestAdminDeleteOrder(t *testing.T) {
	f := newFixture(t, config.OrdersConfig{})
	svc := newAdminService(f)
	ctx := context.Background()
	existing := f.orders.insert(customerID, models.OrderStatusPending,
		models.OrderItem{ProductID: productShirt, Quantity: 1})

	require.NoError(t, svc.DeleteOrder(ctx, existing.ID))
	assert.Empty(t, f.orders.orders)
	assert.Empty(t, f.orders.items)
	assert.Equal(t, []string{"order.deleted"}, f.publisher.types())

	err := svc.DeleteOrder(ctx, existing.ID)
	assert.True(t, errors.Is(err, service.ErrNotFound))
}

func TestAdminOrderStats(t *testing.T) {
	f := newFixture(t, config.OrdersConfig{})
	svc := newAdminService(f)
	service.SetAdminClock(svc, func() time.Time { return time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC) })

	shirt := func(q int) models.OrderItem {
		return models.OrderItem{ProductID: productShirt, ProductName: "Cotton T-Shirt", Quantity: q, Price: decimal.RequireFromString("29.99")}
	}
	f.orders.insert(customerID, models.OrderStatusPending, shirt(1))
	f.orders.insert(customerID, models.OrderStatusConfirmed, shirt(2))
	f.orders.insert(otherUserID, models.OrderStatusDelivered, shirt(1))
	f.orders.insert(customerID, models.OrderStatusCancelled, shirt(5))
	old := f.orders.insert(otherUserID, models.OrderStatusShipped, shirt(1))
	f.orders.orders[old.ID].CreatedAt = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	stats, err := svc.OrderStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[models.OrderStatus]int64{
		models.OrderStatusPending:   1,
		models.OrderStatusConfirmed: 1,
		models.OrderStatusShipped:   1,
		models.OrderStatusDelivered: 1,
		models.OrderStatusCancelled: 1,
	}, stats.StatusCounts)
	// confirmed 59.98 + delivered 29.99 + shipped 29.99; pending и cancelled не считаются
	assert.True(t, decimal.RequireFromString("119.96").Equal(stats.TotalRevenue), "revenue was %s", stats.TotalRevenue)
	assert.Equal(t, int64(4), stats.RecentOrders)
}
