package service_test

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/linemk/peckup-shop/internal/config"
	"github.com/linemk/peckup-shop/internal/domain/models"
	"github.com/linemk/peckup-shop/internal/events"
	"github.com/linemk/peckup-shop/internal/lib/metrics"
	"github.com/linemk/peckup-shop/internal/service"
	"github.com/linemk/peckup-shop/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeUserRepo struct {
	users map[string]*models.User // ключ - email
}

var _ storage.UserStorage = (*fakeUserRepo)(nil)

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*models.User)}
}

func (f *fakeUserRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, ok := f.users[email]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	if _, ok := f.users[user.Email]; ok {
		return nil, storage.ErrUserExists
	}
	user.ID = int64(len(f.users) + 1)
	f.users[user.Email] = user
	return user, nil
}

type fakeProductRepo struct {
	products map[int64]*models.Product
}

var _ storage.ProductStorage = (*fakeProductRepo)(nil)

func (f *fakeProductRepo) GetProductByID(ctx context.Context, tx *sql.Tx, id int64) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, storage.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

type fakeAddressRepo struct {
	addresses map[int64]*models.Address
}

var _ storage.AddressStorage = (*fakeAddressRepo)(nil)

func (f *fakeAddressRepo) GetAddressByID(ctx context.Context, tx *sql.Tx, id int64) (*models.Address, error) {
	a, ok := f.addresses[id]
	if !ok {
		return nil, storage.ErrAddressNotFound
	}
	cp := *a
	return &cp, nil
}

// fakeOrderRepo хранит заказы в памяти. Транзакций не видит: откат проверяется через sqlmock.
type fakeOrderRepo struct {
	mu        sync.Mutex
	nextID    int64
	nextItem  int64
	orders    map[int64]*models.Order
	items     map[int64][]models.OrderItem
	payments  map[int64]*models.PaymentDetail
	taken     map[string]bool // выданные номера заказов и чеков
	customers map[int64]models.Customer
	clock     time.Time

	failItemInsert int // номер вставки позиции, на которой вернуть ошибку; 0 - никогда
	itemInserts    int
}

var _ storage.OrderStorage = (*fakeOrderRepo)(nil)

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{
		orders:    make(map[int64]*models.Order),
		items:     make(map[int64][]models.OrderItem),
		payments:  make(map[int64]*models.PaymentDetail),
		taken:     make(map[string]bool),
		customers: make(map[int64]models.Customer),
		clock:     time.Date(2024, 3, 5, 8, 37, 9, 0, time.UTC),
	}
}

func (f *fakeOrderRepo) CreateOrder(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.taken[order.OrderNumber] || f.taken[order.ReceiptNumber] {
		return storage.ErrDuplicateIdentifier
	}
	f.nextID++
	f.clock = f.clock.Add(time.Second)
	order.ID = f.nextID
	order.CreatedAt = f.clock
	order.UpdatedAt = f.clock
	f.taken[order.OrderNumber] = true
	f.taken[order.ReceiptNumber] = true
	cp := *order
	f.orders[order.ID] = &cp
	return nil
}

func (f *fakeOrderRepo) CreateOrderItem(ctx context.Context, tx *sql.Tx, item *models.OrderItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.itemInserts++
	if f.failItemInsert != 0 && f.itemInserts == f.failItemInsert {
		return fmt.Errorf("failed to create order item: connection reset")
	}
	f.nextItem++
	item.ID = f.nextItem
	f.items[item.OrderID] = append(f.items[item.OrderID], *item)
	return nil
}

func (f *fakeOrderRepo) CreatePaymentDetail(ctx context.Context, tx *sql.Tx, orderID int64, pd *models.PaymentDetail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	pd.ID = orderID
	cp := *pd
	f.payments[orderID] = &cp
	return nil
}

func (f *fakeOrderRepo) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, storage.ErrOrderNotFound
	}
	cp := *o
	cp.Items = nil
	cp.PaymentDetails = nil
	customer := f.customers[o.UserID]
	cp.Customer = &customer
	return &cp, nil
}

func (f *fakeOrderRepo) GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.OrderItem(nil), f.items[orderID]...), nil
}

func (f *fakeOrderRepo) GetPaymentDetail(ctx context.Context, orderID int64) (*models.PaymentDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pd, ok := f.payments[orderID]
	if !ok {
		return nil, nil
	}
	cp := *pd
	return &cp, nil
}

func (f *fakeOrderRepo) GetOrdersByUserID(ctx context.Context, userID int64) ([]*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []*models.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			cp := *o
			res = append(res, &cp)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID > res[j].ID })
	return res, nil
}

func (f *fakeOrderRepo) CancelOrder(ctx context.Context, tx *sql.Tx, id, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok || o.UserID != userID || !o.Status.Cancellable() {
		return false, nil
	}
	o.Status = models.OrderStatusCancelled
	o.UpdatedAt = o.UpdatedAt.Add(time.Minute)
	return true, nil
}

func (f *fakeOrderRepo) GetOrderStatusTx(ctx context.Context, tx *sql.Tx, id, userID int64) (models.OrderStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok || o.UserID != userID {
		return "", storage.ErrOrderNotFound
	}
	return o.Status, nil
}

func (f *fakeOrderRepo) UpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return storage.ErrOrderNotFound
	}
	o.Status = status
	o.UpdatedAt = o.UpdatedAt.Add(time.Minute)
	return nil
}

func (f *fakeOrderRepo) DeleteOrder(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.orders[id]; !ok {
		return storage.ErrOrderNotFound
	}
	delete(f.orders, id)
	delete(f.items, id)
	delete(f.payments, id)
	return nil
}

func (f *fakeOrderRepo) GetOrderStats(ctx context.Context, recentSince time.Time) (*models.OrderStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &models.OrderStats{StatusCounts: make(map[models.OrderStatus]int64)}
	for _, o := range f.orders {
		stats.StatusCounts[o.Status]++
		if slices.Contains(models.RevenueStatuses, o.Status) {
			stats.TotalRevenue = stats.TotalRevenue.Add(o.TotalAmount)
		}
		if !o.CreatedAt.Before(recentSince) {
			stats.RecentOrders++
		}
	}
	return stats, nil
}

// insert кладёт готовый заказ в обход сервиса (для тестов отмены и админки)
func (f *fakeOrderRepo) insert(userID int64, status models.OrderStatus, items ...models.OrderItem) *models.Order {
	order := &models.Order{
		OrderNumber:   fmt.Sprintf("PK-20240101000000-%06X", len(f.orders)+0xA00000),
		ReceiptNumber: fmt.Sprintf("R240101%04X", len(f.orders)+0xA000),
		UserID:        userID,
		Status:        status,
		PaymentMethod: models.PaymentMethodCOD,
		PaymentStatus: models.PaymentStatusPending,
		ShippingAddress: models.ShippingAddress{
			FullName: "Asha Rao", Phone: "9999900000", AddressLine1: "12 MG Road",
			City: "Bengaluru", State: "Karnataka", Pincode: "560001",
		},
	}
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.LineTotal())
	}
	order.TotalAmount = subtotal
	if err := f.CreateOrder(context.Background(), nil, order); err != nil {
		panic(err)
	}
	for i := range items {
		items[i].OrderID = order.ID
		_ = f.CreateOrderItem(context.Background(), nil, &items[i])
	}
	return order
}

type idemEntry struct {
	orderID int64
	savedAt time.Time
}

// fakeIdempotencyRepo учитывает окно: запись старше since не находится, старше expiredBefore перезаписывается
type fakeIdempotencyRepo struct {
	mu     sync.Mutex
	keys   map[string]idemEntry
	now    func() time.Time
	onSave func(userID int64, key string) error
}

var _ storage.IdempotencyStorage = (*fakeIdempotencyRepo)(nil)

func newFakeIdempotencyRepo(now func() time.Time) *fakeIdempotencyRepo {
	return &fakeIdempotencyRepo{keys: make(map[string]idemEntry), now: now}
}

func idemKey(userID int64, key string) string { return fmt.Sprintf("%d:%s", userID, key) }

func (f *fakeIdempotencyRepo) put(userID int64, key string, orderID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys[idemKey(userID, key)] = idemEntry{orderID: orderID, savedAt: f.now()}
}

func (f *fakeIdempotencyRepo) FindOrderID(ctx context.Context, userID int64, key string, since time.Time) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.keys[idemKey(userID, key)]
	if !ok || !e.savedAt.After(since) {
		return 0, false, nil
	}
	return e.orderID, true, nil
}

func (f *fakeIdempotencyRepo) SaveKey(ctx context.Context, tx *sql.Tx, userID int64, key string, orderID int64, expiredBefore time.Time) error {
	if f.onSave != nil {
		if err := f.onSave(userID, key); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	k := idemKey(userID, key)
	if e, ok := f.keys[k]; ok {
		if e.savedAt.After(expiredBefore) {
			return storage.ErrIdempotencyConflict
		}
		delete(f.keys, k)
	}
	f.keys[k] = idemEntry{orderID: orderID, savedAt: f.now()}
	return nil
}

// fakeIDs выдаёт заранее заданные номера, затем уникальные по счётчику
type fakeIDs struct {
	mu       sync.Mutex
	orders   []string
	receipts []string
	n        int
}

func (f *fakeIDs) GenerateOrderNumber() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.orders) > 0 {
		next := f.orders[0]
		f.orders = f.orders[1:]
		return next
	}
	f.n++
	return fmt.Sprintf("PK-20240305083709-%06X", f.n)
}

func (f *fakeIDs) GenerateReceiptNumber() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.receipts) > 0 {
		next := f.receipts[0]
		f.receipts = f.receipts[1:]
		return next
	}
	f.n++
	return fmt.Sprintf("R240305%04X", f.n)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.OrderEvent
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, event events.OrderEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []string
	for _, e := range f.events {
		res = append(res, e.Type)
	}
	return res
}

func strPtr(s string) *string { return &s }

type fixture struct {
	db        *sql.DB
	mock      sqlmock.Sqlmock
	products  *fakeProductRepo
	addresses *fakeAddressRepo
	orders    *fakeOrderRepo
	idem      *fakeIdempotencyRepo
	ids       *fakeIDs
	publisher *fakePublisher
	metrics   *metrics.OrderMetrics
	logger    *slog.Logger
	svc       service.OrderService
	now       time.Time // общие часы сервиса и хранилища ключей
}

func (f *fixture) clock() time.Time { return f.now }

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

const (
	customerID   = int64(1)
	otherUserID  = int64(2)
	addressID    = int64(5)
	otherAddress = int64(6)

	productShirt  = int64(1)
	productJacket = int64(2)
	productHat    = int64(3) // снят с продажи
)

func newFixture(t *testing.T, cfg config.OrdersConfig) *fixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		db:   db,
		mock: mock,
		products: &fakeProductRepo{products: map[int64]*models.Product{
			productShirt:  {ID: productShirt, SKU: "TSH-001", Title: "Cotton T-Shirt", Price: decimal.RequireFromString("29.99"), IsActive: true},
			productJacket: {ID: productJacket, SKU: "JKT-002", Title: "Denim Jacket", Price: decimal.RequireFromString("79.99"), IsActive: true},
			productHat:    {ID: productHat, SKU: "HAT-003", Title: "Old Hat", Price: decimal.RequireFromString("15.00"), IsActive: false},
		}},
		addresses: &fakeAddressRepo{addresses: map[int64]*models.Address{
			addressID: {ID: addressID, UserID: customerID, FullName: "Asha Rao", Phone: "9999900000",
				AddressLine1: "12 MG Road", City: "Bengaluru", State: "Karnataka", Pincode: "560001"},
			otherAddress: {ID: otherAddress, UserID: otherUserID, FullName: "Ravi Kumar", Phone: "8888800000",
				AddressLine1: "4 Park Street", City: "Kolkata", State: "West Bengal", Pincode: "700016"},
		}},
		orders:    newFakeOrderRepo(),
		now:       time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC),
		ids:       &fakeIDs{},
		publisher: &fakePublisher{},
		metrics:   metrics.NewNopOrderMetrics(),
		logger:    slog.New(slog.NewTextHandler(os.Stdout, nil)),
	}
	f.idem = newFakeIdempotencyRepo(f.clock)
	f.orders.customers[customerID] = models.Customer{Name: "Asha", Email: "asha@example.com"}
	f.orders.customers[otherUserID] = models.Customer{Name: "Ravi", Email: "ravi@example.com"}

	if cfg.MaxIDAttempts == 0 {
		cfg.MaxIDAttempts = 3
	}
	if cfg.IdempotencyWindow == 0 {
		cfg.IdempotencyWindow = 24 * time.Hour
	}
	repos := service.Repositories{
		Products:    f.products,
		Addresses:   f.addresses,
		Orders:      f.orders,
		Idempotency: f.idem,
	}
	f.svc = service.NewOrderService(f.logger, db, repos, f.ids, f.publisher, f.metrics, cfg)
	service.SetOrderClock(f.svc, f.clock)
	return f
}
