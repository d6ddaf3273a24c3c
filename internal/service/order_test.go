package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flicky/storefront-api/internal/dto"
	"github.com/flicky/storefront-api/internal/model"
	"github.com/flicky/storefront-api/internal/repository"
)

var testLog = slog.New(slog.NewTextHandler(io.Discard, nil))

type mockOrderRepo struct {
	orders    map[uuid.UUID]*model.Order
	createErr error
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[uuid.UUID]*model.Order)}
}

func (m *mockOrderRepo) Create(_ context.Context, order *model.Order) error {
	if m.createErr != nil {
		return m.createErr
	}
	order.ID = uuid.New()
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	m.orders[order.ID] = order
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) List(_ context.Context, status model.OrderStatus, _, _ int) ([]model.Order, int, error) {
	var orders []model.Order
	for _, o := range m.orders {
		if status == "" || o.Status == status {
			orders = append(orders, *o)
		}
	}
	return orders, len(orders), nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to model.OrderStatus) error {
	o, ok := m.orders[id]
	if !ok || o.Status != from {
		return pgx.ErrNoRows
	}
	o.Status = to
	return nil
}

type mockInventoryRepo struct {
	orders  *mockOrderRepo
	applied []uuid.UUID
	logs    []model.InventoryUpdateLog
	stock   map[uuid.UUID]int
}

func newMockInventoryRepo(orders *mockOrderRepo) *mockInventoryRepo {
	return &mockInventoryRepo{orders: orders, stock: make(map[uuid.UUID]int)}
}

func (m *mockInventoryRepo) ApplyOrder(_ context.Context, orderID uuid.UUID, _ *uuid.UUID) (bool, error) {
	o, ok := m.orders.orders[orderID]
	if !ok {
		return false, pgx.ErrNoRows
	}
	if o.InventoryUpdated {
		return false, nil
	}
	o.InventoryUpdated = true
	m.applied = append(m.applied, orderID)
	return true, nil
}

func (m *mockInventoryRepo) Adjust(_ context.Context, entry *model.InventoryUpdateLog) (int, error) {
	qty, ok := m.stock[entry.ProductID]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	if qty+entry.Delta < 0 {
		return 0, repository.ErrInsufficientStock
	}
	m.stock[entry.ProductID] = qty + entry.Delta
	m.logs = append(m.logs, *entry)
	return qty + entry.Delta, nil
}

func (m *mockInventoryRepo) ListLogs(_ context.Context, productID uuid.UUID, limit int) ([]model.InventoryUpdateLog, error) {
	var out []model.InventoryUpdateLog
	for i := len(m.logs) - 1; i >= 0 && len(out) < limit; i-- {
		if m.logs[i].ProductID == productID {
			out = append(out, m.logs[i])
		}
	}
	return out, nil
}

type mockPublisher struct {
	messages []amqp.Publishing
	keys     []string
}

func (m *mockPublisher) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	m.keys = append(m.keys, key)
	m.messages = append(m.messages, msg)
	return nil
}

type orderFixture struct {
	svc       *OrderService
	orders    *mockOrderRepo
	carts     *mockCartRepo
	inventory *mockInventoryRepo
}

func newOrderFixture(publisher Publisher) *orderFixture {
	orders := newMockOrderRepo()
	carts := newMockCartRepo()
	inv := newMockInventoryRepo(orders)
	cartSvc := NewCartService(carts, newMockProductRepo())
	invSvc := NewInventoryService(inv, nil, testLog)
	return &orderFixture{
		svc:       NewOrderService(orders, cartSvc, invSvc, publisher, testLog),
		orders:    orders,
		carts:     carts,
		inventory: inv,
	}
}

var validCustomer = dto.CheckoutRequest{Name: "Ann", Email: "ann@example.com", Address: "1 Main St"}

func TestOrderService_Checkout(t *testing.T) {
	f := newOrderFixture(nil)
	productID, variantID := uuid.New(), uuid.New()
	f.carts.carts["tok"] = []model.CartItem{
		{ID: productID, ProductID: productID, Name: "Mug", Price: decimal.RequireFromString("10.10"), Quantity: 3},
		{ID: variantID, ProductID: productID, Name: "Mug - Large", Price: decimal.RequireFromString("0.10"), Quantity: 2},
	}

	order, err := f.svc.Checkout(context.Background(), "tok", dto.CheckoutRequest{Name: " Ann ", Email: "ann@example.com", Address: "1 Main St"})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("30.50").Equal(order.Total))
	assert.Equal(t, model.OrderStatusPending, order.Status)
	assert.Equal(t, "Ann", order.Customer.Name)
	assert.Regexp(t, regexp.MustCompile(`^ORD-[A-Z0-9]{4}-[A-Z0-9]{4}$`), order.Reference)
	require.Len(t, order.Items, 2)
	assert.Nil(t, order.Items[0].VariantID)
	require.NotNil(t, order.Items[1].VariantID)
	assert.Equal(t, variantID, *order.Items[1].VariantID)

	assert.NotContains(t, f.carts.carts, "tok")
	assert.Len(t, f.orders.orders, 1)
}

func TestOrderService_Checkout_EmptyCart(t *testing.T) {
	f := newOrderFixture(nil)

	_, err := f.svc.Checkout(context.Background(), "tok", validCustomer)
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Empty(t, f.orders.orders)
}

func TestOrderService_Checkout_MissingCustomerInfo(t *testing.T) {
	f := newOrderFixture(nil)
	id := uuid.New()
	f.carts.carts["tok"] = []model.CartItem{{ID: id, ProductID: id, Name: "Mug", Price: decimal.NewFromInt(5), Quantity: 1}}

	_, err := f.svc.Checkout(context.Background(), "tok", dto.CheckoutRequest{Name: "Ann", Email: "   ", Address: "1 Main St"})
	assert.ErrorIs(t, err, ErrMissingCustomerInfo)
	assert.Empty(t, f.orders.orders)
	assert.Contains(t, f.carts.carts, "tok")
}

func TestOrderService_Checkout_PersistenceFailure(t *testing.T) {
	f := newOrderFixture(nil)
	f.orders.createErr = errors.New("connection reset")
	id := uuid.New()
	f.carts.carts["tok"] = []model.CartItem{{ID: id, ProductID: id, Name: "Mug", Price: decimal.NewFromInt(5), Quantity: 1}}

	_, err := f.svc.Checkout(context.Background(), "tok", validCustomer)
	assert.ErrorIs(t, err, ErrCheckoutFailed)
	assert.Contains(t, f.carts.carts, "tok")
}

func TestOrderService_Checkout_CorruptCart(t *testing.T) {
	f := newOrderFixture(nil)
	f.carts.corrupt["tok"] = true

	_, err := f.svc.Checkout(context.Background(), "tok", validCustomer)
	assert.ErrorIs(t, err, ErrInvalidCartData)
}

func TestOrderService_Get_NotFound(t *testing.T) {
	f := newOrderFixture(nil)
	_, err := f.svc.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrderService_UpdateStatus_AppliesInventoryInline(t *testing.T) {
	f := newOrderFixture(nil)
	order := &model.Order{Status: model.OrderStatusPending}
	require.NoError(t, f.orders.Create(context.Background(), order))
	adminID := uuid.New()

	updated, err := f.svc.UpdateStatus(context.Background(), order.ID, model.OrderStatusProcessing, adminID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusProcessing, updated.Status)
	assert.True(t, updated.InventoryUpdated)

	updated, err = f.svc.UpdateStatus(context.Background(), order.ID, model.OrderStatusCompleted, adminID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCompleted, updated.Status)
	assert.Len(t, f.inventory.applied, 1)
}

func TestOrderService_UpdateStatus_PublishesInventoryMessage(t *testing.T) {
	pub := &mockPublisher{}
	f := newOrderFixture(pub)
	order := &model.Order{Status: model.OrderStatusPending}
	require.NoError(t, f.orders.Create(context.Background(), order))
	adminID := uuid.New()

	_, err := f.svc.UpdateStatus(context.Background(), order.ID, model.OrderStatusProcessing, adminID)
	require.NoError(t, err)
	require.Len(t, pub.messages, 1)
	assert.Equal(t, InventoryQueue, pub.keys[0])
	assert.Empty(t, f.inventory.applied)

	var msg model.InventoryMessage
	require.NoError(t, json.Unmarshal(pub.messages[0].Body, &msg))
	assert.Equal(t, order.ID, msg.OrderID)
	require.NotNil(t, msg.AdminID)
	assert.Equal(t, adminID, *msg.AdminID)
}

func TestOrderService_UpdateStatus_InvalidTransition(t *testing.T) {
	f := newOrderFixture(nil)
	order := &model.Order{Status: model.OrderStatusCancelled}
	require.NoError(t, f.orders.Create(context.Background(), order))

	_, err := f.svc.UpdateStatus(context.Background(), order.ID, model.OrderStatusProcessing, uuid.New())
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
	assert.Empty(t, f.inventory.applied)

	_, err = f.svc.UpdateStatus(context.Background(), uuid.New(), model.OrderStatusProcessing, uuid.New())
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrderService_List(t *testing.T) {
	f := newOrderFixture(nil)
	require.NoError(t, f.orders.Create(context.Background(), &model.Order{Status: model.OrderStatusPending}))
	require.NoError(t, f.orders.Create(context.Background(), &model.Order{Status: model.OrderStatusCompleted}))

	resp, err := f.svc.List(context.Background(), dto.ListOrdersRequest{Page: 1, Limit: 20, Status: model.OrderStatusPending})
	require.NoError(t, err)
	require.Len(t, resp.Orders, 1)
	assert.Equal(t, model.OrderStatusPending, resp.Orders[0].Status)
	assert.Equal(t, 1, resp.Pagination.Total)
}

func TestNewOrderReference(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		ref, err := NewOrderReference()
		require.NoError(t, err)
		assert.Regexp(t, `^ORD-[2-9A-HJKMNP-Z]{4}-[2-9A-HJKMNP-Z]{4}$`, ref)
		seen[ref] = true
	}
	assert.Greater(t, len(seen), 45)
}

func TestNewReference_SkipsBiasedBytes(t *testing.T) {
	src := bytes.NewReader([]byte{255, 248, 0, 1, 2, 3, 252, 4, 5, 6, 7, 0, 0, 0, 0, 0})
	ref, err := newReference(src)
	require.NoError(t, err)
	assert.Equal(t, "ORD-2345-6789", ref)

	_, err = newReference(bytes.NewReader(nil))
	assert.Error(t, err)
}
