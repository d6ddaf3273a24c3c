package service

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"

	"github.com/flicky/storefront-api/internal/dto"
	"github.com/flicky/storefront-api/internal/model"
	"github.com/flicky/storefront-api/internal/repository"
)

var (
	ErrEmptyCart               = errors.New("cart is empty")
	ErrMissingCustomerInfo     = errors.New("missing customer information")
	ErrCheckoutFailed          = errors.New("failed to process checkout")
	ErrOrderNotFound           = errors.New("order not found")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
)

// InventoryQueue receives one message per order whose stock must be consumed.
const InventoryQueue = "inventory"

// Publisher is the subset of *amqp.Channel used to hand fulfilment to the worker.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type OrderService struct {
	orderRepo repository.OrderRepository
	cart      *CartService
	inventory *InventoryService
	publisher Publisher
	log       *slog.Logger
	reference func() (string, error)
}

// NewOrderService wires checkout and order administration. publisher may be nil, in which
// case fulfilment is applied inline.
func NewOrderService(orderRepo repository.OrderRepository, cart *CartService, inventory *InventoryService, publisher Publisher, log *slog.Logger) *OrderService {
	return &OrderService{
		orderRepo: orderRepo,
		cart:      cart,
		inventory: inventory,
		publisher: publisher,
		log:       log,
		reference: NewOrderReference,
	}
}

// Checkout turns the cart bound to cartToken into a pending order and clears the cart.
func (s *OrderService) Checkout(ctx context.Context, cartToken string, req dto.CheckoutRequest) (*model.Order, error) {
	items, err := s.cart.Items(ctx, cartToken)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	customer := model.CustomerInfo{
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.TrimSpace(req.Email),
		Address: strings.TrimSpace(req.Address),
	}
	if customer.Name == "" || customer.Email == "" || customer.Address == "" {
		return nil, ErrMissingCustomerInfo
	}

	order := &model.Order{Status: model.OrderStatusPending, Customer: customer}
	total := decimal.Zero
	for _, ci := range items {
		item := model.OrderItem{Name: ci.Name, Price: ci.Price, Quantity: ci.Quantity}
		productID := ci.ProductID
		item.ProductID = &productID
		if ci.ID != ci.ProductID {
			variantID := ci.ID
			item.VariantID = &variantID
		}
		total = total.Add(item.LineTotal())
		order.Items = append(order.Items, item)
	}
	order.Total = total.Round(2)

	order.Reference, err = s.reference()
	if err != nil {
		s.log.Error("generate order reference", "error", err)
		return nil, ErrCheckoutFailed
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		s.log.Error("create order", "error", err)
		return nil, ErrCheckoutFailed
	}

	if err := s.cart.Clear(ctx, cartToken); err != nil {
		s.log.Warn("clear cart after checkout", "order_id", order.ID, "error", err)
	}
	s.log.Info("order placed", "order_id", order.ID, "reference", order.Reference, "total", order.Total.String())
	return order, nil
}

func (s *OrderService) List(ctx context.Context, req dto.ListOrdersRequest) (*dto.OrderListResponse, error) {
	orders, total, err := s.orderRepo.List(ctx, req.Status, req.Limit, (req.Page-1)*req.Limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	resp := &dto.OrderListResponse{
		Orders:     make([]dto.OrderResponse, 0, len(orders)),
		Pagination: dto.NewPagination(req.Page, req.Limit, total),
	}
	for i := range orders {
		resp.Orders = append(resp.Orders, ToOrderResponse(&orders[i]))
	}
	return resp, nil
}

func (s *OrderService) Get(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// UpdateStatus moves the order along its lifecycle. Entering a fulfilling status for the
// first time consumes stock.
func (s *OrderService) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus, adminID uuid.UUID) (*model.Order, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, order.Status, status)
	}

	if err := s.orderRepo.UpdateStatus(ctx, id, order.Status, status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// changed concurrently
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, order.Status, status)
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}
	s.log.Info("order status changed", "order_id", id, "from", order.Status, "to", status, "admin_id", adminID)
	order.Status = status

	if status.Fulfils() && !order.InventoryUpdated {
		if err := s.fulfil(ctx, order.ID, adminID); err != nil {
			s.log.Error("fulfil order", "order_id", id, "error", err)
		}
	}
	return s.Get(ctx, id)
}

func (s *OrderService) fulfil(ctx context.Context, orderID, adminID uuid.UUID) error {
	if s.publisher == nil {
		_, err := s.inventory.ApplyOrder(ctx, orderID, &adminID)
		return err
	}
	body, err := json.Marshal(model.InventoryMessage{OrderID: orderID, AdminID: &adminID})
	if err != nil {
		return fmt.Errorf("encode inventory message: %w", err)
	}
	return s.publisher.PublishWithContext(ctx, "", InventoryQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
	})
}

// referenceAlphabet omits characters that are easy to misread (0/O, 1/I/L).
const referenceAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// NewOrderReference returns a human-readable order reference such as ORD-7KQ2-M9XD.
func NewOrderReference() (string, error) {
	return newReference(rand.Reader)
}

// newReference draws characters uniformly from referenceAlphabet, discarding bytes past the
// largest multiple of the alphabet size.
func newReference(r io.Reader) (string, error) {
	limit := 256 - 256%len(referenceAlphabet)
	out := make([]byte, 0, 13)
	out = append(out, "ORD-"...)
	buf := make([]byte, 16)
	for n := 0; n < 8; {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			if n == 4 {
				out = append(out, '-')
			}
			out = append(out, referenceAlphabet[int(b)%len(referenceAlphabet)])
			if n++; n == 8 {
				break
			}
		}
	}
	return string(out), nil
}

func ToOrderResponse(o *model.Order) dto.OrderResponse {
	items := make([]dto.OrderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, dto.OrderItemResponse{
			ID:        it.ID,
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Name:      it.Name,
			Price:     it.Price,
			Quantity:  it.Quantity,
		})
	}
	return dto.OrderResponse{
		ID:        o.ID,
		Reference: o.Reference,
		Status:    o.Status,
		Total:     o.Total,
		Customer: dto.CustomerInfoResponse{
			Name:    o.Customer.Name,
			Email:   o.Customer.Email,
			Address: o.Customer.Address,
		},
		InventoryUpdated: o.InventoryUpdated,
		Items:            items,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
}
