package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/flicky/storefront-api/internal/model"
	"github.com/flicky/storefront-api/internal/service"
)

const (
	inventoryQueueName = service.InventoryQueue
	dlxExchange        = "inventory.dlx"
	dlqQueueName       = "inventory.dlq"
	idempotencyTTL     = 24 * time.Hour
)

// OrderApplier consumes stock for an order. applied is false when it already happened.
type OrderApplier interface {
	ApplyOrder(ctx context.Context, orderID uuid.UUID, adminID *uuid.UUID) (applied bool, err error)
}

type InventoryWorker struct {
	channel     *amqp.Channel
	applier     OrderApplier
	redisClient *redis.Client
	log         *slog.Logger
}

func NewInventoryWorker(ch *amqp.Channel, applier OrderApplier, redisClient *redis.Client, log *slog.Logger) *InventoryWorker {
	return &InventoryWorker{
		channel:     ch,
		applier:     applier,
		redisClient: redisClient,
		log:         log,
	}
}

func IdempotencyKey(orderID uuid.UUID) string {
	return "inventory_applied:" + orderID.String()
}

// SetupRabbitMQ declares the inventory queue with its dead-letter exchange and queue.
func SetupRabbitMQ(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(dlxExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLX: %w", err)
	}
	if _, err := ch.QueueDeclare(dlqQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLQ: %w", err)
	}
	if err := ch.QueueBind(dlqQueueName, inventoryQueueName, dlxExchange, false, nil); err != nil {
		return fmt.Errorf("bind DLQ: %w", err)
	}
	if _, err := ch.QueueDeclare(inventoryQueueName, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    dlxExchange,
		"x-dead-letter-routing-key": inventoryQueueName,
	}); err != nil {
		return fmt.Errorf("declare inventory queue: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set QoS: %w", err)
	}
	return nil
}

// Run consumes until ctx is cancelled or the delivery channel closes.
func (w *InventoryWorker) Run(ctx context.Context) error {
	msgs, err := w.channel.Consume(inventoryQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	w.log.Info("inventory worker started")

	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("inventory delivery channel closed")
			}
			w.processMessage(ctx, msg)
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *InventoryWorker) processMessage(ctx context.Context, msg amqp.Delivery) {
	var invMsg model.InventoryMessage
	if err := json.Unmarshal(msg.Body, &invMsg); err != nil || invMsg.OrderID == uuid.Nil {
		w.log.Error("decode inventory message", "error", err)
		_ = msg.Nack(false, false)
		return
	}

	log := w.log.With("order_id", invMsg.OrderID)
	key := IdempotencyKey(invMsg.OrderID)

	if w.redisClient != nil {
		exists, err := w.redisClient.Exists(ctx, key).Result()
		if err != nil {
			log.Error("check idempotency key", "error", err)
			_ = msg.Nack(false, false) // to DLQ
			return
		}
		if exists > 0 {
			log.Info("inventory already applied, skipping")
			_ = msg.Ack(false)
			return
		}
	}

	applied, err := w.applier.ApplyOrder(ctx, invMsg.OrderID, invMsg.AdminID)
	if err != nil {
		log.Error("apply inventory failed", "error", err)
		_ = msg.Nack(false, false) // to DLQ
		return
	}

	if w.redisClient != nil {
		if err := w.redisClient.Set(ctx, key, "1", idempotencyTTL).Err(); err != nil {
			log.Error("set idempotency key", "error", err)
		}
	}

	_ = msg.Ack(false)
	log.Info("inventory message processed", "applied", applied)
}
