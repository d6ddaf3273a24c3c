package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flicky/storefront-api/internal/model"
)

var ErrMalformedCart = errors.New("malformed cart data")

// CartRepository keeps the serialized cart of a client session. There is no
// server-side cart table; the session token is the only identity.
type CartRepository interface {
	Load(ctx context.Context, token string) ([]model.CartItem, error)
	Save(ctx context.Context, token string, items []model.CartItem) error
	Delete(ctx context.Context, token string) error
}

type redisCartRepo struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCartRepository(client *redis.Client, ttl time.Duration) CartRepository {
	return &redisCartRepo{client: client, ttl: ttl}
}

func CartKey(token string) string {
	return "cart:" + token
}

func (r *redisCartRepo) Load(ctx context.Context, token string) ([]model.CartItem, error) {
	raw, err := r.client.Get(ctx, CartKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return DecodeCart(raw)
}

func (r *redisCartRepo) Save(ctx context.Context, token string, items []model.CartItem) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := r.client.Set(ctx, CartKey(token), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func (r *redisCartRepo) Delete(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, CartKey(token)).Err(); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}

// DecodeCart parses a serialized cart, rejecting payloads that are not a JSON list of
// items with positive quantities.
func DecodeCart(raw []byte) ([]model.CartItem, error) {
	var items []model.CartItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCart, err)
	}
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity %d for %s", ErrMalformedCart, item.Quantity, item.ID)
		}
	}
	return items, nil
}
