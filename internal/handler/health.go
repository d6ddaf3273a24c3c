package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

type HealthHandler struct {
	dbPool      *pgxpool.Pool
	redisClient *redis.Client
	amqpConn    *amqp.Connection
}

// NewHealthHandler builds the probe handler. amqpConn is nil when fulfilment runs inline.
func NewHealthHandler(dbPool *pgxpool.Pool, redisClient *redis.Client, amqpConn *amqp.Connection) *HealthHandler {
	return &HealthHandler{dbPool: dbPool, redisClient: redisClient, amqpConn: amqpConn}
}

func (h *HealthHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) Readyz(c *gin.Context) {
	ctx := c.Request.Context()
	resp := gin.H{"status": "ok"}
	ready := true

	check := func(name string, probe func(context.Context) error) {
		if err := probe(ctx); err != nil {
			resp[name] = "unavailable"
			ready = false
			return
		}
		resp[name] = "connected"
	}

	check("postgres", h.dbPool.Ping)
	check("redis", func(ctx context.Context) error { return h.redisClient.Ping(ctx).Err() })
	if h.amqpConn == nil {
		resp["rabbitmq"] = "disabled"
	} else if h.amqpConn.IsClosed() {
		resp["rabbitmq"] = "unavailable"
		ready = false
	} else {
		resp["rabbitmq"] = "connected"
	}

	if !ready {
		resp["status"] = "error"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}
