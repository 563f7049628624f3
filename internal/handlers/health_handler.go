package handlers

import (
	"context"
	"net/http"

	"festival-backend/utils"

	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db    Pinger
	redis redis.Cmdable
}

func NewHealthHandler(db Pinger, redisClient redis.Cmdable) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient}
}

// Health - Report database and redis reachability
func (h *HealthHandler) Health(e *core.RequestEvent) error {
	ctx := e.Request.Context()
	checks := map[string]string{"database": "ok", "redis": "ok"}
	code := http.StatusOK

	if err := h.db.Ping(ctx); err != nil {
		checks["database"] = err.Error()
		code = http.StatusServiceUnavailable
	}
	if err := utils.RedisHealthCheck(ctx, h.redis); err != nil {
		checks["redis"] = err.Error()
		code = http.StatusServiceUnavailable
	}

	state := "healthy"
	if code != http.StatusOK {
		state = "unhealthy"
	}
	return e.JSON(code, map[string]any{"status": state, "checks": checks})
}
