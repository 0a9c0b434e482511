package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker/v2"
)

// Test is a plain reachability probe
// GET /test
func (h *Handlers) Test(c *gin.Context) {
	c.String(http.StatusOK, "Server is reachable!")
}

// Root reports that the service runs and which model server it talks to
// GET /
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "active",
		"message":   "LocalMind Backend is running",
		"timestamp": time.Now().UTC(),
		"aiUrl":     h.aiURL,
	})
}

// Health checks the database, Redis and the model server. Only the database is
// required; the others degrade the status without failing the probe.
// GET /health
func (h *Handlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	checks := gin.H{}

	if h.dbHealth != nil {
		if err := h.dbHealth(ctx); err != nil {
			checks["database"] = err.Error()
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		} else {
			checks["database"] = "ok"
		}
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			checks["redis"] = err.Error()
			status = degrade(status)
		} else {
			checks["redis"] = "ok"
		}
	}

	if h.ai != nil {
		if err := h.ai.Ping(ctx); err != nil {
			checks["ai"] = err.Error()
			status = degrade(status)
		} else {
			checks["ai"] = "ok"
		}
	}

	body := gin.H{
		"status":    status,
		"service":   "localmind-backend",
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	}
	if b, ok := h.ai.(interface{ BreakerState() gobreaker.State }); ok {
		body["circuit"] = b.BreakerState().String()
	}
	if h.chat != nil {
		body["activeGenerations"] = h.chat.Registry().Active()
	}

	c.JSON(code, body)
}

func degrade(status string) string {
	if status == "healthy" {
		return "degraded"
	}
	return status
}
