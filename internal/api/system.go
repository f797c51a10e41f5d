package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const healthTimeout = 2 * time.Second

// Health reports store and cache reachability.
// GET /health.
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	checks := gin.H{"store": "ok"}
	healthy := true

	if err := h.store.Health(ctx); err != nil {
		h.log.Warn().Err(err).Msg("Store health check failed")
		checks["store"] = "unavailable"
		healthy = false
	}
	if h.cache != nil {
		checks["cache"] = "ok"
		if err := h.cache.Health(ctx); err != nil {
			h.log.Warn().Err(err).Msg("Cache health check failed")
			checks["cache"] = "unavailable"
			healthy = false
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, envelope{Success: healthy, Data: checks})
}

// ServeWebsocket upgrades the request and joins the caller's notification room.
// GET /ws?token=....
func (h *Handler) ServeWebsocket(c *gin.Context) {
	user := currentUser(c)
	if err := h.hub.ServeUser(c.Writer, c.Request, user.ID); err != nil {
		// The upgrader has already written the HTTP error.
		h.log.Debug().Err(err).Str("user_id", user.ID).Msg("Websocket upgrade failed")
	}
}
