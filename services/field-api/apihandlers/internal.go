package apihandlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *HttpEndpoints) closeTimedOutSessions(c *gin.Context) {
	closed, err := h.engine.Sessions.CloseTimedOut(c.Request.Context())
	if err != nil {
		respondWithError(c, "failed to close timed out sessions", err)
		return
	}

	slog.Info("timed out sessions closed", slog.Int("count", closed))
	c.JSON(http.StatusOK, gin.H{"closed": closed})
}
