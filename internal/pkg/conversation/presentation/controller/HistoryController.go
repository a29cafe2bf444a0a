package controller

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"go-deskline/internal/pkg/conversation/engine"
	"go-deskline/internal/pkg/conversation/persistence/repository/adapter"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// HistoryController serves paginated transcript pages. Offset counts back
// from the newest message, mirroring how the console's backfill walks
// history.
type HistoryController struct {
	store *adapter.PgMessageStore
}

func NewHistoryController(pool *pgxpool.Pool) *HistoryController {
	return &HistoryController{store: adapter.NewPgMessageStore(pool)}
}

func (h *HistoryController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("sessionId")
		if sessionID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "sessionId is required"})
			return
		}

		// Defaults
		limit := engine.DefaultPageSize
		offset := 0

		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		if v := c.Query("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		items, total, err := h.store.Messages(ctx, sessionID, limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"messages": toMessageViews(items),
			"total":    total,
			"limit":    limit,
			"offset":   offset,
			"count":    len(items),
		})
	}
}
