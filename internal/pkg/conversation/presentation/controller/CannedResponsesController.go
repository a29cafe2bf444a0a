package controller

import (
	"context"
	"net/http"
	"time"

	cacheport "go-deskline/internal/infrastructure/cache/port"
	"go-deskline/internal/pkg/conversation/persistence/repository/adapter"
	"go-deskline/internal/pkg/conversation/persistence/repository/port"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CannedResponsesController serves the shortcut dictionary the console loads
// when a compose surface opens. Reads go through the cache wrapper so the
// directory query runs once per TTL window, not once per console.
type CannedResponsesController struct {
	dict port.CannedDirectory
}

func NewCannedResponsesController(pool *pgxpool.Pool, cache cacheport.Cache) *CannedResponsesController {
	inner := adapter.NewPgCannedDirectory(pool)
	return &CannedResponsesController{dict: adapter.NewCachedCannedDirectory(inner, cache, cannedCacheTTL)}
}

func (h *CannedResponsesController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		responses, err := h.dict.Responses(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		out := make([]gin.H, 0, len(responses))
		for _, r := range responses {
			out = append(out, gin.H{
				"shortcut": r.Shortcut,
				"category": r.Category,
				"content":  r.Content,
			})
		}

		c.JSON(http.StatusOK, gin.H{
			"responses": out,
			"count":     len(out),
		})
	}
}
