package controller

import (
	"context"
	"net/http"
	"time"

	"go-deskline/internal/pkg/conversation/persistence/repository/adapter"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AgentsController lists known agents with their last recorded connectivity.
// Live connectivity rides the presence topic; this endpoint seeds the roster.
type AgentsController struct {
	dir *adapter.PgAgentDirectory
}

func NewAgentsController(pool *pgxpool.Pool) *AgentsController {
	return &AgentsController{dir: adapter.NewPgAgentDirectory(pool)}
}

func (h *AgentsController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		agents, err := h.dir.Agents(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		out := make([]gin.H, 0, len(agents))
		for _, a := range agents {
			out = append(out, gin.H{
				"user_id":      a.UserID,
				"display_name": a.DisplayName,
				"connected":    a.Connected,
				"status":       a.Status,
				"assignable":   a.Assignable(),
			})
		}

		c.JSON(http.StatusOK, gin.H{
			"agents": out,
			"count":  len(out),
		})
	}
}
