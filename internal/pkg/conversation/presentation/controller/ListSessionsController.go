package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go-deskline/internal/pkg/conversation/application/usecase"
	"go-deskline/internal/pkg/conversation/persistence/repository/adapter"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ListSessionsController serves the console's session list (one controller per endpoint)
type ListSessionsController struct {
	UC *usecase.ListSessionsUseCase
}

func NewListSessionsController(pool *pgxpool.Pool) *ListSessionsController {
	store := adapter.NewPgSessionStore(pool)
	return &ListSessionsController{UC: usecase.NewListSessionsUseCase(store)}
}

func (h *ListSessionsController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		summaries, err := h.UC.Execute(ctx)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, usecase.ErrPersistence) {
				status = http.StatusInternalServerError
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		out := make([]gin.H, 0, len(summaries))
		for _, s := range summaries {
			out = append(out, gin.H{
				"session_id":          s.SessionID,
				"status":              s.Status,
				"assigned_agent_id":   s.AssignedAgentID,
				"assigned_agent_name": s.AssignedAgentName,
				"needs_human":         s.NeedsHuman,
			})
		}

		c.JSON(http.StatusOK, gin.H{
			"sessions": out,
			"count":    len(out),
		})
	}
}
