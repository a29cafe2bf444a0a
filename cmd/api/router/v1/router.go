package v1

import (
	cacheport "go-deskline/internal/infrastructure/cache/port"
	qport "go-deskline/internal/infrastructure/queue/port"
	"go-deskline/internal/infrastructure/realtime"
	"go-deskline/internal/pkg/conversation/persistence/repository/port"
	httpHandler "go-deskline/internal/pkg/conversation/presentation/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RegisterRoutes mounts all version 1 API routes under /api/v1
func RegisterRoutes(r *gin.Engine, pool *pgxpool.Pool, client qport.Client, cache cacheport.Cache, router *realtime.Router, attachments port.AttachmentStore) {
	v1 := r.Group("/api/v1")
	// Pass the DB connection and shared infrastructure down to the HTTP layer
	httpHandler.RegisterRoutes(v1, pool, client, cache, router, attachments)
}
