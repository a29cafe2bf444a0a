package http

import (
	cacheport "go-deskline/internal/infrastructure/cache/port"
	qport "go-deskline/internal/infrastructure/queue/port"
	"go-deskline/internal/infrastructure/realtime"
	"go-deskline/internal/pkg/conversation/persistence/repository/port"
	"go-deskline/internal/pkg/conversation/presentation/controller"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RegisterRoutes registers conversation-related HTTP endpoints under the given router group
// It constructs per-endpoint controllers and binds them directly to routes.
func RegisterRoutes(g *gin.RouterGroup, pool *pgxpool.Pool, client qport.Client, cache cacheport.Cache, router *realtime.Router, attachments port.AttachmentStore) {
	sessionsCtl := controller.NewListSessionsController(pool)
	historyCtl := controller.NewHistoryController(pool)
	cannedCtl := controller.NewCannedResponsesController(pool, cache)
	agentsCtl := controller.NewAgentsController(pool)
	consoleCtl := controller.NewConsoleSocketController(pool, router, client, cache, attachments)
	visitorCtl := controller.NewVisitorSocketController(pool, router, client)

	// GET /api/v1/sessions -> console session list
	g.GET("/sessions", sessionsCtl.Handle())

	// GET /api/v1/sessions/:sessionId/messages -> paginated transcript history
	g.GET("/sessions/:sessionId/messages", historyCtl.Handle())

	// GET /api/v1/canned-responses -> shortcut dictionary
	g.GET("/canned-responses", cannedCtl.Handle())

	// GET /api/v1/agents -> agent directory with connectivity
	g.GET("/agents", agentsCtl.Handle())

	// GET /api/v1/console/ws -> staff console websocket
	g.GET("/console/ws", consoleCtl.Handle())

	// GET /api/v1/widget/ws -> end-user widget websocket
	g.GET("/widget/ws", visitorCtl.Handle())
}
