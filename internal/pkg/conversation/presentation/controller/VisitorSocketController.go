package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	qport "go-deskline/internal/infrastructure/queue/port"
	"go-deskline/internal/infrastructure/realtime"
	"go-deskline/internal/pkg/conversation/application/task"
	"go-deskline/internal/pkg/conversation/domain"
	"go-deskline/internal/pkg/conversation/engine"
	"go-deskline/internal/pkg/conversation/event"
	"go-deskline/internal/pkg/conversation/persistence/repository/adapter"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
)

// VisitorSocketController handles the end-user widget websocket. Visitors
// join only the user-facing session topic, so internal notes and announce
// frames never reach them.
type VisitorSocketController struct {
	pool  *pgxpool.Pool
	queue qport.Client

	router          *realtime.Router
	inflightTimeout time.Duration
}

func NewVisitorSocketController(pool *pgxpool.Pool, router *realtime.Router, queue qport.Client) *VisitorSocketController {
	return &VisitorSocketController{
		pool:            pool,
		queue:           queue,
		router:          router,
		inflightTimeout: 5 * time.Second,
	}
}

// Handle upgrades the widget connection and processes frames until the
// visitor disconnects.
func (ctl *VisitorSocketController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Query("session_id")
		userID := c.Query("user_id")
		name := c.DefaultQuery("name", "Visitor")
		if sessionID == "" || userID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "session_id and user_id are required"})
			return
		}

		ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		conn := realtime.NewConnection(userID, name, false, ws)
		ctl.router.Attach(conn)
		ctl.router.Join(realtime.TopicSessionUser(sessionID), conn)
		defer func() {
			ctl.router.Detach(conn)
			conn.Close(websocket.CloseNormalClosure, "session closed")
		}()

		ctl.sendHistory(c, conn, sessionID)

		ws.SetReadLimit(1 << 20)
		_ = ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		})

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) ||
					errors.Is(err, websocket.ErrCloseSent) {
					return
				}
				return
			}
			_ = ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))

			ev, err := event.Normalize(data)
			if err != nil {
				replyError(conn, "bad_request", "invalid frame")
				continue
			}
			if ev.SessionID != sessionID {
				replyError(conn, "forbidden", "frame targets another session")
				continue
			}

			switch ev.Kind {
			case event.KindMessage:
				if ev.Message.Sender != domain.SenderUser {
					replyError(conn, "forbidden", "visitors send user messages only")
					continue
				}
				ctl.handleMessage(c, conn, sessionID, ev.Message)
			case event.KindTyping:
				ctl.handleTyping(sessionID, userID, name)
			default:
				replyError(conn, "unsupported_type", "unknown frame type")
			}
		}
	}
}

func (ctl *VisitorSocketController) handleMessage(c *gin.Context, conn *realtime.Connection, sessionID string, msg domain.Message) {
	t, err := task.NewDispatchTask(sessionID, msg, uuid.NewString())
	if err != nil {
		replyError(conn, "internal_error", "failed to encode message")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.inflightTimeout)
	defer cancel()

	if _, err := ctl.queue.Enqueue(ctx, t, qport.EnqueueOption{Queue: "conversation"}); err != nil {
		replyError(conn, "internal_error", "failed to dispatch message")
		return
	}
}

func (ctl *VisitorSocketController) handleTyping(sessionID, userID, name string) {
	payload, err := event.EncodeTyping(sessionID, userID, name, domain.SenderUser)
	if err != nil {
		return
	}
	ctl.router.Broadcast(realtime.TopicSession(sessionID), payload, userID)
	ctl.router.Broadcast(realtime.TopicSessionUser(sessionID), payload, userID)
}

// sendHistory replays the newest page so a reconnecting widget converges
// without waiting for live traffic. Internal notes are filtered out.
func (ctl *VisitorSocketController) sendHistory(c *gin.Context, conn *realtime.Connection, sessionID string) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.inflightTimeout)
	defer cancel()

	store := adapter.NewPgMessageStore(ctl.pool)
	items, total, err := store.Messages(ctx, sessionID, engine.DefaultPageSize, 0)
	if err != nil {
		replyError(conn, "internal_error", "failed to load history")
		return
	}

	visible := make([]domain.Message, 0, len(items))
	for _, m := range items {
		if m.Sender == domain.SenderInternal {
			continue
		}
		visible = append(visible, m)
	}

	frame := map[string]any{
		"type":     "history",
		"messages": toMessageViews(visible),
		"total":    total,
	}
	if payload, err := json.Marshal(frame); err == nil {
		_ = conn.Send(payload)
	}
}
