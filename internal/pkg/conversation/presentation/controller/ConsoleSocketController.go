package controller

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	cacheport "go-deskline/internal/infrastructure/cache/port"
	qport "go-deskline/internal/infrastructure/queue/port"
	"go-deskline/internal/infrastructure/realtime"
	"go-deskline/internal/pkg/conversation/domain"
	"go-deskline/internal/pkg/conversation/engine"
	"go-deskline/internal/pkg/conversation/persistence/repository/adapter"
	"go-deskline/internal/pkg/conversation/persistence/repository/port"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
)

const cannedCacheTTL = 5 * time.Minute

// ConsoleSocketController handles the staff console websocket. Each accepted
// socket gets its own conversation engine for the requested session; the
// engine's callbacks stream state frames back down the same socket.
type ConsoleSocketController struct {
	pool        *pgxpool.Pool
	router      *realtime.Router
	queue       qport.Client
	cache       cacheport.Cache
	attachments port.AttachmentStore

	inflightTimeout time.Duration
}

func NewConsoleSocketController(pool *pgxpool.Pool, router *realtime.Router, queue qport.Client, cache cacheport.Cache, attachments port.AttachmentStore) *ConsoleSocketController {
	return &ConsoleSocketController{
		pool:            pool,
		router:          router,
		queue:           queue,
		cache:           cache,
		attachments:     attachments,
		inflightTimeout: 5 * time.Second,
	}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for now; plug a proper checker when auth is added.
		return true
	},
}

type consoleAction struct {
	Action  string `json:"action"`
	Text    string `json:"text,omitempty"`
	Private bool   `json:"private,omitempty"`
	AgentID string `json:"agent_id,omitempty"`
	Status  string `json:"status,omitempty"`
	Buffer  string `json:"buffer,omitempty"`
	Caret   int    `json:"caret,omitempty"`
	Key     string `json:"key,omitempty"`

	Attachment *attachmentUpload `json:"attachment,omitempty"`
}

type attachmentUpload struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
	// Data is base64; decoded before upload.
	Data string `json:"data"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

const defaultReadTimeout = 60 * time.Second

// Handle upgrades the console connection and runs the engine until the agent
// disconnects.
func (ctl *ConsoleSocketController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Query("session_id")
		userID := c.Query("user_id")
		name := c.Query("name")
		role := domain.Role(c.DefaultQuery("role", string(domain.RoleAgent)))
		if sessionID == "" || userID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "session_id and user_id are required"})
			return
		}
		if role != domain.RoleAgent && role != domain.RoleAdmin {
			c.JSON(http.StatusBadRequest, gin.H{"error": "role must be agent or admin"})
			return
		}
		if name == "" {
			name = userID
		}

		ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the response; just log and return.
			return
		}

		conn := realtime.NewConnection(userID, name, true, ws)
		ctl.router.Attach(conn)
		defer func() {
			ctl.router.Detach(conn)
			conn.Close(websocket.CloseNormalClosure, "console closed")
		}()

		actor := engine.Actor{AgentID: userID, DisplayName: name, Role: role}
		eng := engine.New(
			engine.Config{SessionID: sessionID, Actor: actor},
			engine.Deps{
				Store:       adapter.NewPgMessageStore(ctl.pool),
				Sessions:    adapter.NewPgSessionStore(ctl.pool),
				Agents:      adapter.NewPgAgentDirectory(ctl.pool),
				Attachments: ctl.attachments,
				Canned:      adapter.NewCachedCannedDirectory(adapter.NewPgCannedDirectory(ctl.pool), ctl.cache, cannedCacheTTL),
				Queue:       ctl.queue,
				Channel:     engine.NewRouterChannel(ctl.router, userID, name),
			},
			&consoleListener{conn: conn},
		)

		startCtx, cancel := context.WithTimeout(c.Request.Context(), ctl.inflightTimeout)
		err = eng.Start(startCtx)
		cancel()
		if err != nil {
			replyError(conn, "start_failed", err.Error())
			return
		}
		defer eng.Stop()

		suggestor := eng.Suggestor()

		ws.SetReadLimit(1 << 20) // 1MB payload cap
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
				replyError(conn, "read_error", err.Error())
				return
			}
			_ = ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))

			var action consoleAction
			if err := json.Unmarshal(data, &action); err != nil {
				replyError(conn, "bad_request", "invalid payload")
				continue
			}
			ctl.dispatch(c, conn, eng, suggestor, name, action)
		}
	}
}

func (ctl *ConsoleSocketController) dispatch(c *gin.Context, conn *realtime.Connection, eng *engine.Orchestrator, suggestor *engine.Suggestor, displayName string, action consoleAction) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.inflightTimeout)
	defer cancel()

	switch action.Action {
	case "send":
		upload, err := decodeUpload(action.Attachment)
		if err != nil {
			replyError(conn, "bad_request", err.Error())
			return
		}
		if err := eng.SendMessage(ctx, action.Text, upload, action.Private); err != nil {
			replyEngineError(conn, err)
		}
	case "typing":
		eng.NotifyTyping()
	case "assign":
		if action.AgentID == "" {
			replyError(conn, "bad_request", "agent_id is required")
			return
		}
		if err := eng.Assign(ctx, action.AgentID); err != nil {
			replyEngineError(conn, err)
		}
	case "close":
		if err := eng.CloseSession(ctx); err != nil {
			replyEngineError(conn, err)
		}
	case "load_older":
		if err := eng.RequestOlderMessages(ctx); err != nil {
			replyEngineError(conn, err)
		}
	case "status":
		status := domain.PresenceStatus(action.Status)
		if status != domain.PresenceOnline && status != domain.PresenceAway {
			replyError(conn, "bad_request", "status must be online or away")
			return
		}
		ctl.router.SetStatus(conn.UserID, displayName, status)
	case "compose":
		suggestor.SetBuffer(action.Buffer, action.Caret)
		sendSuggestions(conn, suggestor, engine.ActionNone)
	case "key":
		key, ok := keyFromString(action.Key)
		if !ok {
			replyError(conn, "bad_request", "unknown key")
			return
		}
		result := suggestor.HandleKey(key)
		sendSuggestions(conn, suggestor, result)
	default:
		replyError(conn, "unsupported_action", "unknown action")
	}
}

func decodeUpload(a *attachmentUpload) (*engine.AttachmentUpload, error) {
	if a == nil {
		return nil, nil
	}
	kind := domain.AttachmentKind(a.Kind)
	if kind != domain.AttachmentText && kind != domain.AttachmentImage {
		return nil, errors.New("attachment kind must be text or image")
	}
	data, err := base64.StdEncoding.DecodeString(a.Data)
	if err != nil {
		return nil, errors.New("attachment data must be base64")
	}
	return &engine.AttachmentUpload{Kind: kind, Name: a.Name, Data: data}, nil
}

func keyFromString(s string) (engine.Key, bool) {
	switch s {
	case "up":
		return engine.KeyUp, true
	case "down":
		return engine.KeyDown, true
	case "enter":
		return engine.KeyEnter, true
	case "shift_enter":
		return engine.KeyShiftEnter, true
	case "tab":
		return engine.KeyTab, true
	case "escape":
		return engine.KeyEscape, true
	default:
		return 0, false
	}
}

func replyEngineError(conn *realtime.Connection, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionClosed):
		replyError(conn, "session_closed", "session is closed")
	case errors.Is(err, domain.ErrUnauthorized):
		replyError(conn, "forbidden", "actor may not perform this operation")
	case errors.Is(err, engine.ErrNotConnected):
		replyError(conn, "not_connected", "live channel is down")
	case errors.Is(err, domain.ErrInvalidState):
		replyError(conn, "invalid_state", err.Error())
	default:
		replyError(conn, "internal_error", err.Error())
	}
}

func replyError(conn *realtime.Connection, code string, message string) {
	frame := errorFrame{
		Type:  "error",
		Code:  code,
		Error: message,
	}
	if payload, err := json.Marshal(frame); err == nil {
		_ = conn.Send(payload)
	}
}
