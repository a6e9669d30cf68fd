package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"devrelay/internal/infrastructure/cache/port"
	"devrelay/internal/infrastructure/realtime"
	"devrelay/internal/metrics"
	chat "devrelay/internal/pkg/chat/application/domain"
	"devrelay/internal/pkg/chat/application/pipeline"
	"devrelay/internal/pkg/chat/application/usecase"
	repoAdapter "devrelay/internal/pkg/chat/persistence/repository/adapter"
	"devrelay/internal/pkg/chat/wire"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// ChatSocketController is the connection gateway: it owns the websocket
// endpoint, per-connection state and the inbound event loop. Every handler
// receives the connection explicitly; there is no shared "current socket".
type ChatSocketController struct {
	registry        *realtime.Registry
	pipe            *pipeline.Pipeline
	joinUC          *usecase.JoinProjectUseCase
	sendUC          *usecase.SendMessageUseCase
	historyUC       *usecase.LoadHistoryUseCase
	jwtSecret       []byte
	historyLimit    int
	inflightTimeout time.Duration
	logger          zerolog.Logger
}

func NewChatSocketController(pool *pgxpool.Pool, cache port.Cache, registry *realtime.Registry, pipe *pipeline.Pipeline, jwtSecret []byte, historyLimit int, logger zerolog.Logger) *ChatSocketController {
	msgRepo := repoAdapter.NewPgMessageRepository(pool)
	projRepo := repoAdapter.NewPgProjectRepository(pool)
	post := usecase.NewPostMessageUseCase(msgRepo, cache)
	return &ChatSocketController{
		registry:        registry,
		pipe:            pipe,
		joinUC:          usecase.NewJoinProjectUseCase(projRepo),
		sendUC:          usecase.NewSendMessageUseCase(post),
		historyUC:       usecase.NewLoadHistoryUseCase(msgRepo, cache, historyLimit),
		jwtSecret:       jwtSecret,
		historyLimit:    historyLimit,
		inflightTimeout: 5 * time.Second,
		logger:          logger,
	}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for now; plug a proper checker when needed.
		return true
	},
}

const defaultReadTimeout = 60 * time.Second

// Handle upgrades HTTP connections to websocket and processes frames until
// the client disconnects.
func (ctl *ChatSocketController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		memberID, memberName := ctl.identityFromRequest(c)

		ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the response; nothing more to do.
			return
		}

		conn := realtime.NewConnection(ws)
		conn.SetIdentity(memberID, memberName)
		conn.Start()
		defer func() {
			ctl.registry.Leave(conn)
			conn.Close(websocket.CloseNormalClosure, "session closed")
		}()

		ws.SetReadLimit(1 << 20) // 1MB payload cap
		_ = ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		})

		_ = conn.Send(wire.Ack("connected", ""))

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) ||
					errors.Is(err, websocket.ErrCloseSent) {
					return
				}
				return
			}

			var frame wire.Inbound
			if err := json.Unmarshal(data, &frame); err != nil {
				_ = conn.Send(wire.Error("invalid payload"))
				continue
			}

			switch frame.Type {
			case "join":
				ctl.handleJoin(c, conn, frame)
			case "leave":
				ctl.handleLeave(conn)
			case "message":
				ctl.handleMessage(c, conn, frame)
			default:
				_ = conn.Send(wire.Error("unknown frame type"))
			}
		}
	}
}

// identityFromRequest trusts a verified JWT when present; otherwise the
// connection is a guest attributed by display name only.
func (ctl *ChatSocketController) identityFromRequest(c *gin.Context) (memberID, memberName string) {
	token := c.Query("token")
	if token == "" || len(ctl.jwtSecret) == 0 {
		return "", ""
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return ctl.jwtSecret, nil
	})
	if err != nil || !parsed.Valid {
		return "", ""
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", ""
	}
	if sub, ok := claims["sub"].(string); ok {
		memberID = sub
	}
	if name, ok := claims["name"].(string); ok {
		memberName = name
	}
	return memberID, memberName
}

// handleJoin binds the connection to a project room and delivers history to
// the joining connection only. A missing projectId is a silent no-op so a
// racing client cannot take the connection down.
func (ctl *ChatSocketController) handleJoin(c *gin.Context, conn *realtime.Connection, frame wire.Inbound) {
	if frame.ProjectID == "" {
		return
	}

	memberID, memberName := conn.Identity()
	if memberID == "" {
		memberID = frame.MemberID
	}
	if memberName == "" {
		memberName = frame.MemberName
	}
	if memberName == "" {
		memberName = chat.UnknownSenderName
	}
	conn.SetIdentity(memberID, memberName)

	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.inflightTimeout)
	defer cancel()

	if err := ctl.joinUC.Execute(ctx, usecase.JoinProjectInput{ProjectID: frame.ProjectID, MemberID: memberID}); err != nil {
		switch {
		case errors.Is(err, chat.ErrNotMember):
			_ = conn.Send(wire.Error("not a member of the project"))
			return
		case errors.Is(err, usecase.ErrPersistence):
			// Degrade: the membership store being down must not lock
			// members out of their rooms.
			ctl.logger.Warn().Err(err).Str("project_id", frame.ProjectID).Msg("membership check degraded")
		default:
			_ = conn.Send(wire.Error("could not join room"))
			return
		}
	}

	ctl.registry.Join(frame.ProjectID, conn)
	metrics.RoomJoins.Inc()
	_ = conn.Send(wire.Ack("joined", frame.ProjectID))

	start := time.Now()
	history, err := ctl.historyUC.Execute(ctx, usecase.LoadHistoryInput{ProjectID: frame.ProjectID, Limit: ctl.historyLimit})
	metrics.HistoryFetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		// A failed history fetch degrades to an empty backlog; the join
		// itself stands.
		ctl.logger.Warn().Err(err).Str("project_id", frame.ProjectID).Msg("history fetch failed")
		history = nil
	}
	_ = conn.Send(wire.History(history))
}

func (ctl *ChatSocketController) handleLeave(conn *realtime.Connection) {
	projectID, ok := ctl.registry.Room(conn)
	ctl.registry.Leave(conn)
	if ok {
		_ = conn.Send(wire.Ack("left", projectID))
	}
}

// handleMessage is the single inbound message entrypoint: persist, broadcast
// to the room, then hand the stored message to the AI pipeline.
func (ctl *ChatSocketController) handleMessage(c *gin.Context, conn *realtime.Connection, frame wire.Inbound) {
	projectID, ok := ctl.registry.Room(conn)
	if !ok {
		projectID = frame.ProjectID
	}
	if projectID == "" {
		_ = conn.Send(wire.Error("Missing projectId"))
		return
	}

	memberID, memberName := conn.Identity()
	var senderID *string
	if memberID != "" {
		senderID = &memberID
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.inflightTimeout)
	defer cancel()

	msg, err := ctl.sendUC.Execute(ctx, usecase.SendMessageInput{
		ProjectID:   projectID,
		SenderID:    senderID,
		SenderName:  memberName,
		Text:        frame.Text,
		Attachments: frame.Attachments,
	})
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, chat.ErrMissingProject):
			_ = conn.Send(wire.Error(err.Error()))
		case errors.Is(err, usecase.ErrPersistence):
			_ = conn.Send(wire.Error("could not process message"))
		default:
			_ = conn.Send(wire.Error(err.Error()))
		}
		return
	}

	payload, err := wire.Message(*msg)
	if err != nil {
		_ = conn.Send(wire.Error("failed to encode message"))
		return
	}
	delivered := ctl.registry.Broadcast(projectID, payload)
	metrics.BroadcastFanout.Observe(float64(delivered))
	metrics.MessagesRelayed.WithLabelValues(string(chat.SenderUser)).Inc()

	// Placeholder persistence and broadcast happen inside Trigger, before
	// the generation task is enqueued, so the placeholder always precedes
	// the final result in the log.
	if err := ctl.pipe.Trigger(ctx, msg); err != nil {
		ctl.logger.Error().Err(err).Str("project_id", projectID).Msg("ai trigger failed")
		_ = conn.Send(wire.Error("could not start AI generation"))
	}
}
