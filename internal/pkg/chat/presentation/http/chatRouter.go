package http

import (
	"devrelay/internal/infrastructure/cache/port"
	"devrelay/internal/infrastructure/realtime"
	"devrelay/internal/pkg/chat/application/pipeline"
	"devrelay/internal/pkg/chat/presentation/controller"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Deps carries the shared infrastructure the chat endpoints are built from.
type Deps struct {
	Pool         *pgxpool.Pool
	Cache        port.Cache
	Registry     *realtime.Registry
	Pipeline     *pipeline.Pipeline
	JWTSecret    []byte
	HistoryLimit int
	Logger       zerolog.Logger
}

// RegisterRoutes registers chat-related HTTP endpoints under the given router
// group. It constructs per-endpoint controllers and binds them directly to
// routes.
func RegisterRoutes(g *gin.RouterGroup, d Deps) {
	historyCtl := controller.NewGetHistoryController(d.Pool, d.Cache, d.HistoryLimit)
	socketCtl := controller.NewChatSocketController(d.Pool, d.Cache, d.Registry, d.Pipeline, d.JWTSecret, d.HistoryLimit, d.Logger)

	// GET /api/v1/projects/:projectId/messages -> fetch history by project id
	g.GET("/projects/:projectId/messages", historyCtl.Handle())

	// GET /api/v1/chat/ws -> websocket endpoint for realtime chat
	g.GET("/chat/ws", socketCtl.Handle())
}
