package ws

import (
	"net/http"

	"ridepool/internal/config"
	"ridepool/internal/realtime"
	"ridepool/internal/services"
	"ridepool/internal/utils"
	"ridepool/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Handler upgrades HTTP requests to WebSocket sessions. The bearer credential
// is verified before the session touches the engine; a bad token never makes
// it past the handshake.
type Handler struct {
	engine   *realtime.Engine
	auth     services.AuthService
	cfg      *config.WebSocketConfig
	log      *logger.Logger
	upgrader websocket.Upgrader
}

func NewHandler(engine *realtime.Engine, auth services.AuthService, cfg *config.WebSocketConfig, log *logger.Logger) *Handler {
	return &Handler{
		engine: engine,
		auth:   auth,
		cfg:    cfg,
		log:    log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
	}
}

// HandleWebSocket authenticates the handshake and, on success, starts the
// connection's pumps. The token rides in the Authorization header or, for
// browser clients that cannot set headers on WebSocket dials, in the `token`
// query parameter.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	credential := c.GetHeader("Authorization")
	if credential == "" {
		credential = c.Query("token")
	}

	user, err := h.auth.VerifyAccessToken(c.Request.Context(), credential)
	if err != nil {
		h.log.WithError(err).Warn("WebSocket handshake rejected")
		utils.UnauthorizedResponse(c)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Error("WebSocket upgrade failed")
		return
	}

	client := NewClient(h.engine, conn, h.cfg, h.log, uuid.NewString(), user.ID, user.CohortKey)
	h.engine.Connect(client)

	go client.WritePump()
	go client.ReadPump()
}

func originChecker(allowed []string) func(r *http.Request) bool {
	for _, origin := range allowed {
		if origin == "*" {
			return func(r *http.Request) bool { return true }
		}
	}

	allowedSet := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		allowedSet[origin] = true
	}

	return func(r *http.Request) bool {
		return allowedSet[r.Header.Get("Origin")]
	}
}
