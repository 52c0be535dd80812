package handler

import (
	"net/http"

	"engagement-rewards/internal/adapter/http/middleware"
	"engagement-rewards/internal/core/ports"
	"engagement-rewards/pkg/apperror"
	"engagement-rewards/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RealtimeServer streams a user's events over an upgraded connection.
type RealtimeServer interface {
	Serve(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error
}

// RealtimeHandler authenticates websocket clients before handing them to the hub.
type RealtimeHandler struct {
	hub      RealtimeServer
	tokenSvc ports.TokenService
	log      zerolog.Logger
}

// NewRealtimeHandler creates a new RealtimeHandler.
func NewRealtimeHandler(hub RealtimeServer, tokenSvc ports.TokenService, log zerolog.Logger) *RealtimeHandler {
	return &RealtimeHandler{hub: hub, tokenSvc: tokenSvc, log: log}
}

// Connect handles GET /ws. Browsers cannot set headers on a websocket
// handshake, so the token may also arrive as ?token=.
func (h *RealtimeHandler) Connect(c *gin.Context) {
	token, ok := middleware.BearerToken(c.GetHeader("Authorization"))
	if !ok {
		token = c.Query("token")
	}
	if token == "" {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	claims, err := h.tokenSvc.Validate(token)
	if err != nil {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	c.Set(middleware.CtxUserID, claims.UserID)

	if err := h.hub.Serve(c.Writer, c.Request, claims.UserID); err != nil {
		h.log.Debug().Err(err).Str("user_id", claims.UserID.String()).Msg("realtime connection ended")
	}
}
