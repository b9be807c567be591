package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"gatherly/internal/core"
	"gatherly/internal/realtime"
	"gatherly/internal/types"
)

// RealtimeHandler upgrades /v1/ws requests and hands the connection to the
// realtime manager. One user may hold several concurrent connections.
type RealtimeHandler struct {
	manager  *realtime.Manager
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewRealtimeHandler creates a RealtimeHandler. allowedOrigins of ["*"]
// accepts any Origin header; browsers send none for non-browser clients.
func NewRealtimeHandler(manager *realtime.Manager, allowedOrigins []string, logger *slog.Logger) *RealtimeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RealtimeHandler{
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

// RegisterRoutes mounts the websocket endpoints on the provided router.
func (h *RealtimeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.Serve)
	r.Get("/ws/stats", h.Stats)
}

// Stats handles GET /v1/ws/stats: how many distinct users hold a live
// connection to this process.
func (h *RealtimeHandler) Stats(w http.ResponseWriter, r *http.Request) {
	core.JSON(w, r, http.StatusOK, map[string]int{
		"online_users": h.manager.OnlineUsers(),
	})
}

// Serve handles GET /v1/ws. The identity middleware has already run, so a
// missing user id here means the route was mounted outside the
// authenticated group.
func (h *RealtimeHandler) Serve(w http.ResponseWriter, r *http.Request) {
	userID := types.GetUserID(r.Context())
	if userID == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthRequired, "Authentication required", nil))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.WarnContext(r.Context(), "websocket upgrade failed",
			"user_id", userID,
			"error", err,
		)
		return
	}

	handle := realtime.NewWSHandle(conn, 0)
	if err := h.manager.Connect(userID, handle); err != nil {
		h.logger.WarnContext(r.Context(), "websocket registration failed",
			"user_id", userID,
			"error", err,
		)
		return
	}

	go handle.ReadLoop(func() {
		h.manager.Disconnect(userID, handle)
	})
}

// originChecker builds the Upgrade origin policy. An empty list or a "*"
// entry disables the check.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
