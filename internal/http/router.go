package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Router gorilla/mux 路由；/api/v1 下需要鉴权的路由挂在 secured 子路由上
type Router struct {
	mux     *mux.Router
	api     *mux.Router
	secured *mux.Router
	logger  *zap.Logger
}

func NewRouter(auth *Authenticator, logger *zap.Logger) *Router {
	root := mux.NewRouter()
	api := root.PathPrefix("/api/v1").Subrouter()
	secured := api.NewRoute().Subrouter()
	secured.Use(auth.Middleware)

	r := &Router{mux: root, api: api, secured: secured, logger: logger}
	root.Use(r.logRequests)
	root.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, Ok(map[string]string{"status": "ok"}))
	}).Methods(http.MethodGet)
	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterTelemetryRoutes 遥测数据需要登录
func (r *Router) RegisterTelemetryRoutes(h *TelemetryHandler) {
	r.secured.HandleFunc("/telemetry/snapshot", h.GetSnapshot).Methods(http.MethodGet)
	r.secured.HandleFunc("/telemetry/history", h.GetHistory).Methods(http.MethodGet)
	r.secured.HandleFunc("/telemetry/history/chart", h.GetHistoryChart).Methods(http.MethodGet)
	r.secured.HandleFunc("/telemetry/history/export", h.ExportHistory).Methods(http.MethodGet)
	r.secured.HandleFunc("/telemetry/alerts", h.GetAlerts).Methods(http.MethodGet)

	// 纯计算，不需要登录
	r.api.HandleFunc("/motion/classify", h.Classify).Methods(http.MethodGet)
}

func (r *Router) RegisterProfileRoutes(h *ProfileHandler) {
	r.secured.HandleFunc("/profile", h.GetProfile).Methods(http.MethodGet)
	r.secured.HandleFunc("/profile", h.SaveProfile).Methods(http.MethodPut)
}

func (r *Router) RegisterChatRoutes(h *ChatHandler) {
	r.secured.HandleFunc("/chat/conversations", h.ListConversations).Methods(http.MethodGet)
	r.secured.HandleFunc("/chat/conversations/{id}", h.GetConversation).Methods(http.MethodGet)
	r.secured.HandleFunc("/chat/conversations/{id}/messages", h.SendMessage).Methods(http.MethodPost)
}

func (r *Router) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, req)
		r.logger.Debug("HTTP request",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
