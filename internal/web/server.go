// Package web serves the panel: OAuth2 login, the REST API consumed by the
// SPA, the websocket live feed, and the static frontend build.
package web

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"guildpanel/internal/analytics"
	"guildpanel/internal/apperr"
	"guildpanel/internal/audit"
	"guildpanel/internal/bridge"
	"guildpanel/internal/config"
	"guildpanel/internal/storage"
	"guildpanel/internal/templates"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

type contextKey string

const sessionKey contextKey = "session"

type Server struct {
	cfg       config.Config
	logger    *zap.Logger
	store     *storage.Store
	bridge    bridge.Bridge
	templates *templates.Service
	analytics *analytics.Service
	audit     *audit.Logger
	sessions  *sessionStore
	oauth     *oauth2.Config
	hub       *Hub
	http      *http.Server
}

func NewServer(
	cfg config.Config,
	logger *zap.Logger,
	store *storage.Store,
	guildBridge bridge.Bridge,
	templateService *templates.Service,
	analyticsService *analytics.Service,
	auditLogger *audit.Logger,
	hub *Hub,
) *Server {
	s := &Server{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		bridge:    guildBridge,
		templates: templateService,
		analytics: analyticsService,
		audit:     auditLogger,
		sessions:  newSessionStore(time.Duration(cfg.HTTP.SessionMinutes) * time.Minute),
		oauth:     oauthConfig(cfg),
		hub:       hub,
	}
	s.http = &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           s.withCORS(s.routes()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /auth/discord", s.handleAuthLogin)
	mux.HandleFunc("GET /auth/discord/callback", s.handleAuthCallback)
	mux.HandleFunc("GET /auth/check", s.handleAuthCheck)
	mux.HandleFunc("POST /auth/logout", s.handleAuthLogout)

	api := func(pattern string, handler http.HandlerFunc) {
		mux.Handle(pattern, s.requireSession(handler))
	}

	api("GET /api/servers/{id}", s.handleGetServer)

	api("GET /api/server/{id}/channels", s.handleListChannels)
	api("POST /api/server/{id}/channels", s.handleCreateChannel)
	api("DELETE /api/server/{id}/channels/{channelID}", s.handleDeleteChannel)
	api("GET /api/server/{id}/roles", s.handleListRoles)
	api("POST /api/server/{id}/roles", s.handleCreateRole)
	api("GET /api/server/{id}/members", s.handleListMembers)
	api("POST /api/server/{id}/message", s.handleSendMessage)
	api("GET /api/server/{id}/settings", s.handleGetSettings)
	api("PUT /api/server/{id}/settings", s.handlePutSettings)
	api("GET /api/server/{id}/botsettings", s.handleGetBotSettings)
	api("POST /api/server/{id}/botsettings", s.handlePostBotSettings)
	api("GET /api/server/{id}/audit", s.handleListAudit)

	api("GET /api/licenses", s.handleListLicenses)
	api("POST /api/licenses", s.handleCreateLicense)
	api("GET /api/licenses/{serverID}", s.handleGetLicenseByServer)
	api("PUT /api/licenses/{id}", s.handleUpdateLicense)
	api("DELETE /api/licenses/{id}", s.handleDeleteLicense)

	api("GET /api/welcome/{serverID}", s.handleGetWelcome)
	api("PUT /api/welcome/{serverID}", s.handlePutWelcome)
	api("POST /api/welcome/{serverID}/test", s.handleTestWelcome)

	api("GET /api/templates/{serverID}", s.handleListTemplates)
	api("POST /api/templates/{serverID}", s.handleCreateTemplate)
	api("GET /api/templates/{serverID}/{id}", s.handleGetTemplate)
	api("PUT /api/templates/{serverID}/{id}", s.handleUpdateTemplate)
	api("DELETE /api/templates/{serverID}/{id}", s.handleDeleteTemplate)
	api("POST /api/templates/{serverID}/{id}/use", s.handleUseTemplate)

	api("GET /api/analytics/{serverID}/members", s.handleAnalyticsMembers)
	api("GET /api/analytics/{serverID}/messages", s.handleAnalyticsMessages)
	api("GET /api/analytics/{serverID}/activity", s.handleAnalyticsActivity)
	api("GET /api/analytics/{serverID}/summary", s.handleAnalyticsSummary)

	mux.Handle("GET /api/live", s.requireSession(http.HandlerFunc(s.handleLive)))

	mux.Handle("/", s.staticHandler())
	return mux
}

// staticHandler serves the SPA build, falling back to index.html for client
// side routes.
func (s *Server) staticHandler() http.Handler {
	dir := s.cfg.StaticDir
	fs := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean("/"+r.URL.Path))
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			fs.ServeHTTP(w, r)
			return
		}
		http.ServeFile(w, r, filepath.Join(dir, "index.html"))
	})
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, ok := s.sessionFrom(r)
		if !ok {
			s.writeError(w, r, apperr.Unauthenticated("not authenticated"))
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionOf(r *http.Request) Session {
	session, _ := r.Context().Value(sessionKey).(Session)
	return session
}

func (s *Server) Start(ctx context.Context) error {
	go s.sessions.RunCleanup(ctx)

	s.logger.Info("http server listening", zap.String("addr", s.cfg.HTTP.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
