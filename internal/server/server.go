package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/dukerupert/nag/internal/auth"
	"github.com/dukerupert/nag/internal/backup"
	"github.com/dukerupert/nag/internal/callback"
	"github.com/dukerupert/nag/internal/channel"
	"github.com/dukerupert/nag/internal/dispatch"
	"github.com/dukerupert/nag/internal/handler"
	"github.com/dukerupert/nag/internal/materializer"
	"github.com/dukerupert/nag/internal/middleware"
	"github.com/dukerupert/nag/internal/store"
	"github.com/dukerupert/nag/internal/tunnel"
	ws "github.com/dukerupert/nag/internal/websocket"
)

// Config carries the read-once options the server and its background tasks
// are built from.
type Config struct {
	Port string

	AuthEnabled bool

	// OIDC provider coordinates. Token verification uses the issuer,
	// client id and JWKS endpoint; the client secret and redirect URL
	// belong to the browser login flow in front of this API.
	OIDCIssuerURL    string
	OIDCClientID     string
	OIDCClientSecret string
	OIDCRedirectURL  string
	OIDCJWKSURL      string

	NotificationsEnabled bool
	PollInterval         time.Duration
	DispatchInterval     time.Duration
	MaxAttempts          int
	BatchSize            int

	TelegramToken     string
	TelegramRecipient string
	TelegramSecret    string

	WebpushVAPIDPublicKey  string
	WebpushVAPIDPrivateKey string
	WebpushSecret          string
	WebpushRecipient       string

	Backup backup.Config
	Tunnel tunnel.Config
}

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	choreH      *handler.ChoreHandler
	completionH *handler.CompletionHandler
	tagH        *handler.TagHandler
	dueH        *handler.DueHandler
	callbackH   *callback.Handler

	userStore   *store.UserStore
	verifier    *auth.OIDCVerifier
	authEnabled bool
	rateLimiter *middleware.RateLimiter

	materializer  *materializer.Materializer
	dispatcher    *dispatch.Dispatcher
	tunnelManager *tunnel.Manager
	backupManager *backup.Manager

	logger *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	choreStore := store.NewChoreStore(db)
	completionStore := store.NewCompletionStore(db)
	tagStore := store.NewTagStore(db)
	userStore := store.NewUserStore(db)
	eventStore := store.NewEventStore(db)
	deliveryStore := store.NewDeliveryStore(db)

	// Channel adapters: one per configured variant. The dispatcher and the
	// callback ingestor share the same map so every outbound channel can be
	// acknowledged back through the same adapter.
	channels := make(map[string]channel.Adapter)
	recipients := make(map[string]string)
	if cfg.TelegramToken != "" {
		tg := channel.NewTelegram(cfg.TelegramToken, cfg.TelegramRecipient, cfg.TelegramSecret)
		channels[tg.Name()] = tg
		recipients[tg.Name()] = cfg.TelegramRecipient
	}
	if cfg.WebpushVAPIDPublicKey != "" && cfg.WebpushVAPIDPrivateKey != "" {
		wp := channel.NewWebpush(cfg.WebpushVAPIDPublicKey, cfg.WebpushVAPIDPrivateKey, cfg.WebpushSecret)
		channels[wp.Name()] = wp
		recipients[wp.Name()] = cfg.WebpushRecipient
	}

	var mat *materializer.Materializer
	var disp *dispatch.Dispatcher
	if cfg.NotificationsEnabled && len(channels) > 0 {
		names := make([]string, 0, len(channels))
		for name := range channels {
			names = append(names, name)
		}
		sort.Strings(names)

		mat = materializer.New(choreStore, completionStore, eventStore, deliveryStore,
			names, cfg.PollInterval, logger.With("component", "materializer"))
		disp = dispatch.New(eventStore, deliveryStore, choreStore, channels, dispatch.Config{
			Interval:     cfg.DispatchInterval,
			MaxAttempts:  cfg.MaxAttempts,
			BatchSize:    cfg.BatchSize,
			DefaultRecip: recipients,
		}, logger.With("component", "dispatcher"))
	}

	var verifier *auth.OIDCVerifier
	if cfg.AuthEnabled {
		verifier = auth.NewOIDCVerifier(cfg.OIDCIssuerURL, cfg.OIDCClientID, cfg.OIDCJWKSURL)
	}

	backupMgr := backup.NewManager(cfg.Backup, db, func(s backup.Status) {
		hub.Broadcast(ws.Message{
			Type:   "backup_status",
			Entity: "backup",
			Action: string(s.State),
			Extra: map[string]any{
				"in_progress": s.InProgress,
				"error":       s.Error,
			},
		})
	}, logger.With("component", "backup"))

	tunnelMgr := tunnel.NewManager(cfg.Tunnel, func(s tunnel.Status) {
		hub.Broadcast(ws.Message{
			Type:   "tunnel_status",
			Entity: "tunnel",
			Action: string(s.State),
			Extra: map[string]any{
				"subdomain": s.Subdomain,
				"error":     s.Error,
			},
		})
	}, logger.With("component", "tunnel"))

	return &Server{
		db:            db,
		hub:           hub,
		choreH:        handler.NewChoreHandler(choreStore, completionStore, tagStore, hub),
		completionH:   handler.NewCompletionHandler(completionStore, hub),
		tagH:          handler.NewTagHandler(tagStore, choreStore, hub),
		dueH:          handler.NewDueHandler(choreStore, completionStore, tagStore, time.UTC),
		callbackH:     callback.New(channels, eventStore, completionStore, logger.With("component", "callback")),
		userStore:     userStore,
		verifier:      verifier,
		authEnabled:   cfg.AuthEnabled,
		rateLimiter:   middleware.NewRateLimiter(),
		materializer:  mat,
		dispatcher:    disp,
		tunnelManager: tunnelMgr,
		backupManager: backupMgr,
		logger:        logger,
	}
}

// Materializer returns the event materializer, or nil when notifications
// are disabled or no channel is configured.
func (s *Server) Materializer() *materializer.Materializer {
	return s.materializer
}

// Dispatcher returns the delivery dispatcher, or nil when notifications are
// disabled or no channel is configured.
func (s *Server) Dispatcher() *dispatch.Dispatcher {
	return s.dispatcher
}

// TunnelManager returns the tunnel manager.
func (s *Server) TunnelManager() *tunnel.Manager {
	return s.tunnelManager
}

// BackupManager returns the backup manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes. The callback endpoint is gated by the channel's own
	// secret inside the ingestor, not by session auth — the chat bot has no
	// OIDC identity.
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.HandleFunc("POST /callback/{channel}", s.rateLimitedHandler(s.handleCallback))

	// Protected routes — wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.authEnabled, s.verifier, s.userStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	s.callbackH.ServeHTTP(w, r, r.PathValue("channel"))
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 60, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Chore API routes
	mux.HandleFunc("POST /api/chores", s.choreH.Create)
	mux.HandleFunc("GET /api/chores", s.choreH.List)
	mux.HandleFunc("GET /api/chores/due", s.dueH.List)
	mux.HandleFunc("GET /api/chores/{id}", s.choreH.Get)
	mux.HandleFunc("PUT /api/chores/{id}", s.choreH.Update)
	mux.HandleFunc("DELETE /api/chores/{id}", s.choreH.Delete)
	mux.HandleFunc("POST /api/chores/{id}/complete", s.choreH.Complete)

	// Completion API routes
	mux.HandleFunc("GET /api/chores/{id}/completions", s.completionH.List)
	mux.HandleFunc("DELETE /api/chores/{id}/completions/{completion_id}", s.completionH.Delete)

	// Tag API routes
	mux.HandleFunc("GET /api/tags", s.tagH.List)
	mux.HandleFunc("POST /api/tags", s.tagH.Create)
	mux.HandleFunc("PUT /api/tags/{id}", s.tagH.Update)
	mux.HandleFunc("DELETE /api/tags/{id}", s.tagH.Delete)
	mux.HandleFunc("POST /api/chores/{id}/tags/{tag_id}", s.tagH.Attach)
	mux.HandleFunc("DELETE /api/chores/{id}/tags/{tag_id}", s.tagH.Detach)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))
}
