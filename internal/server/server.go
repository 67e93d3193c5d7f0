// Package server is the roomchat companion server: chi routes for accounts
// and rooms, cookie sessions, and a hub fanning chat frames out to room
// sockets.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/palemoky/roomchat/internal/config"
	"github.com/palemoky/roomchat/internal/logger"
	"github.com/palemoky/roomchat/internal/protocol"
	"github.com/palemoky/roomchat/internal/server/storage"
)

// Server owns the HTTP routes, the hub and the storage client.
type Server struct {
	config   *config.Config
	redis    *redis.Client
	store    *storage.RedisStore
	sessions *SessionManager
	hub      *Hub
	upgrader websocket.Upgrader
	policy   *bluemonday.Policy

	rateLimiter    *RateLimiter
	originChecker  *OriginChecker
	messageLimiter *MessageRateLimiter
	proxies        *ProxyTrust

	bcryptCost int
	httpServer *http.Server
	closeOnce  sync.Once
}

// NewServer connects to Redis and builds the server.
func NewServer(cfg *config.Config) (*Server, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return NewServerWithClient(cfg, rdb), nil
}

// NewServerWithClient builds the server on an existing Redis client and
// starts its hub.
func NewServerWithClient(cfg *config.Config, rdb *redis.Client) *Server {
	store := storage.NewRedisStore(rdb)
	originChecker := NewOriginChecker(cfg.Server.AllowedOrigins)

	s := &Server{
		config:   cfg,
		redis:    rdb,
		store:    store,
		sessions: NewSessionManager(store, cfg.Session.CookieName, cfg.Session.TTLDuration()),
		hub:      NewHub(),
		policy:   bluemonday.StrictPolicy(),
		rateLimiter: NewRateLimiter(
			cfg.Server.RateLimit.MaxPerSecond,
			cfg.Server.RateLimit.MaxPerMinute,
			cfg.Server.RateLimit.BanDurationTime(),
		),
		originChecker:  originChecker,
		messageLimiter: NewMessageRateLimiter(cfg.Server.MessagesPerSecond),
		proxies:        NewProxyTrust(cfg.Server.TrustedProxies),
		bcryptCost:     bcrypt.DefaultCost,
	}
	// Origins are checked before the upgrade with a proper HTTP status.
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(*http.Request) bool { return true },
	}
	go s.hub.Run()

	logger.L().Info().
		Int("conn_per_second", cfg.Server.RateLimit.MaxPerSecond).
		Int("msg_per_second", cfg.Server.MessagesPerSecond).
		Strs("origins", cfg.Server.AllowedOrigins).
		Strs("trusted_proxies", cfg.Server.TrustedProxies).
		Msg("security config")
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.proxies.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get(protocol.PathHealth, s.handleHealth)
	r.Get(protocol.PathUsername, s.handleUsername)
	r.Get(protocol.PathLogout, s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimiter.Limit)
		r.Post(protocol.PathLogin, s.handleLogin)
		r.Post(protocol.PathSignup, s.handleSignup)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.sessions.RequireUser)
		r.Get(protocol.PathRooms, s.handleRooms)
		r.Get(protocol.PathJoinRooms, s.handleJoinRooms)
		r.Get(protocol.PathRoomOwner, s.handleRoomOwner)
		r.Post(protocol.PathCreateRoom, s.handleCreateRoom)
		r.Get(protocol.PathRoom, s.handleRoom)
		r.Get(protocol.PathDeleteRoom, s.handleDeleteRoom)
		r.Get(protocol.PathLeaveRoom, s.handleLeaveRoom)
		r.Get(protocol.PathDeleteUser, s.handleDeleteUser)
		r.Post(protocol.PathChangePassword, s.handleChangePassword)
		r.With(s.rateLimiter.Limit).Get(protocol.PathWebSocket, s.handleWebSocket)
	})
	return r
}

// requestLogger logs each request through the structured logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.L().Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Server.Host, fmt.Sprint(s.config.Server.Port))
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go s.monitorStats(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.L().Info().Str("addr", addr).Int("cpus", runtime.NumCPU()).Msg("roomchatd listening")
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		return s.GracefulShutdown(30 * time.Second)
	}
}
