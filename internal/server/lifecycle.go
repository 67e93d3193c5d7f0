package server

import (
	"context"
	"runtime"
	"time"

	"github.com/palemoky/roomchat/internal/logger"
)

// monitorStats logs the server load every 30 seconds until ctx ends.
func (s *Server) monitorStats(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			logger.L().Info().
				Int("sockets", s.hub.Count()).
				Int("goroutines", runtime.NumGoroutine()).
				Float64("mem_mb", float64(m.Alloc)/1024/1024).
				Msg("stats")
		}
	}
}

// GracefulShutdown stops accepting requests, waits up to timeout for open
// requests, then disconnects every socket.
func (s *Server) GracefulShutdown(timeout time.Duration) error {
	logger.L().Info().Int("sockets", s.hub.Count()).Msg("shutting down")

	var err error
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err = s.httpServer.Shutdown(ctx)
	}
	s.Close()
	return err
}

// Close stops the hub, the limiters and the Redis client. Hijacked
// WebSocket connections are closed by the hub.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.hub.Stop()
		s.rateLimiter.Stop()
		if err := s.redis.Close(); err != nil {
			logger.L().Warn().Err(err).Msg("close redis")
		}
	})
}
