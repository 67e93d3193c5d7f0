package server

import (
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/palemoky/roomchat/internal/logger"
	"github.com/palemoky/roomchat/internal/types"
)

// window is a fixed-size counting window.
type window struct {
	start time.Time
	count int
}

// hit counts one event at now and returns the count in the current window.
func (w *window) hit(now time.Time, size time.Duration) int {
	if now.Sub(w.start) >= size {
		w.start = now
		w.count = 0
	}
	w.count++
	return w.count
}

// --- per-IP request limit ---

// RateLimiter bans an IP for banFor once it exceeds perSecond or perMinute
// requests. It guards login, signup and WebSocket upgrades.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*ipState

	perSecond int
	perMinute int
	banFor    time.Duration
	idleAfter time.Duration
	now       func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

type ipState struct {
	second, minute window
	bannedUntil    time.Time
	lastSeen       time.Time
}

// NewRateLimiter starts a limiter and its sweep loop; Stop ends the loop.
func NewRateLimiter(perSecond, perMinute int, banFor time.Duration) *RateLimiter {
	rl := &RateLimiter{
		clients:   make(map[string]*ipState),
		perSecond: perSecond,
		perMinute: perMinute,
		banFor:    banFor,
		idleAfter: 10 * time.Minute,
		now:       time.Now,
		stop:      make(chan struct{}),
	}
	go rl.sweepLoop(5 * time.Minute)
	return rl
}

// Allow counts a request from ip and reports whether it may proceed.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	st, ok := rl.clients[ip]
	if !ok {
		st = &ipState{}
		rl.clients[ip] = st
	}
	st.lastSeen = now
	if now.Before(st.bannedUntil) {
		return false
	}

	perSecond := st.second.hit(now, time.Second)
	perMinute := st.minute.hit(now, time.Minute)
	if perSecond > rl.perSecond || perMinute > rl.perMinute {
		st.bannedUntil = now.Add(rl.banFor)
		logger.L().Warn().Str("ip", ip).Dur("ban", rl.banFor).Msg("rate limit exceeded")
		return false
	}
	return true
}

// IsBanned reports whether ip is serving a ban.
func (rl *RateLimiter) IsBanned(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	st, ok := rl.clients[ip]
	return ok && rl.now().Before(st.bannedUntil)
}

// Limit rejects requests from limited IPs with 429.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(GetClientIP(r)) {
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.banFor.Seconds())))
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Stop ends the sweep loop.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

// sweep forgets idle IPs that are not banned.
func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for ip, st := range rl.clients {
		if now.Sub(st.lastSeen) > rl.idleAfter && !now.Before(st.bannedUntil) {
			delete(rl.clients, ip)
		}
	}
}

// --- origin check ---

// OriginChecker validates the Origin header of WebSocket upgrades.
type OriginChecker struct {
	allowAll bool
	allowed  map[string]struct{}
}

// NewOriginChecker accepts the listed origins; "*" accepts every origin.
func NewOriginChecker(origins []string) *OriginChecker {
	oc := &OriginChecker{allowed: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		o = strings.ToLower(strings.TrimSpace(o))
		if o == "*" {
			oc.allowAll = true
		}
		oc.allowed[o] = struct{}{}
	}
	return oc
}

// Check reports whether r may upgrade. The terminal client sends no Origin
// header and is always accepted.
func (oc *OriginChecker) Check(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if oc.allowAll || origin == "" {
		return true
	}
	_, ok := oc.allowed[strings.ToLower(origin)]
	return ok
}

// ProxyTrust decides whose forwarding headers are believed.
type ProxyTrust struct {
	prefixes []netip.Prefix
}

// NewProxyTrust accepts addresses and CIDR ranges. Invalid entries are logged
// and skipped.
func NewProxyTrust(proxies []string) *ProxyTrust {
	pt := &ProxyTrust{}
	for _, p := range proxies {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if prefix, err := netip.ParsePrefix(p); err == nil {
			pt.prefixes = append(pt.prefixes, prefix.Masked())
			continue
		}
		if addr, err := netip.ParseAddr(p); err == nil {
			pt.prefixes = append(pt.prefixes, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
			continue
		}
		logger.L().Warn().Str("proxy", p).Msg("ignoring invalid trusted proxy")
	}
	return pt
}

// Trusted reports whether the peer at remoteAddr is a configured proxy.
func (pt *ProxyTrust) Trusted(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range pt.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// RealIP rewrites RemoteAddr from the forwarding headers for requests that
// arrive from a trusted proxy. Other peers keep their socket address.
func (pt *ProxyTrust) RealIP(next http.Handler) http.Handler {
	forwarded := middleware.RealIP(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if pt.Trusted(r.RemoteAddr) {
			forwarded.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetClientIP returns the host part of RemoteAddr. Forwarding headers are
// applied earlier by ProxyTrust.RealIP, never read here.
func GetClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// --- per-connection chat flood guard ---

var _ types.MessageLimiter = (*MessageRateLimiter)(nil)

// MessageRateLimiter throttles chat frames per connection. Past half of the
// budget it warns; past the budget it drops and records a strike.
type MessageRateLimiter struct {
	mu      sync.Mutex
	clients map[string]*floodState

	perSecond int
	warnAt    int
	now       func() time.Time
}

type floodState struct {
	second  window
	strikes int
}

// NewMessageRateLimiter allows perSecond frames per connection.
func NewMessageRateLimiter(perSecond int) *MessageRateLimiter {
	return &MessageRateLimiter{
		clients:   make(map[string]*floodState),
		perSecond: perSecond,
		warnAt:    perSecond / 2,
		now:       time.Now,
	}
}

// AllowMessage counts a frame from clientID.
func (ml *MessageRateLimiter) AllowMessage(clientID string) (allowed bool, warning bool) {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	st, ok := ml.clients[clientID]
	if !ok {
		st = &floodState{}
		ml.clients[clientID] = st
	}
	n := st.second.hit(ml.now(), time.Second)
	switch {
	case n > ml.perSecond:
		st.strikes++
		return false, true
	case n > ml.warnAt:
		return true, true
	default:
		return true, false
	}
}

// Strikes returns how many frames of clientID were dropped.
func (ml *MessageRateLimiter) Strikes(clientID string) int {
	ml.mu.Lock()
	defer ml.mu.Unlock()
	if st, ok := ml.clients[clientID]; ok {
		return st.strikes
	}
	return 0
}

// RemoveClient forgets clientID.
func (ml *MessageRateLimiter) RemoveClient(clientID string) {
	ml.mu.Lock()
	defer ml.mu.Unlock()
	delete(ml.clients, clientID)
}
