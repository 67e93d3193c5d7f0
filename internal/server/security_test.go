package server

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestRateLimiter(t *testing.T, perSecond, perMinute int, banFor time.Duration) (*RateLimiter, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	rl := NewRateLimiter(perSecond, perMinute, banFor)
	rl.now = clock.Now
	t.Cleanup(rl.Stop)
	return rl, clock
}

func TestRateLimiter_SecondBudget(t *testing.T) {
	t.Parallel()
	rl, clock := newTestRateLimiter(t, 3, 100, time.Minute)

	for i := range 3 {
		require.True(t, rl.Allow("1.2.3.4"), "request %d", i)
	}
	assert.False(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.IsBanned("1.2.3.4"))
	assert.True(t, rl.Allow("5.6.7.8"), "other IPs are unaffected")

	clock.Advance(30 * time.Second)
	assert.False(t, rl.Allow("1.2.3.4"), "still banned")

	clock.Advance(31 * time.Second)
	assert.False(t, rl.IsBanned("1.2.3.4"))
	assert.True(t, rl.Allow("1.2.3.4"))
}

func TestRateLimiter_MinuteBudget(t *testing.T) {
	t.Parallel()
	rl, clock := newTestRateLimiter(t, 100, 4, time.Second)

	for range 4 {
		require.True(t, rl.Allow("10.0.0.1"))
		clock.Advance(2 * time.Second)
	}
	assert.False(t, rl.Allow("10.0.0.1"), "fifth request in the minute")
}

func TestRateLimiter_SweepKeepsBannedIPs(t *testing.T) {
	t.Parallel()
	rl, clock := newTestRateLimiter(t, 1, 100, time.Hour)

	rl.Allow("idle")
	rl.Allow("banned")
	rl.Allow("banned")
	require.True(t, rl.IsBanned("banned"))

	clock.Advance(11 * time.Minute)
	rl.sweep()

	rl.mu.Lock()
	_, idleKept := rl.clients["idle"]
	_, bannedKept := rl.clients["banned"]
	rl.mu.Unlock()
	assert.False(t, idleKept)
	assert.True(t, bannedKept)
}

func TestRateLimiter_Concurrent(t *testing.T) {
	t.Parallel()
	rl, _ := newTestRateLimiter(t, 20, 1000, time.Minute)

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.Allow("same") {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(20), allowed.Load(), "exactly the per-second budget passes")
}

func TestRateLimiter_LimitMiddleware(t *testing.T) {
	t.Parallel()
	rl, _ := newTestRateLimiter(t, 1, 100, 30*time.Second)

	h := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "192.0.2.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, call().Code)
	rec := call()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
}

func TestClientIP_ForwardingHeadersNeedTrustedProxy(t *testing.T) {
	t.Parallel()

	trust := NewProxyTrust([]string{"10.0.0.0/8", "192.0.2.7", "not-an-ip"})
	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{"socket address", "192.168.1.1:12345", nil, "192.168.1.1"},
		{"untrusted forwarded", "198.51.100.9:1", map[string]string{"X-Forwarded-For": "203.0.113.1"}, "198.51.100.9"},
		{"untrusted real ip", "198.51.100.9:1", map[string]string{"X-Real-IP": "203.0.113.2"}, "198.51.100.9"},
		{"trusted range forwarded", "10.1.2.3:1", map[string]string{"X-Forwarded-For": "203.0.113.1, 10.0.0.2"}, "203.0.113.1"},
		{"trusted single address", "192.0.2.7:1", map[string]string{"X-Real-IP": "203.0.113.2"}, "203.0.113.2"},
		{"trusted without headers", "10.1.2.3:1", nil, "10.1.2.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var got string
			h := trust.RealIP(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				got = GetClientIP(r)
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRateLimiter_RotatingForwardedForIsStillLimited(t *testing.T) {
	t.Parallel()
	rl, _ := newTestRateLimiter(t, 1, 100, time.Minute)
	h := NewProxyTrust(nil).RealIP(rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	codes := make([]int, 0, 3)
	for _, fake := range []string{"203.0.113.1", "203.0.113.2", "203.0.113.3"} {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "198.51.100.9:4000"
		req.Header.Set("X-Forwarded-For", fake)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
}

func TestProxyTrust_Trusted(t *testing.T) {
	t.Parallel()

	trust := NewProxyTrust([]string{" 10.0.0.0/8 ", "::1", "127.0.0.1"})
	assert.True(t, trust.Trusted("10.200.0.1:80"))
	assert.True(t, trust.Trusted("[::1]:80"))
	assert.True(t, trust.Trusted("127.0.0.1"))
	assert.True(t, trust.Trusted("[::ffff:127.0.0.1]:80"))
	assert.False(t, trust.Trusted("11.0.0.1:80"))
	assert.False(t, trust.Trusted("garbage"))
	assert.False(t, NewProxyTrust(nil).Trusted("10.0.0.1:80"))
}

func TestOriginChecker(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"wildcard", []string{"*"}, "https://anywhere.example", true},
		{"listed", []string{"https://chat.example"}, "https://chat.example", true},
		{"case insensitive", []string{" HTTPS://Chat.Example "}, "https://chat.example", true},
		{"other scheme", []string{"https://chat.example"}, "http://chat.example", false},
		{"unlisted", []string{"https://chat.example"}, "https://evil.example", false},
		{"terminal client", []string{"https://chat.example"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, NewOriginChecker(tt.allowed).Check(req))
		})
	}
}

func TestMessageRateLimiter(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	ml := NewMessageRateLimiter(4)
	ml.now = clock.Now

	type result struct{ allowed, warning bool }
	var got []result
	for range 6 {
		allowed, warning := ml.AllowMessage("c1")
		got = append(got, result{allowed, warning})
	}
	assert.Equal(t, []result{
		{true, false}, {true, false}, // up to half the budget
		{true, true}, {true, true},
		{false, true}, {false, true},
	}, got)
	assert.Equal(t, 2, ml.Strikes("c1"))
	assert.Zero(t, ml.Strikes("other"))

	clock.Advance(time.Second)
	allowed, warning := ml.AllowMessage("c1")
	assert.True(t, allowed)
	assert.False(t, warning)
	assert.Equal(t, 2, ml.Strikes("c1"), "strikes outlive the window")

	ml.RemoveClient("c1")
	assert.Zero(t, ml.Strikes("c1"))
}
