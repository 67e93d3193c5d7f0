package server

import (
	"context"
	"net/http"
	"time"

	"github.com/palemoky/roomchat/internal/apperrors"
	"github.com/palemoky/roomchat/internal/server/storage"
)

type userCtxKey struct{}

// SessionManager maps the login cookie to a user through the store.
type SessionManager struct {
	store      *storage.RedisStore
	cookieName string
	ttl        time.Duration
}

// NewSessionManager creates a manager issuing cookies named cookieName.
func NewSessionManager(store *storage.RedisStore, cookieName string, ttl time.Duration) *SessionManager {
	return &SessionManager{store: store, cookieName: cookieName, ttl: ttl}
}

// Issue starts a session for name and sets its cookie.
func (sm *SessionManager) Issue(ctx context.Context, w http.ResponseWriter, name string) error {
	token, err := sm.store.CreateSession(ctx, name, sm.ttl)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sm.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(sm.ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// CurrentUser returns the user of the request cookie, or "" without a valid
// session.
func (sm *SessionManager) CurrentUser(r *http.Request) (string, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if err != nil {
		return "", nil
	}
	return sm.store.SessionUser(r.Context(), cookie.Value)
}

// Revoke ends the request's session and expires the cookie.
func (sm *SessionManager) Revoke(w http.ResponseWriter, r *http.Request) error {
	if cookie, err := r.Cookie(sm.cookieName); err == nil {
		if err := sm.store.DeleteSession(r.Context(), cookie.Value); err != nil {
			return err
		}
	}
	sm.expire(w)
	return nil
}

func (sm *SessionManager) expire(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sm.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// RequireUser rejects requests without a session and stores the user in the
// request context.
func (sm *SessionManager) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name, err := sm.CurrentUser(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if name == "" {
			writeError(w, r, apperrors.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userCtxKey{}, name)))
	})
}

// UserFrom returns the user stored by RequireUser.
func UserFrom(ctx context.Context) string {
	name, _ := ctx.Value(userCtxKey{}).(string)
	return name
}
