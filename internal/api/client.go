// Package api is the HTTP side of the chat client: identity, room lists,
// room navigation and account forms. The WebSocket side lives in transport.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/palemoky/roomchat/internal/apperrors"
	"github.com/palemoky/roomchat/internal/logger"
	"github.com/palemoky/roomchat/internal/protocol"
	"github.com/palemoky/roomchat/internal/validate"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 4096
)

// Client talks to the chat server over HTTP. The session cookie set by
// Login lives in its jar and is shared with the WebSocket dialer.
type Client struct {
	base *url.URL
	http *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. A nil jar is replaced
// with a fresh one.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// New creates a client for serverURL (http or https).
func New(serverURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	c := &Client{
		base: u,
		http: &http.Client{Jar: jar, Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http.Jar == nil {
		c.http.Jar = jar
	}
	return c, nil
}

// Jar returns the cookie jar holding the session cookie.
func (c *Client) Jar() http.CookieJar {
	return c.http.Jar
}

// WebSocketURL returns the ws:// or wss:// address of the chat endpoint.
func (c *Client) WebSocketURL() string {
	u := *c.base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path += protocol.PathWebSocket
	return u.String()
}

// ResolveIdentity fetches the current user's display name. Any failure and
// an empty name both yield ErrUnauthenticated.
func (c *Client) ResolveIdentity(ctx context.Context) (string, error) {
	var payload protocol.UserNamePayload
	if err := c.getJSON(ctx, protocol.PathUsername, nil, &payload); err != nil {
		logger.L().Warn().Err(err).Msg("resolve identity failed")
		return "", fmt.Errorf("%w: %v", apperrors.ErrUnauthenticated, err)
	}
	if payload.Name == "" {
		logger.LogInfo("resolve identity: no session")
		return "", apperrors.ErrUnauthenticated
	}
	return payload.Name, nil
}

// Rooms lists the rooms the user owns.
func (c *Client) Rooms(ctx context.Context) ([]string, error) {
	return c.roomsList(ctx, protocol.PathRooms)
}

// JoinRooms lists the rooms the user has joined.
func (c *Client) JoinRooms(ctx context.Context) ([]string, error) {
	return c.roomsList(ctx, protocol.PathJoinRooms)
}

func (c *Client) roomsList(ctx context.Context, path string) ([]string, error) {
	var payload protocol.RoomsListPayload
	if err := c.getJSON(ctx, path, nil, &payload); err != nil {
		return nil, err
	}
	if payload.RoomsList == nil {
		return []string{}, nil
	}
	return payload.RoomsList, nil
}

// RoomOwner reports whether the current user owns roomID.
func (c *Client) RoomOwner(ctx context.Context, roomID string) (protocol.RoomOwnerPayload, error) {
	var payload protocol.RoomOwnerPayload
	if roomID == "" {
		return payload, apperrors.ErrInvalidRoomID
	}
	err := c.getJSON(ctx, protocol.PathRoomOwner, roomQuery(roomID), &payload)
	return payload, err
}

// CreateRoom creates a room owned by the current user and returns its id.
func (c *Client) CreateRoom(ctx context.Context) (string, error) {
	var payload protocol.RoomCreatedPayload
	if err := c.postForm(ctx, protocol.PathCreateRoom, url.Values{}, &payload); err != nil {
		return "", err
	}
	return payload.RoomID, nil
}

// DeleteRoom deletes roomID. Only the owner may do this.
func (c *Client) DeleteRoom(ctx context.Context, roomID string) error {
	if roomID == "" {
		return apperrors.ErrInvalidRoomID
	}
	return c.getJSON(ctx, protocol.PathDeleteRoom, roomQuery(roomID), nil)
}

// LeaveRoom removes the current user from roomID.
func (c *Client) LeaveRoom(ctx context.Context, roomID string) error {
	if roomID == "" {
		return apperrors.ErrInvalidRoomID
	}
	return c.getJSON(ctx, protocol.PathLeaveRoom, roomQuery(roomID), nil)
}

// RoomExit is the outcome of DeleteOrLeave.
type RoomExit int

const (
	RoomLeft RoomExit = iota
	RoomDeleted
)

func (e RoomExit) String() string {
	if e == RoomDeleted {
		return "deleted"
	}
	return "left"
}

// DeleteOrLeave asks the server who owns roomID and then issues exactly one
// of DeleteRoom (owner) or LeaveRoom (member).
func (c *Client) DeleteOrLeave(ctx context.Context, roomID string) (RoomExit, error) {
	owner, err := c.RoomOwner(ctx, roomID)
	if err != nil {
		return RoomLeft, fmt.Errorf("query room owner: %w", err)
	}
	if owner.IsMaster {
		return RoomDeleted, c.DeleteRoom(ctx, roomID)
	}
	return RoomLeft, c.LeaveRoom(ctx, roomID)
}

// Login posts credentials; on success the session cookie is in the jar.
func (c *Client) Login(ctx context.Context, username, password string) error {
	if err := validate.Username(username); err != nil {
		return err
	}
	if err := validate.Password(password); err != nil {
		return err
	}
	return c.postForm(ctx, protocol.PathLogin, url.Values{
		protocol.FieldUsername: {username},
		protocol.FieldPassword: {password},
	}, nil)
}

// Signup creates an account. The password rule is checked before any
// request is made.
func (c *Client) Signup(ctx context.Context, username, password, check string) error {
	if err := validate.Username(username); err != nil {
		return err
	}
	if err := validate.NewPassword(password, check); err != nil {
		return err
	}
	return c.postForm(ctx, protocol.PathSignup, url.Values{
		protocol.FieldUsername:      {username},
		protocol.FieldPassword:      {password},
		protocol.FieldCheckPassword: {check},
	}, nil)
}

// ChangePassword replaces the current user's password.
func (c *Client) ChangePassword(ctx context.Context, oldPassword, password, check string) error {
	if err := validate.NewPassword(password, check); err != nil {
		return err
	}
	return c.postForm(ctx, protocol.PathChangePassword, url.Values{
		protocol.FieldOldPassword:   {oldPassword},
		protocol.FieldPassword:      {password},
		protocol.FieldCheckPassword: {check},
	}, nil)
}

// Logout ends the session.
func (c *Client) Logout(ctx context.Context) error {
	return c.getJSON(ctx, protocol.PathLogout, nil, nil)
}

// DeleteUser deletes the current account and its session.
func (c *Client) DeleteUser(ctx context.Context) error {
	return c.getJSON(ctx, protocol.PathDeleteUser, nil, nil)
}

// --- plumbing ---

func roomQuery(roomID string) url.Values {
	return url.Values{protocol.QueryRoomID: {roomID}}
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path += path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path, query), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path, nil), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

// StatusError is a non-2xx response whose code header did not name a known
// error.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return http.StatusText(e.StatusCode)
	}
	return e.Message
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(body))

	if raw := resp.Header.Get(protocol.HeaderErrorCode); raw != "" {
		if code, err := strconv.Atoi(raw); err == nil {
			return apperrors.FromCode(code, msg)
		}
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return apperrors.ErrUnauthenticated
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: msg}
}

// IsUnauthenticated reports whether err means the user must log in again.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, apperrors.ErrUnauthenticated)
}
