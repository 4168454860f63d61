// Package identity talks to the Mindful identity collaborator and caches
// the signed-in profile in the durable store. The chat repository is never
// constructed without a user ID from here.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mindfulhq/mindful/internal/store"
)

// ErrNoUser means no valid signed-in profile is available.
var ErrNoUser = errors.New("identity: no signed-in user")

// profileKey matches the record the web client keeps for the signed-in user.
const profileKey = "mindful_users"

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type storedProfile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Token string `json:"token,omitempty"`
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
	kv      store.KV
}

func NewClient(baseURL string, kv store.KV) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:4000"
	}
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		kv:      kv,
	}
}

type authResp struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	User    struct {
		MongoID string `json:"_id"`
		ID      string `json:"id"`
		Name    string `json:"name"`
		Email   string `json:"email"`
	} `json:"user"`
	Error string `json:"error,omitempty"`
}

// Login authenticates against the backend and caches the profile.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	return c.auth(ctx, "/login", map[string]string{
		"email":    email,
		"password": password,
	})
}

// Register creates an account and caches the profile.
func (c *Client) Register(ctx context.Context, name, email, password string) (*User, error) {
	return c.auth(ctx, "/signup", map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	})
}

func (c *Client) auth(ctx context.Context, path string, payload map[string]string) (*User, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded authResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	if !decoded.Success {
		msg := decoded.Error
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("identity: %s", msg)
	}

	id := decoded.User.MongoID
	if id == "" {
		id = decoded.User.ID
	}
	if id == "" {
		return nil, errors.New("identity: response has no user id")
	}

	profile := storedProfile{
		ID:    id,
		Name:  decoded.User.Name,
		Email: decoded.User.Email,
		Token: decoded.Token,
	}
	data, err := json.Marshal(profile)
	if err != nil {
		return nil, err
	}
	if err := c.kv.Set(ctx, profileKey, string(data)); err != nil {
		return nil, fmt.Errorf("identity: cache profile: %w", err)
	}
	return &User{ID: profile.ID, Name: profile.Name, Email: profile.Email}, nil
}

// Current returns the cached profile. A cached token that has expired
// counts as signed out.
func (c *Client) Current(ctx context.Context) (*User, error) {
	data, err := c.kv.Get(ctx, profileKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoUser
		}
		return nil, err
	}
	var profile storedProfile
	if err := json.Unmarshal([]byte(data), &profile); err != nil {
		return nil, ErrNoUser
	}
	if profile.ID == "" || !tokenUsable(profile.Token) {
		return nil, ErrNoUser
	}
	return &User{ID: profile.ID, Name: profile.Name, Email: profile.Email}, nil
}

// Logout removes the cached profile. Session history stays; it is keyed by
// user ID and reappears on the next login.
func (c *Client) Logout(ctx context.Context) error {
	return c.kv.Delete(ctx, profileKey)
}

// tokenUsable inspects the access token's expiry claim without verifying
// the signature; verification is the backend's job, the client only avoids
// presenting a token it knows is stale. Profiles without a token (older
// backends) are accepted.
func tokenUsable(token string) bool {
	if token == "" {
		return true
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return false
	}
	if exp == nil {
		return true
	}
	return exp.After(time.Now())
}
