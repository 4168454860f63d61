package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mindfulhq/mindful/internal/store"
)

func authBackend(t *testing.T, token string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		switch r.URL.Path {
		case "/login":
			if payload["password"] != "correct horse" {
				_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "invalid credentials"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"token":   token,
				"user": map[string]string{
					"_id":   "67fe8bf226d6518f4dcb207f",
					"name":  "Ada",
					"email": payload["email"],
				},
			})
		case "/signup":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"token":   token,
				"user": map[string]string{
					"id":    "67fe8bf226d6518f4dcb2080",
					"name":  payload["name"],
					"email": payload["email"],
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "67fe8bf226d6518f4dcb207f",
		"exp": exp.Unix(),
	})
	s, err := tok.SignedString([]byte("dev-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestLoginCachesProfile(t *testing.T) {
	srv := authBackend(t, signedToken(t, time.Now().Add(time.Hour)))
	defer srv.Close()

	kv := store.NewMemory()
	client := NewClient(srv.URL, kv)
	ctx := context.Background()

	user, err := client.Login(ctx, "ada@example.com", "correct horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.ID != "67fe8bf226d6518f4dcb207f" || user.Name != "Ada" {
		t.Fatalf("unexpected user: %+v", user)
	}

	cached, err := client.Current(ctx)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if cached.ID != user.ID || cached.Email != "ada@example.com" {
		t.Fatalf("cached profile mismatch: %+v", cached)
	}

	if err := client.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := client.Current(ctx); !errors.Is(err, ErrNoUser) {
		t.Fatalf("expected ErrNoUser after logout, got %v", err)
	}
}

func TestLoginRejected(t *testing.T) {
	srv := authBackend(t, "")
	defer srv.Close()

	client := NewClient(srv.URL, store.NewMemory())
	if _, err := client.Login(context.Background(), "ada@example.com", "wrong"); err == nil {
		t.Fatalf("expected login failure")
	}
	if _, err := client.Current(context.Background()); !errors.Is(err, ErrNoUser) {
		t.Fatalf("failed login must not cache a profile, got %v", err)
	}
}

func TestRegisterCachesProfile(t *testing.T) {
	srv := authBackend(t, "")
	defer srv.Close()

	client := NewClient(srv.URL, store.NewMemory())
	user, err := client.Register(context.Background(), "Grace", "grace@example.com", "pw")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.ID != "67fe8bf226d6518f4dcb2080" || user.Name != "Grace" {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestExpiredTokenCountsAsSignedOut(t *testing.T) {
	srv := authBackend(t, signedToken(t, time.Now().Add(-time.Hour)))
	defer srv.Close()

	client := NewClient(srv.URL, store.NewMemory())
	ctx := context.Background()
	if _, err := client.Login(ctx, "ada@example.com", "correct horse"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := client.Current(ctx); !errors.Is(err, ErrNoUser) {
		t.Fatalf("expected ErrNoUser for expired token, got %v", err)
	}
}
