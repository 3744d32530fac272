package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/tillpoint/tillpoint/internal/auth"
	"github.com/tillpoint/tillpoint/internal/shared"
	_ "github.com/tillpoint/tillpoint/testing"
)

type stubRepo struct {
	user *auth.User
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) FindByID(ctx context.Context, id int64) (*auth.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

type stubPerms []string

func (p stubPerms) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	return p, nil
}

type harness struct {
	router   chi.Router
	sessions *shared.SessionManager
	cookie   *http.Cookie
}

func newHarness(t *testing.T, repo auth.Repository) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(client, "test_session", time.Hour, false)
	csrf := shared.NewCSRFManager("csrfsecret")
	handler := auth.NewHandler(nil, auth.NewService(repo, stubPerms{shared.PermPOSSell}), sessions, csrf)

	h := &harness{sessions: sessions}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess, err := sessions.Load(req.Context(), req)
			if err != nil {
				t.Fatalf("load session: %v", err)
			}
			ctx := shared.ContextWithSession(req.Context(), sess)
			rec := httptest.NewRecorder()
			next.ServeHTTP(rec, req.WithContext(ctx))
			if err := sessions.Commit(ctx, w, sess); err != nil {
				t.Fatalf("commit session: %v", err)
			}
			w.WriteHeader(rec.Code)
			_, _ = w.Write(rec.Body.Bytes())
		})
	})
	r.Route("/auth", func(r chi.Router) { handler.MountRoutes(r, nil) })
	h.router = r
	return h
}

func (h *harness) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.cookie != nil {
		req.AddCookie(h.cookie)
	}
	res := httptest.NewRecorder()
	h.router.ServeHTTP(res, req)
	for _, c := range res.Result().Cookies() {
		if c.Name == h.sessions.CookieName() {
			if c.MaxAge < 0 {
				h.cookie = nil
			} else {
				h.cookie = c
			}
		}
	}
	return res
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	out, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return string(out)
}

func TestCSRFTokenIssued(t *testing.T) {
	h := newHarness(t, &stubRepo{})
	res := h.do(t, http.MethodGet, "/auth/csrf", "")
	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", res.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["csrf_token"] == "" {
		t.Fatalf("expected csrf token")
	}
	if h.cookie == nil {
		t.Fatalf("expected session cookie")
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	h := newHarness(t, &stubRepo{user: &auth.User{ID: 1, Email: "user@test.local", PasswordHash: hashed(t, "correctpass"), IsActive: true}})

	res := h.do(t, http.MethodPost, "/auth/login", `{"email":"user@test.local","password":"wrongpass"}`)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "Invalid email or password") {
		t.Fatalf("expected error message in response, got %s", res.Body.String())
	}
}

func TestLoginValidation(t *testing.T) {
	h := newHarness(t, &stubRepo{})
	res := h.do(t, http.MethodPost, "/auth/login", `{"email":"nope","password":"short"}`)
	if res.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", res.Code)
	}
}

func TestInactiveUserCannotLogin(t *testing.T) {
	h := newHarness(t, &stubRepo{user: &auth.User{ID: 1, Email: "user@test.local", PasswordHash: hashed(t, "correctpass"), IsActive: false}})
	res := h.do(t, http.MethodPost, "/auth/login", `{"email":"user@test.local","password":"correctpass"}`)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
}

func TestLoginMeLogout(t *testing.T) {
	h := newHarness(t, &stubRepo{user: &auth.User{ID: 7, Email: "user@test.local", Name: "Dana", PasswordHash: hashed(t, "correctpass"), IsActive: true}})

	if res := h.do(t, http.MethodGet, "/auth/me", ""); res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 before login, got %d", res.Code)
	}

	res := h.do(t, http.MethodPost, "/auth/login", `{"email":"user@test.local","password":"correctpass"}`)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if h.cookie == nil {
		t.Fatalf("expected session cookie after login")
	}

	res = h.do(t, http.MethodGet, "/auth/me", "")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var profile auth.Profile
	if err := json.Unmarshal(res.Body.Bytes(), &profile); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if profile.ID != 7 || profile.Name != "Dana" || len(profile.Permissions) != 1 {
		t.Fatalf("unexpected profile %+v", profile)
	}

	if res := h.do(t, http.MethodPost, "/auth/logout", ""); res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}
	if res := h.do(t, http.MethodGet, "/auth/me", ""); res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", res.Code)
	}
}
