package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"quill/internal/auth"
	"quill/internal/domain/storage"
	"quill/internal/domain/users"
	"quill/internal/ratelimiter"
)

// stubUserStore satisfies users.Store with overridable lookups. Methods a
// test does not care about return zero values.
type stubUserStore struct {
	getByID         func(ctx context.Context, id int64) (*users.User, error)
	getByEmail      func(ctx context.Context, email string) (*users.User, error)
	getRefreshToken func(ctx context.Context, userID int64) (string, error)
	saved           map[int64]string
}

func (s *stubUserStore) GetByID(ctx context.Context, id int64) (*users.User, error) {
	if s.getByID != nil {
		return s.getByID(ctx, id)
	}
	return nil, users.ErrNotFound
}

func (s *stubUserStore) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	if s.getByEmail != nil {
		return s.getByEmail(ctx, email)
	}
	return nil, users.ErrNotFound
}

func (s *stubUserStore) GetByResetToken(ctx context.Context, token string) (*users.User, error) {
	return nil, users.ErrNotFound
}

func (s *stubUserStore) Create(ctx context.Context, user *users.User) error  { return nil }
func (s *stubUserStore) Update(ctx context.Context, user *users.User) error  { return nil }
func (s *stubUserStore) UpdateRole(ctx context.Context, id int64, role users.Role) error {
	return nil
}
func (s *stubUserStore) UpdatePassword(ctx context.Context, id int64, hash []byte) error { return nil }
func (s *stubUserStore) UpdateLastLogin(ctx context.Context, id int64) error             { return nil }
func (s *stubUserStore) UpdateResetToken(ctx context.Context, email, token string, exp time.Time) error {
	return nil
}
func (s *stubUserStore) ClearResetToken(ctx context.Context, email string) error { return nil }
func (s *stubUserStore) Delete(ctx context.Context, id int64) error { return nil }
func (s *stubUserStore) List(ctx context.Context, limit, offset int) ([]users.User, int, error) {
	return nil, 0, nil
}

func (s *stubUserStore) SaveRefreshToken(ctx context.Context, userID int64, token string) error {
	if s.saved == nil {
		s.saved = map[int64]string{}
	}
	s.saved[userID] = token
	return nil
}

func (s *stubUserStore) GetRefreshToken(ctx context.Context, userID int64) (string, error) {
	if s.getRefreshToken != nil {
		return s.getRefreshToken(ctx, userID)
	}
	if token, ok := s.saved[userID]; ok {
		return token, nil
	}
	return "", users.ErrNotFound
}

func (s *stubUserStore) DeleteRefreshToken(ctx context.Context, userID int64) error {
	delete(s.saved, userID)
	return nil
}

func newTestApp(t *testing.T, userStore users.Store) *application {
	t.Helper()

	cfg := config{
		env: "test",
		auth: authConfig{
			token: tokenConfig{
				secret:          "test-access-secret",
				refreshSecret:   "test-refresh-secret",
				accessTokenExp:  time.Hour,
				refreshTokenExp: 24 * time.Hour,
				iss:             "quill-test",
			},
		},
		rateLimiter: ratelimiter.Config{Enabled: false},
	}

	return &application{
		config: cfg,
		logger: zap.NewNop().Sugar(),
		store:  &storage.Container{Users: userStore},
		authenticator: auth.NewJWTAuthenticator(
			cfg.auth.token.secret,
			cfg.auth.token.refreshSecret,
			cfg.auth.token.iss,
			cfg.auth.token.accessTokenExp,
			cfg.auth.token.refreshTokenExp,
		),
		rateLimiter: ratelimiter.NewFixedWindowLimiter(100, time.Minute),
	}
}

func echoCallerHandler(t *testing.T, want *users.User) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		got := getUserFromContext(r)
		if want == nil {
			assert.Nil(t, got)
		} else {
			require.NotNil(t, got)
			assert.Equal(t, want.ID, got.ID)
		}
		w.WriteHeader(http.StatusOK)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{"valid", "Bearer abc.def.ghi", "abc.def.ghi", false},
		{"missing", "", "", true},
		{"wrong scheme", "Basic abc", "", true},
		{"no token", "Bearer", "", true},
		{"extra parts", "Bearer a b", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}

			token, err := bearerToken(r)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, token)
		})
	}
}

func TestAuthTokenMiddleware(t *testing.T) {
	alice := &users.User{ID: 42, Username: "alice", Role: users.RoleAuthor}
	store := &stubUserStore{
		getByID: func(ctx context.Context, id int64) (*users.User, error) {
			if id == alice.ID {
				return alice, nil
			}
			return nil, users.ErrNotFound
		},
	}
	app := newTestApp(t, store)

	accessToken, _, err := app.authenticator.GenerateTokens(alice.ID, alice.Username, "a@example.com", string(alice.Role))
	require.NoError(t, err)

	handler := app.AuthTokenMiddleware(echoCallerHandler(t, alice))

	t.Run("valid token passes with user attached", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+accessToken)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing header rejected", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("garbage token rejected", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer not-a-jwt")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("refresh token rejected on access path", func(t *testing.T) {
		_, refreshToken, err := app.authenticator.GenerateTokens(alice.ID, alice.Username, "a@example.com", string(alice.Role))
		require.NoError(t, err)

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+refreshToken)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("deleted user rejected", func(t *testing.T) {
		token, _, err := app.authenticator.GenerateTokens(999, "ghost", "g@example.com", "author")
		require.NoError(t, err)

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestOptionalAuthTokenMiddleware_DegradesToAnonymous(t *testing.T) {
	alice := &users.User{ID: 42, Username: "alice", Role: users.RoleAuthor}
	store := &stubUserStore{
		getByID: func(ctx context.Context, id int64) (*users.User, error) {
			if id == alice.ID {
				return alice, nil
			}
			return nil, users.ErrNotFound
		},
	}
	app := newTestApp(t, store)

	t.Run("valid token attaches the caller", func(t *testing.T) {
		accessToken, _, err := app.authenticator.GenerateTokens(alice.ID, alice.Username, "a@example.com", string(alice.Role))
		require.NoError(t, err)

		handler := app.OptionalAuthTokenMiddleware(echoCallerHandler(t, alice))
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+accessToken)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	// Every failure mode must degrade to anonymous with a 200, never a 401.
	anonymousCases := map[string]func(r *http.Request){
		"no header":       func(r *http.Request) {},
		"malformed token": func(r *http.Request) { r.Header.Set("Authorization", "Bearer junk") },
		"unknown user": func(r *http.Request) {
			token, _, err := app.authenticator.GenerateTokens(999, "ghost", "g@example.com", "author")
			require.NoError(t, err)
			r.Header.Set("Authorization", "Bearer "+token)
		},
		"expired token": func(r *http.Request) {
			expired := auth.NewJWTAuthenticator("test-access-secret", "test-refresh-secret", "quill-test", -time.Minute, -time.Minute)
			token, _, err := expired.GenerateTokens(alice.ID, alice.Username, "a@example.com", string(alice.Role))
			require.NoError(t, err)
			r.Header.Set("Authorization", "Bearer "+token)
		},
	}

	for name, arrange := range anonymousCases {
		t.Run(name, func(t *testing.T) {
			handler := app.OptionalAuthTokenMiddleware(echoCallerHandler(t, nil))
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			arrange(r)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)
			assert.Equal(t, http.StatusOK, w.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	app := newTestApp(t, &stubUserStore{})

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	guard := app.RequireRole(users.RoleAdmin, users.RoleAuthor)(next)

	serveAs := func(user *users.User) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		if user != nil {
			r = r.WithContext(context.WithValue(r.Context(), userCtx, user))
		}
		w := httptest.NewRecorder()
		guard.ServeHTTP(w, r)
		return w
	}

	assert.Equal(t, http.StatusOK, serveAs(&users.User{ID: 1, Role: users.RoleAdmin}).Code)
	assert.Equal(t, http.StatusOK, serveAs(&users.User{ID: 2, Role: users.RoleAuthor}).Code)
	assert.Equal(t, http.StatusForbidden, serveAs(&users.User{ID: 3, Role: users.RoleSubscriber}).Code)
	assert.Equal(t, http.StatusUnauthorized, serveAs(nil).Code)
}
