package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quill/internal/domain/users"
)

func postJSON(t *testing.T, handler http.HandlerFunc, target string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler(w, r)
	return w
}

func decodeTokenPair(t *testing.T, w *httptest.ResponseRecorder) TokenPairResponse {
	t.Helper()

	var envelope struct {
		Data TokenPairResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&envelope))
	return envelope.Data
}

func TestCreateTokenHandler(t *testing.T) {
	alice := &users.User{ID: 42, Username: "alice", Email: "alice@example.com", Role: users.RoleAuthor}
	require.NoError(t, alice.Password.Set("correct horse battery"))

	store := &stubUserStore{
		getByEmail: func(ctx context.Context, email string) (*users.User, error) {
			if email == alice.Email {
				return alice, nil
			}
			return nil, users.ErrNotFound
		},
	}
	app := newTestApp(t, store)

	t.Run("valid credentials return a token pair", func(t *testing.T) {
		w := postJSON(t, app.createTokenHandler, "/v1/authentication/token", CreateTokenPayload{
			Email:    "alice@example.com",
			Password: "correct horse battery",
		})
		require.Equal(t, http.StatusOK, w.Code)

		pair := decodeTokenPair(t, w)
		assert.NotEmpty(t, pair.AccessToken)
		assert.NotEmpty(t, pair.RefreshToken)

		claims, err := app.authenticator.ValidateAccessToken(pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "alice", claims.Username)
		assert.Equal(t, "author", claims.Role)

		// The issued refresh token is the one on record.
		assert.Equal(t, pair.RefreshToken, store.saved[alice.ID])
	})

	t.Run("wrong password", func(t *testing.T) {
		w := postJSON(t, app.createTokenHandler, "/v1/authentication/token", CreateTokenPayload{
			Email:    "alice@example.com",
			Password: "wrong password!",
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unknown email gets the same response as a wrong password", func(t *testing.T) {
		w := postJSON(t, app.createTokenHandler, "/v1/authentication/token", CreateTokenPayload{
			Email:    "nobody@example.com",
			Password: "whatever whatever",
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("invalid payload", func(t *testing.T) {
		w := postJSON(t, app.createTokenHandler, "/v1/authentication/token", CreateTokenPayload{
			Email:    "not-an-email",
			Password: "short",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestRefreshTokenHandler_RotationAndReplay(t *testing.T) {
	alice := &users.User{ID: 42, Username: "alice", Email: "alice@example.com", Role: users.RoleAuthor}

	store := &stubUserStore{
		getByID: func(ctx context.Context, id int64) (*users.User, error) {
			if id == alice.ID {
				return alice, nil
			}
			return nil, users.ErrNotFound
		},
	}
	app := newTestApp(t, store)

	_, refresh1, err := app.authenticator.GenerateTokens(alice.ID, alice.Username, alice.Email, string(alice.Role))
	require.NoError(t, err)
	require.NoError(t, store.SaveRefreshToken(context.Background(), alice.ID, refresh1))

	// First rotation succeeds and supersedes refresh1.
	w := postJSON(t, app.refreshTokenHandler, "/v1/authentication/refresh", RefreshTokenPayload{RefreshToken: refresh1})
	require.Equal(t, http.StatusOK, w.Code)

	pair := decodeTokenPair(t, w)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEqual(t, refresh1, pair.RefreshToken)
	assert.Equal(t, pair.RefreshToken, store.saved[alice.ID])

	// Replaying the superseded token must fail even though it still verifies
	// cryptographically.
	w = postJSON(t, app.refreshTokenHandler, "/v1/authentication/refresh", RefreshTokenPayload{RefreshToken: refresh1})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// The current token still rotates.
	w = postJSON(t, app.refreshTokenHandler, "/v1/authentication/refresh", RefreshTokenPayload{RefreshToken: pair.RefreshToken})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRefreshTokenHandler_RejectsAccessToken(t *testing.T) {
	app := newTestApp(t, &stubUserStore{})

	access, _, err := app.authenticator.GenerateTokens(1, "bob", "bob@example.com", "subscriber")
	require.NoError(t, err)

	w := postJSON(t, app.refreshTokenHandler, "/v1/authentication/refresh", RefreshTokenPayload{RefreshToken: access})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefreshTokenHandler_RevokedAfterLogout(t *testing.T) {
	alice := &users.User{ID: 42, Username: "alice", Email: "alice@example.com", Role: users.RoleAuthor}
	store := &stubUserStore{
		getByID: func(ctx context.Context, id int64) (*users.User, error) { return alice, nil },
	}
	app := newTestApp(t, store)

	_, refresh, err := app.authenticator.GenerateTokens(alice.ID, alice.Username, alice.Email, string(alice.Role))
	require.NoError(t, err)
	require.NoError(t, store.SaveRefreshToken(context.Background(), alice.ID, refresh))
	require.NoError(t, store.DeleteRefreshToken(context.Background(), alice.ID))

	w := postJSON(t, app.refreshTokenHandler, "/v1/authentication/refresh", RefreshTokenPayload{RefreshToken: refresh})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
