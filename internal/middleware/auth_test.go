package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"admin-console/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func authFor(t *testing.T, username, password string) *ConsoleAuth {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return NewConsoleAuth(config.ConsoleConfig{Username: username, PasswordHash: string(hash)})
}

func protected(auth *ConsoleAuth) http.Handler {
	return auth.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
}

func TestConsoleAuthAccepts(t *testing.T) {
	handler := protected(authFor(t, "admin", "secret"))

	req := httptest.NewRequest(http.MethodGet, "/api/panels", nil)
	req.SetBasicAuth("admin", "secret")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestConsoleAuthRejects(t *testing.T) {
	handler := protected(authFor(t, "admin", "secret"))

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "admin", "nope"},
		{"wrong username", "root", "secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/panels", nil)
			req.SetBasicAuth(tt.username, tt.password)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, `Basic realm="Admin Console"`, w.Header().Get("WWW-Authenticate"))
		})
	}
}

func TestConsoleAuthMissingCredentials(t *testing.T) {
	handler := protected(authFor(t, "admin", "secret"))

	req := httptest.NewRequest(http.MethodGet, "/api/panels", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error": "Invalid credentials"}`, w.Body.String())
}

func TestConsoleAuthCachesVerification(t *testing.T) {
	auth := authFor(t, "admin", "secret")
	handler := protected(auth)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/panels", nil)
		req.SetBasicAuth("admin", "secret")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		require.Equal(t, http.StatusNoContent, w.Code)
	}

	_, found := auth.cache.Get(credentialKey("admin", "secret"))
	assert.True(t, found)
}
