package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"admin-console/internal/config"

	"github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"
)

// ConsoleAuth gates the console API with HTTP Basic credentials checked
// against the configured bcrypt hash. Verified credentials are cached so
// bcrypt does not run on every request.
type ConsoleAuth struct {
	username     string
	passwordHash string
	cache        *cache.Cache
}

func NewConsoleAuth(cfg config.ConsoleConfig) *ConsoleAuth {
	return &ConsoleAuth{
		username:     cfg.Username,
		passwordHash: cfg.PasswordHash,
		cache:        cache.New(5*time.Minute, 10*time.Minute),
	}
}

func (m *ConsoleAuth) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok || username != m.username {
			m.reject(w)
			return
		}

		cacheKey := credentialKey(username, password)
		if _, found := m.cache.Get(cacheKey); found {
			next.ServeHTTP(w, r)
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(m.passwordHash), []byte(password)); err != nil {
			m.reject(w)
			return
		}

		m.cache.Set(cacheKey, true, 5*time.Minute)
		next.ServeHTTP(w, r)
	})
}

func (m *ConsoleAuth) reject(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="Admin Console"`)
	http.Error(w, `{"error": "Invalid credentials"}`, http.StatusUnauthorized)
}

func credentialKey(username, password string) string {
	sum := sha256.Sum256([]byte(username + ":" + password))
	return "console:" + hex.EncodeToString(sum[:])
}
