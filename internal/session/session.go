// Package session resolves the bearer token of a dashboard request into the
// session principal, caching principals in redis between requests.
package session

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"

	"github.com/campusdesk/campusdesk/internal/authz"
	"github.com/campusdesk/campusdesk/internal/platform/httpx"
)

// CookieName carries the token for browser requests without an Authorization header.
const CookieName = "token"

const keyPrefix = "session:"

// ErrInvalidToken reports a missing, malformed, or expired token.
var ErrInvalidToken = fmt.Errorf("session: invalid token: %w", httpx.ErrUnauthorized)

// PrincipalSource loads the principal behind a token.
type PrincipalSource interface {
	Me(ctx context.Context, token string) (*authz.User, error)
}

// Claims are the registered claims of an institution API token plus its tenant.
type Claims struct {
	jwt.RegisteredClaims
	Institution string `json:"institution,omitempty"`
}

// Manager verifies tokens and caches principals.
type Manager struct {
	client *redis.Client
	source PrincipalSource
	secret []byte
	ttl    time.Duration
	logger *slog.Logger
}

// NewManager constructs a Manager. A nil client disables caching.
func NewManager(client *redis.Client, source PrincipalSource, secret string, ttl time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{client: client, source: source, secret: []byte(secret), ttl: ttl, logger: logger}
}

// Verify checks the token signature and expiry.
func (m *Manager) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// Principal returns the user behind token, from cache when possible.
func (m *Manager) Principal(ctx context.Context, token string) (*authz.User, error) {
	claims, err := m.Verify(token)
	if err != nil {
		return nil, err
	}
	if user, ok := m.cached(ctx, token); ok {
		return user, nil
	}
	user, err := m.source.Me(ctx, token)
	if err != nil {
		return nil, err
	}
	if claims.Subject != "" && user.ID != "" && claims.Subject != user.ID {
		return nil, fmt.Errorf("%w: subject mismatch", ErrInvalidToken)
	}
	if user.InstitutionID == "" {
		user.InstitutionID = claims.Institution
	}
	m.store(ctx, token, user, claims)
	return user, nil
}

// Refresh drops the cached principal so the next request re-fetches it.
func (m *Manager) Refresh(ctx context.Context, token string) error {
	if m.client == nil {
		return nil
	}
	if err := m.client.Del(ctx, Key(token)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

func (m *Manager) cached(ctx context.Context, token string) (*authz.User, bool) {
	if m.client == nil {
		return nil, false
	}
	payload, err := m.client.Get(ctx, Key(token)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			m.logger.Warn("session cache read", slog.Any("error", err))
		}
		return nil, false
	}
	var user authz.User
	if err := json.Unmarshal(payload, &user); err != nil {
		m.logger.Warn("session cache decode", slog.Any("error", err))
		return nil, false
	}
	return &user, true
}

func (m *Manager) store(ctx context.Context, token string, user *authz.User, claims *Claims) {
	if m.client == nil {
		return
	}
	ttl := m.ttl
	if claims.ExpiresAt != nil {
		if left := time.Until(claims.ExpiresAt.Time); ttl <= 0 || left < ttl {
			ttl = left
		}
	}
	if ttl <= 0 {
		return
	}
	payload, err := json.Marshal(user)
	if err != nil {
		m.logger.Warn("session cache encode", slog.Any("error", err))
		return
	}
	if err := m.client.Set(ctx, Key(token), payload, ttl).Err(); err != nil {
		m.logger.Warn("session cache write", slog.Any("error", err))
	}
}

// Key is the redis key of a token's cached principal. Tokens are never stored raw.
func Key(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// BearerToken extracts the token from the Authorization header or the token cookie.
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

type tokenKey struct{}

// ContextWithToken stores the request's bearer token.
func ContextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext returns the request's bearer token, used to forward calls upstream.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// Middleware attaches the principal and token to the request context. Requests
// whose token does not resolve continue without a principal; upstream
// failures are reported as errors.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		user, err := m.Principal(r.Context(), token)
		if err != nil {
			if !errors.Is(err, httpx.ErrUnauthorized) && !errors.Is(err, httpx.ErrForbidden) {
				m.logger.Error("resolve principal", slog.Any("error", err))
				httpx.RespondError(w, err)
				return
			}
			m.logger.Debug("anonymous request", slog.String("path", r.URL.Path), slog.Any("error", err))
			next.ServeHTTP(w, r)
			return
		}
		ctx := ContextWithToken(r.Context(), token)
		ctx = authz.ContextWithUser(ctx, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
