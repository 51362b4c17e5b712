package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"socialnet/infrastructure/telemetry"
	"socialnet/internal/entity"
	"socialnet/internal/usecase"
)

type contextKey string

const (
	userContextKey   contextKey = "user"
	sourceContextKey contextKey = "authSource"
)

// AuthSource records which credential authenticated the request.
type AuthSource string

const (
	AuthSourceAccess  AuthSource = "access"
	AuthSourceRefresh AuthSource = "refresh"
)

var errNoToken = errors.New("not authorized, no token")

type AuthMiddleware struct {
	authUc  usecase.AuthUsecase
	metrics *telemetry.Metrics
}

func NewAuthMiddleware(authUc usecase.AuthUsecase, metrics *telemetry.Metrics) *AuthMiddleware {
	return &AuthMiddleware{
		authUc:  authUc,
		metrics: metrics,
	}
}

// Authenticate resolves the caller from the bearer access token, falling back to the refresh
// cookie. Every request either reaches next with a user in its context or gets a JSON rejection.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, source, err := m.resolve(r)
		if err != nil {
			m.reject(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		ctx = context.WithValue(ctx, sourceContextKey, source)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) resolve(r *http.Request) (entity.User, AuthSource, error) {
	ctx := r.Context()
	presented := false

	if token, ok := bearerToken(r); ok {
		presented = true
		user, err := m.authUc.ResolveAccessToken(ctx, token)
		if err == nil {
			return user, AuthSourceAccess, nil
		}
		if !errors.Is(err, usecase.ErrInvalidSession) {
			return entity.User{}, "", err
		}
	}

	if cookie, err := r.Cookie(RefreshCookieName); err == nil && cookie.Value != "" {
		presented = true
		user, err := m.authUc.ResolveRefreshToken(ctx, cookie.Value)
		if err == nil {
			return user, AuthSourceRefresh, nil
		}
		if !errors.Is(err, usecase.ErrInvalidSession) {
			return entity.User{}, "", err
		}
	}

	if presented {
		return entity.User{}, "", usecase.ErrInvalidSession
	}
	return entity.User{}, "", errNoToken
}

func (m *AuthMiddleware) reject(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errNoToken):
		m.metrics.AuthAttempt("session", telemetry.OutcomeRejected)
		writeError(w, http.StatusUnauthorized, errNoToken.Error())
	case errors.Is(err, usecase.ErrInvalidSession):
		m.metrics.AuthAttempt("session", telemetry.OutcomeRejected)
		writeError(w, http.StatusUnauthorized, usecase.ErrInvalidSession.Error())
	case errors.Is(err, usecase.ErrUserNoLongerExists):
		m.metrics.AuthAttempt("session", telemetry.OutcomeRejected)
		writeError(w, http.StatusUnauthorized, usecase.ErrUserNoLongerExists.Error())
	default:
		m.metrics.AuthAttempt("session", telemetry.OutcomeError)
		slog.ErrorContext(r.Context(), "session lookup failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	token, found := strings.CutPrefix(authHeader, "Bearer ")
	if !found {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// UserFromContext returns the user attached by Authenticate. The password hash is never set.
func UserFromContext(ctx context.Context) (entity.User, bool) {
	user, ok := ctx.Value(userContextKey).(entity.User)
	return user, ok
}

func AuthSourceFromContext(ctx context.Context) (AuthSource, bool) {
	source, ok := ctx.Value(sourceContextKey).(AuthSource)
	return source, ok
}
