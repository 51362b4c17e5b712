package http

import (
	"errors"
	"net/http"
	"time"

	"socialnet/infrastructure/telemetry"
	"socialnet/internal/entity"
	"socialnet/internal/usecase"
)

const RefreshCookieName = "jwt"

// CookiePolicy controls the attributes of the refresh token cookie.
type CookiePolicy struct {
	Secure   bool
	SameSite http.SameSite
	MaxAge   time.Duration
}

// NewCookiePolicy returns the cross-site policy in production (SameSite=None requires Secure)
// and a same-site Lax policy elsewhere.
func NewCookiePolicy(production bool, maxAge time.Duration) CookiePolicy {
	if production {
		return CookiePolicy{Secure: true, SameSite: http.SameSiteNoneMode, MaxAge: maxAge}
	}
	return CookiePolicy{Secure: false, SameSite: http.SameSiteLaxMode, MaxAge: maxAge}
}

type AuthHandler struct {
	authUc  usecase.AuthUsecase
	cookie  CookiePolicy
	metrics *telemetry.Metrics
}

func NewAuthHandler(authUc usecase.AuthUsecase, cookie CookiePolicy, metrics *telemetry.Metrics) *AuthHandler {
	return &AuthHandler{
		authUc:  authUc,
		cookie:  cookie,
		metrics: metrics,
	}
}

type authPayload struct {
	User        entity.User `json:"user"`
	AccessToken string      `json:"accessToken"`
}

// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req entity.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	authResponse, err := h.authUc.Register(r.Context(), req)
	if err != nil {
		h.metrics.AuthAttempt("register", outcome(err))
		writeUsecaseError(w, r, err, "internal error while registering user")
		return
	}

	h.metrics.AuthAttempt("register", telemetry.OutcomeSuccess)
	h.setRefreshTokenCookie(w, authResponse.RefreshToken)
	writeJSON(w, http.StatusCreated, "user created successfully", authPayload{
		User:        authResponse.User,
		AccessToken: authResponse.AccessToken,
	})
}

// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req entity.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	authResponse, err := h.authUc.Login(r.Context(), req)
	if err != nil {
		h.metrics.AuthAttempt("login", outcome(err))
		writeUsecaseError(w, r, err, "internal server error while login")
		return
	}

	h.metrics.AuthAttempt("login", telemetry.OutcomeSuccess)
	h.setRefreshTokenCookie(w, authResponse.RefreshToken)
	writeJSON(w, http.StatusOK, "user logged in successfully", authPayload{
		User:        authResponse.User,
		AccessToken: authResponse.AccessToken,
	})
}

// POST /auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil || cookie.Value == "" {
		h.metrics.AuthAttempt("refresh", telemetry.OutcomeRejected)
		writeError(w, http.StatusUnauthorized, errNoToken.Error())
		return
	}

	authResponse, err := h.authUc.Refresh(r.Context(), cookie.Value)
	if err != nil {
		h.metrics.AuthAttempt("refresh", outcome(err))
		if outcome(err) == telemetry.OutcomeRejected {
			h.clearRefreshTokenCookie(w)
		}
		writeUsecaseError(w, r, err, "internal server error while refreshing session")
		return
	}

	h.metrics.AuthAttempt("refresh", telemetry.OutcomeSuccess)
	h.setRefreshTokenCookie(w, authResponse.RefreshToken)
	writeJSON(w, http.StatusOK, "session refreshed", authPayload{
		User:        authResponse.User,
		AccessToken: authResponse.AccessToken,
	})
}

// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearRefreshTokenCookie(w)
	writeJSON(w, http.StatusOK, "logout successfully", nil)
}

// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, errNoToken.Error())
		return
	}

	writeJSON(w, http.StatusOK, "success", map[string]entity.User{"user": user})
}

func (h *AuthHandler) setRefreshTokenCookie(w http.ResponseWriter, refreshToken string) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    refreshToken,
		Path:     "/",
		MaxAge:   int(h.cookie.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: h.cookie.SameSite,
	})
}

func (h *AuthHandler) clearRefreshTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: h.cookie.SameSite,
	})
}

func outcome(err error) string {
	switch {
	case err == nil:
		return telemetry.OutcomeSuccess
	case isClientError(err):
		return telemetry.OutcomeRejected
	default:
		return telemetry.OutcomeError
	}
}

func isClientError(err error) bool {
	for _, target := range []error{
		usecase.ErrInvalidInput,
		usecase.ErrEmailAlreadyTaken,
		usecase.ErrUsernameAlreadyTaken,
		usecase.ErrInvalidCredentials,
		usecase.ErrInvalidRefreshToken,
		usecase.ErrUserNoLongerExists,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
