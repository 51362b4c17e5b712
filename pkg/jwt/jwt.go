package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "socialnet"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrSameSecret   = errors.New("access and refresh secrets must differ")
	ErrEmptySecret  = errors.New("token secret must not be empty")
)

type Claims struct {
	UserId string `json:"userId"`
	jwt.RegisteredClaims
}

// JWTManager issues and verifies the two token classes. Access and refresh tokens are signed
// with different secrets, so one class can never be accepted in place of the other.
type JWTManager struct {
	accessSecret         []byte
	refreshSecret        []byte
	accessTokenDuration  time.Duration
	refreshTokenDuration time.Duration
	now                  func() time.Time
}

type Option func(*JWTManager)

// WithClock replaces time.Now for issuing and validating tokens.
func WithClock(now func() time.Time) Option {
	return func(m *JWTManager) {
		m.now = now
	}
}

func NewJWTManager(accessSecret, refreshSecret string, accessTokenDuration, refreshTokenDuration time.Duration, opts ...Option) (*JWTManager, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, ErrEmptySecret
	}
	if accessSecret == refreshSecret {
		return nil, ErrSameSecret
	}

	m := &JWTManager{
		accessSecret:         []byte(accessSecret),
		refreshSecret:        []byte(refreshSecret),
		accessTokenDuration:  accessTokenDuration,
		refreshTokenDuration: refreshTokenDuration,
		now:                  time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// GenerateAccessToken generates a short-lived access token
func (m *JWTManager) GenerateAccessToken(userId string) (string, error) {
	return m.sign(userId, m.accessSecret, m.accessTokenDuration)
}

// GenerateRefreshToken generates a long-lived refresh token
func (m *JWTManager) GenerateRefreshToken(userId string) (string, error) {
	return m.sign(userId, m.refreshSecret, m.refreshTokenDuration)
}

func (m *JWTManager) RefreshTokenDuration() time.Duration {
	return m.refreshTokenDuration
}

func (m *JWTManager) ValidateAccessToken(tokenString string) (string, error) {
	return m.verify(tokenString, m.accessSecret)
}

func (m *JWTManager) ValidateRefreshToken(tokenString string) (string, error) {
	return m.verify(tokenString, m.refreshSecret)
}

// Verify checks signature, algorithm and expiry against secret and returns the embedded user id.
func (m *JWTManager) Verify(tokenString, secret string) (string, error) {
	return m.verify(tokenString, []byte(secret))
}

func (m *JWTManager) sign(userId string, secret []byte, ttl time.Duration) (string, error) {
	if userId == "" {
		return "", ErrInvalidToken
	}

	now := m.now()
	claims := Claims{
		UserId: userId,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userId,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func (m *JWTManager) verify(tokenString string, secret []byte) (string, error) {
	if tokenString == "" {
		return "", ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserId == "" {
		return "", ErrInvalidToken
	}

	return claims.UserId, nil
}

// IsInvalid reports whether err is any token verification failure.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrExpiredToken)
}
