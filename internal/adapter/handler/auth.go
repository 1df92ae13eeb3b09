package handler

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

var ErrInvalidToken = errors.New("invalid or expired token")

const emailKey = "email"

type emailCtxKey struct{}

// Claims identify a member by email.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenAuthority signs and verifies HS256 member tokens.
type TokenAuthority struct {
	secret []byte
}

func NewTokenAuthority(secret string) *TokenAuthority {
	return &TokenAuthority{secret: []byte(secret)}
}

func (a *TokenAuthority) Issue(email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}

// Verify returns the email carried by a valid token.
func (a *TokenAuthority) Verify(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.Email == "" {
		return "", errors.Wrap(ErrInvalidToken, "email claim missing")
	}
	return claims.Email, nil
}

// bearerToken strips the "Bearer " prefix. ok is false when it is absent.
func bearerToken(header string) (string, bool) {
	token := strings.TrimPrefix(header, "Bearer ")
	if token == header || token == "" {
		return "", false
	}
	return token, true
}

// Authenticate rejects requests without a valid bearer token and stores the
// caller's email on the echo context.
func (a *TokenAuthority) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" {
			return unauthorized(c, "Authorization header is missing")
		}

		tokenString, ok := bearerToken(authHeader)
		if !ok {
			return unauthorized(c, "Invalid token format, must be Bearer token")
		}

		email, err := a.Verify(tokenString)
		if err != nil {
			return unauthorized(c, "Invalid or expired token")
		}

		c.Set(emailKey, email)
		c.SetRequest(c.Request().WithContext(withEmail(c.Request().Context(), email)))

		return next(c)
	}
}

func withEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, emailCtxKey{}, email)
}

func emailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(emailCtxKey{}).(string)
	return email, ok && email != ""
}

func callerEmail(c echo.Context) string {
	email, _ := c.Get(emailKey).(string)
	return email
}
