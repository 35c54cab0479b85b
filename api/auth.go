package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// operatorClaims is the minimal claim set an operator token carries —
// there is no user/password account system in this domain (chat identity
// comes from Telegram user ids), so unlike the teacher's TokenService this
// issues one subject per deployment ("operator"), not per account.
type operatorClaims struct {
	jwt.RegisteredClaims
}

// TokenService issues and validates the bearer token that guards the
// operator-facing /state endpoint, adapted from the teacher's
// auth.TokenService with the user/refresh-token machinery stripped down
// to a single static-secret operator credential.
type TokenService struct {
	secret     []byte
	expiration time.Duration
}

// NewTokenService builds a TokenService signing with secret.
func NewTokenService(secret string, expiration time.Duration) *TokenService {
	if expiration == 0 {
		expiration = 24 * time.Hour
	}
	return &TokenService{secret: []byte(secret), expiration: expiration}
}

// IssueOperatorToken mints a bearer token for the "operator" subject.
func (s *TokenService) IssueOperatorToken() (string, error) {
	now := time.Now()
	claims := operatorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "operator",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiration)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *TokenService) validate(tokenString string) error {
	token, err := jwt.ParseWithClaims(tokenString, &operatorClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return fmt.Errorf("invalid operator token")
	}
	return nil
}

// bearerAuth rejects any request without a valid "Authorization: Bearer
// <token>" header signed by tokens. Applied only to the operator-facing
// /state route — health checks and the webhook intake (which carries its
// own shared-secret signature) are never gated by this.
func bearerAuth(tokens *TokenService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(header, prefix) {
				return c.String(http.StatusUnauthorized, "missing bearer token")
			}
			if err := tokens.validate(strings.TrimPrefix(header, prefix)); err != nil {
				return c.String(http.StatusUnauthorized, "invalid bearer token")
			}
			return next(c)
		}
	}
}
