package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the JWT claim set a BearerAuthenticator expects, carrying
// just enough identity for a tool handler to act on via RequestExtra.AuthInfo.
type Claims struct {
	Subject string `json:"sub"`
	jwt.RegisteredClaims
}

// BearerAuthenticator validates the Authorization: Bearer header on
// inbound streamable-HTTP requests against an HMAC secret, the same
// scheme the stdio/HTTP examples use for single-tenant deployments.
// It is wired into httptransport.Config.Authenticate.
type BearerAuthenticator struct {
	secret []byte
}

func NewBearerAuthenticator(secret []byte) *BearerAuthenticator {
	return &BearerAuthenticator{secret: secret}
}

// Authenticate extracts and validates the bearer token, returning the
// parsed Claims as the AuthInfo attached to the request's RequestExtra.
func (a *BearerAuthenticator) Authenticate(r *http.Request) (interface{}, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, fmt.Errorf("auth: missing Authorization header")
	}
	tokenString := strings.TrimPrefix(header, "Bearer ")
	if tokenString == header {
		return nil, fmt.Errorf("auth: Authorization header is not a bearer token")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("auth: token rejected")
	}
	return claims, nil
}
