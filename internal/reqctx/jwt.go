package reqctx

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTProvider exposes the claims of an HMAC-signed bearer token in the
// Authorization header. A request without a token has no claims; a token
// that fails verification is an error.
type JWTProvider struct {
	secret []byte
}

// NewJWTProvider returns a provider verifying tokens with secret.
func NewJWTProvider(secret string) *JWTProvider {
	return &JWTProvider{secret: []byte(secret)}
}

func (p *JWTProvider) Annotation() string { return "jwt" }

func (p *JWTProvider) Extract(_ context.Context, key string, r *http.Request) (interface{}, bool, error) {
	if r == nil {
		return nil, false, nil
	}
	tokenStr, ok := bearerToken(r)
	if !ok {
		return nil, false, nil
	}
	claims, err := p.Verify(tokenStr)
	if err != nil {
		return nil, false, err
	}
	v, ok := claims[key]
	return v, ok, nil
}

// Verify checks the token signature and expiry and returns its claims.
func (p *JWTProvider) Verify(tokenStr string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidCredentials
	}
	return claims, nil
}

// Issue signs claims with an expiry ttl from now.
func (p *JWTProvider) Issue(claims jwt.MapClaims, ttl time.Duration) (string, error) {
	now := time.Now()
	all := jwt.MapClaims{
		"iat": jwt.NewNumericDate(now),
		"exp": jwt.NewNumericDate(now.Add(ttl)),
	}
	for k, v := range claims {
		all[k] = v
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, all).SignedString(p.secret)
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", false
	}
	const prefix = "bearer "
	if len(auth) < len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(auth[len(prefix):])
	return token, token != ""
}
