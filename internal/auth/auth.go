package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AnonymousOwner marks orders created without a session. Anonymous buyers
// can complete an embedded checkout but cannot list or reorder later.
const AnonymousOwner = "anonymous"

var ErrUnauthorized = errors.New("missing or invalid session")

// Identity is the typed authentication result passed explicitly into core
// operations; it is never recovered from ambient state.
type Identity struct {
	OwnerID   string
	Anonymous bool
}

type Claims struct {
	OwnerID string `json:"owner_id"`
	jwt.RegisteredClaims
}

type Resolver struct {
	Secret string
}

// Require resolves the bearer token or fails with ErrUnauthorized.
func (r *Resolver) Require(req *http.Request) (Identity, error) {
	token := bearerToken(req)
	if token == "" {
		return Identity{}, ErrUnauthorized
	}
	return r.parse(token)
}

// Optional returns the anonymous identity when no token is present; a token
// that is present but invalid is still an error.
func (r *Resolver) Optional(req *http.Request) (Identity, error) {
	token := bearerToken(req)
	if token == "" {
		return Identity{OwnerID: AnonymousOwner, Anonymous: true}, nil
	}
	return r.parse(token)
}

func (r *Resolver) parse(tokenStr string) (Identity, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return []byte(r.Secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return Identity{}, ErrUnauthorized
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.OwnerID == "" {
		return Identity{}, ErrUnauthorized
	}
	return Identity{OwnerID: claims.OwnerID}, nil
}

func GenerateToken(secret, ownerID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		OwnerID: ownerID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func bearerToken(req *http.Request) string {
	h := req.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}
