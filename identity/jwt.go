package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/xraph/metered/id"
	"github.com/xraph/metered/user"
)

// Claims is the JWT claim set Metered issues and accepts. The subject is
// the user's TypeID string; the role rides in a private claim.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// JWT is a Provider backed by HS256-signed bearer tokens.
type JWT struct {
	secret   []byte
	issuer   string
	lifetime time.Duration
}

// JWTOption configures a JWT provider.
type JWTOption func(*JWT)

// WithIssuer sets the expected iss claim. Empty disables the check.
func WithIssuer(issuer string) JWTOption {
	return func(p *JWT) { p.issuer = issuer }
}

// WithLifetime sets the validity window used by Issue.
func WithLifetime(d time.Duration) JWTOption {
	return func(p *JWT) { p.lifetime = d }
}

// NewJWT creates a JWT provider with the given signing secret.
func NewJWT(secret []byte, opts ...JWTOption) *JWT {
	p := &JWT{
		secret:   secret,
		lifetime: time.Hour,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Issue mints a signed token for the given user. Provided so that callers
// operating Metered standalone have a matching token source; gateways with
// their own identity plane only need Resolve.
func (p *JWT) Issue(userID id.UserID, role user.Role) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.lifetime)),
		},
		Role: string(role),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(p.secret)
}

// Resolve implements Provider. Any parse, signature, expiry or claim
// failure maps to ErrUnauthenticated.
func (p *JWT) Resolve(_ context.Context, credential string) (Identity, error) {
	parseOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if p.issuer != "" {
		parseOpts = append(parseOpts, jwt.WithIssuer(p.issuer))
	}

	token, err := jwt.ParseWithClaims(credential, &Claims{}, func(_ *jwt.Token) (any, error) {
		return p.secret, nil
	}, parseOpts...)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Identity{}, ErrUnauthenticated
	}

	userID, err := id.ParseUserID(claims.Subject)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: bad subject", ErrUnauthenticated)
	}

	role := user.Role(claims.Role)
	if !role.Valid() {
		role = user.RoleUser
	}

	return Identity{UserID: userID, Role: role}, nil
}
