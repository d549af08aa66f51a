package grantauth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SchemaObject is the narrow contract grantauth consumes from the
// catalog/schema manager (grantauth never looks up objects itself). For
// a routine overload set,
// SpecificRoutines returns every concrete overload; for anything else it
// returns nil.
type SchemaObject interface {
	Name() string
	Owner() string
	SpecificRoutines() []SchemaObject
}

// Session is the narrow contract grantauth consumes from session
// management (also out of scope per §1): the current authenticated
// principal's name, and a sink for non-fatal warnings such as the
// partial-grant W_01007 condition.
type Session interface {
	AddWarning(err error)
	CurrentUser() string
}

// TokenClaims mirrors the JWT claims shape a caller's session layer uses
// to identify the current principal. grantauth does not issue tokens or
// manage sessions itself (§1); JWTSessionSource is a thin adapter that
// lets an HMAC-signed bearer token stand in for a Session.
type TokenClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// JWTSessionSource implements Session by reading the subject claim out of
// a JWT. NewJWTSessionSource checks the token's HMAC signature and expiry
// before any identity is extracted from it.
type JWTSessionSource struct {
	claims   *TokenClaims
	warnings []error
}

// NewJWTSessionSource parses tokenString with the given HMAC secret and
// returns a Session backed by its subject claim.
func NewJWTSessionSource(tokenString string, secret []byte) (*JWTSessionSource, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("grantauth: unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("grantauth: invalid session token")
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return nil, fmt.Errorf("grantauth: session token expired")
	}
	return &JWTSessionSource{claims: claims}, nil
}

// CurrentUser returns the token's subject, falling back to the
// grantauth-specific UserID claim when Subject is empty.
func (s *JWTSessionSource) CurrentUser() string {
	if s.claims.Subject != "" {
		return s.claims.Subject
	}
	return s.claims.UserID
}

// AddWarning records a non-fatal warning for later inspection by the
// caller (e.g. surfaced back to a SQL client). grantauth itself never
// reads this slice; Warnings exists purely for adapters that need to
// collect it without engine-specific plumbing.
func (s *JWTSessionSource) AddWarning(err error) {
	s.warnings = append(s.warnings, err)
}

// Warnings returns every warning recorded via AddWarning, in order.
func (s *JWTSessionSource) Warnings() []error {
	return s.warnings
}
