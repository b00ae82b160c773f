// Package claims peeks inside a stored access token without verifying its
// signature. The session core trusts tokens once the identity service has
// resolved them; peeking exists only to short-circuit hydration for tokens
// that are already expired by local clock, saving an identity round-trip.
//
// Nothing read here is ever treated as authoritative: the role and subject
// used by the application always come from the resolved user record, not
// from the token.
package claims

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformed is returned when the token cannot be parsed as a JWT.
var ErrMalformed = errors.New("malformed access token")

type accessClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Peeked holds the unverified claims read from an access token. ExpiresAt
// is zero when the token carries no expiry claim.
type Peeked struct {
	Subject   string
	Role      string
	ExpiresAt time.Time
}

// Expired reports whether the token was expired at now. Tokens without an
// expiry claim never report expired; the identity service is the judge of
// those.
func (p *Peeked) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt)
}

// Peek decodes token without signature verification and returns its
// subject, role claim, and expiry.
func Peek(token string) (*Peeked, error) {
	var ac accessClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &ac); err != nil {
		return nil, errors.Join(ErrMalformed, err)
	}
	p := &Peeked{Subject: ac.Subject, Role: ac.Role}
	if ac.ExpiresAt != nil {
		p.ExpiresAt = ac.ExpiresAt.Time
	}
	return p, nil
}
