package domain

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RefreshToken is the long-lived token returned by the login call.
type RefreshToken string

// AccessToken is the short-lived bearer token used on page fetches.
type AccessToken string

// ExpiresAt reads the exp claim when the token happens to be a JWT.
// The signature is not verified; the value is informational only.
func (t AccessToken) ExpiresAt() (time.Time, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(string(t), &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
