package tokens

import "github.com/golang-jwt/jwt/v5"

// AccessClaims is the payload of a short-lived access token.
type AccessClaims struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a long-lived refresh token. The ID (jti)
// makes every issued token string unique even for the same account and
// expiry second.
type RefreshClaims struct {
	jwt.RegisteredClaims
}
