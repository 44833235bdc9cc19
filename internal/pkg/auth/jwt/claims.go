package jwt

import "github.com/golang-jwt/jwt"

// Claims is the payload of the access token the backend issues at login.
// The client never verifies the signature; it only reads who the token belongs to
// and when it expires.
type Claims struct {
	jwt.StandardClaims

	// UserID is the backend's identifier for the signed-in user.
	UserID string `json:"user_id"`

	// Username is the login name the token was issued for.
	Username string `json:"username"`
}
