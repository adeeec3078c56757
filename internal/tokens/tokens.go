package tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/botdash/botdash/internal/chatbot"
)

// Issue creates an HS256 access token for caller. issuer may be empty.
func Issue(secret, issuer string, caller chatbot.Caller, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("signing secret is empty")
	}
	if caller.ID == "" {
		return "", errors.New("caller id is empty")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": caller.ID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if caller.Email != "" {
		claims["email"] = caller.Email
	}
	if issuer != "" {
		claims["iss"] = issuer
	}
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return jt.SignedString([]byte(secret))
}
