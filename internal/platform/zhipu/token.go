package zhipu

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// credential is the long-term API key split into its public id and signing secret.
type credential struct {
	keyID  string
	secret string
}

func parseAPIKey(apiKey string) (credential, error) {
	parts := strings.Split(strings.TrimSpace(apiKey), ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return credential{}, ErrInvalidAPIKey
	}
	return credential{keyID: parts[0], secret: parts[1]}, nil
}

// sign issues a short-lived HS256 bearer token. The platform expects exp and timestamp
// in milliseconds and a sign_type header.
func (c credential) sign(now time.Time, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"api_key":   c.keyID,
		"exp":       now.Add(ttl).UnixMilli(),
		"timestamp": now.UnixMilli(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["sign_type"] = "SIGN"
	return token.SignedString([]byte(c.secret))
}
