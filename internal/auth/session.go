// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// privateKey and publicKey sign and verify host tokens.
var (
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	// tokenTTL is how long a host token stays valid (0 => never expires).
	tokenTTL time.Duration
)

// ErrWrongGame is returned when a valid token was issued for a different game.
var ErrWrongGame = errors.New("token was issued for another game")

const hostScope = "host"

// Init generates a fresh ed25519 key pair and sets the token lifetime.
func Init(ttl time.Duration) error {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	publicKey, privateKey = pub, priv
	tokenTTL = ttl
	return nil
}

// InitFromPath reads ed25519 private/public keys from file and sets the token lifetime.
func InitFromPath(privatePath, publicPath string, ttl time.Duration) error {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(privateKeyData) != ed25519.PrivateKeySize || len(publicKeyData) != ed25519.PublicKeySize {
		return fmt.Errorf("malformed ed25519 key files")
	}

	privateKey = ed25519.PrivateKey(privateKeyData)
	publicKey = ed25519.PublicKey(publicKeyData)
	tokenTTL = ttl
	return nil
}

// ParseTTL reads the TOKEN_EXPIRE_TIME format: "never", "0" or "" mean no expiry, anything else
// is a Go duration.
func ParseTTL(s string) (time.Duration, error) {
	if s == "never" || s == "0" || s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("failed to parse token expire time: %w", err)
	}
	return d, nil
}

// CreateHostToken signs a token with "sub" = gameCode that proves its holder created the game.
func CreateHostToken(gameCode string) (string, error) {
	if privateKey == nil {
		return "", fmt.Errorf("auth not initialized")
	}
	claims := jwt.MapClaims{
		"sub":   gameCode,
		"scope": hostScope,
		"iat":   time.Now().Unix(),
	}
	if tokenTTL > 0 {
		claims["exp"] = time.Now().Add(tokenTTL).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(privateKey)
}

// ValidateHostToken verifies tokenString and checks it was issued for gameCode.
func ValidateHostToken(tokenString, gameCode string) error {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return fmt.Errorf("invalid token")
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return fmt.Errorf("invalid jwt claims")
	}
	if scope, _ := claims["scope"].(string); scope != hostScope {
		return fmt.Errorf("missing host scope in jwt")
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return fmt.Errorf("missing sub in jwt")
	}
	if sub != gameCode {
		return ErrWrongGame
	}
	return nil
}
