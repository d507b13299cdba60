package admin

import (
	"crypto/rsa"

	"github.com/golang-jwt/jwt/v5"
)

// ParseRSAPublicKey parses a PEM-encoded RSA public key, for callers loading
// the key named by Config.AdminJWTPublicKeyPath.
func ParseRSAPublicKey(pem []byte) (*rsa.PublicKey, error) {
	return jwt.ParseRSAPublicKeyFromPEM(pem)
}
