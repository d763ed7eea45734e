package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// VerifierConfig holds configuration for JWT verification.
type VerifierConfig struct {
	// Algorithm is "HS256" or "RS256".
	Algorithm string

	// SecretKey is the HS256 shared secret.
	SecretKey string

	// PublicKeyPEM is the RS256 public key in PEM form.
	PublicKeyPEM string
}

// Verifier verifies bearer JWTs and extracts claims.
type Verifier struct {
	config    VerifierConfig
	publicKey *rsa.PublicKey
}

// NewVerifier creates a new JWT verifier from the given configuration.
func NewVerifier(config VerifierConfig) (*Verifier, error) {
	v := &Verifier{config: config}

	switch config.Algorithm {
	case "HS256":
		if config.SecretKey == "" {
			return nil, fmt.Errorf("HS256 requires a secret key")
		}
	case "RS256":
		if config.PublicKeyPEM == "" {
			return nil, fmt.Errorf("RS256 requires a public key")
		}
		key, err := parsePublicKeyPEM(config.PublicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to parse RS256 public key: %w", err)
		}
		v.publicKey = key
	default:
		return nil, fmt.Errorf("unsupported algorithm %q", config.Algorithm)
	}

	return v, nil
}

// VerifyToken verifies a token string and returns its claims.
func (v *Verifier) VerifyToken(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, v.keyFunc,
		jwt.WithValidMethods([]string{v.config.Algorithm}))
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return claimsFromMap(mapClaims), nil
}

// keyFunc selects the verification key for a parsed token header.
func (v *Verifier) keyFunc(token *jwt.Token) (interface{}, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodHMAC:
		return []byte(v.config.SecretKey), nil
	case *jwt.SigningMethodRSA:
		return v.publicKey, nil
	default:
		return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
	}
}

// claimsFromMap converts JWT map claims into the typed Claims structure.
func claimsFromMap(mapClaims jwt.MapClaims) *Claims {
	claims := &Claims{}

	if sub, ok := mapClaims["sub"].(string); ok {
		claims.Subject = sub
	}
	claims.Roles = stringSliceClaim(mapClaims, "roles")
	claims.Scopes = stringSliceClaim(mapClaims, "scopes")

	return claims
}

// stringSliceClaim extracts a []string claim tolerant of JSON decoding types.
func stringSliceClaim(mapClaims jwt.MapClaims, key string) []string {
	raw, ok := mapClaims[key].([]interface{})
	if !ok {
		return nil
	}

	values := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			values = append(values, s)
		}
	}
	return values
}

// parsePublicKeyPEM parses an RSA public key from PEM data.
func parsePublicKeyPEM(pemData string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	rsaKey, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not RSA")
	}

	return rsaKey, nil
}
