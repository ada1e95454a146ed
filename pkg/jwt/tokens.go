package jwt

import (
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

const issuer = "serdo"

// Claims defines JWT payload.
type Claims struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	jwtlib.RegisteredClaims
}

// GenerateToken issues a signed JWT with provided secret and ttl.
func GenerateToken(userID, tenantID, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		TenantID: tenantID,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// Parse validates and extracts claims from token.
func Parse(token string, secret string) (*Claims, error) {
	parsed, err := jwtlib.ParseWithClaims(token, &Claims{}, func(t *jwtlib.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Name}), jwtlib.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, jwtlib.ErrTokenInvalidClaims
	}
	return claims, nil
}

const revealPurpose = "reveal"

// RevealClaims binds a client-held reveal key to the user that proved
// presence. Only a hash of the key travels in the grant.
type RevealClaims struct {
	UserID  string `json:"user_id"`
	KeyHash string `json:"key_hash"`
	Purpose string `json:"purpose"`
	jwtlib.RegisteredClaims
}

// GenerateRevealGrant signs a short-lived grant for keyHash.
func GenerateRevealGrant(userID, keyHash, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := RevealClaims{
		UserID:  userID,
		KeyHash: keyHash,
		Purpose: revealPurpose,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseRevealGrant validates a reveal grant.
func ParseRevealGrant(token, secret string) (*RevealClaims, error) {
	parsed, err := jwtlib.ParseWithClaims(token, &RevealClaims{}, func(t *jwtlib.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Name}), jwtlib.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*RevealClaims)
	if !ok || !parsed.Valid || claims.Purpose != revealPurpose {
		return nil, jwtlib.ErrTokenInvalidClaims
	}
	return claims, nil
}
