package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims carried by tokens from the identity provider. Role is "client" or
// "operator"; the subject is the client or operator id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func SignHS256(claims Claims, secret string) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func ParseAndVerifyHS256(token, secret string) (*Claims, error) {
	return parse(token, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.SigningMethodHS256.Alg())
}

func VerifyRS256(token string, pubKey *rsa.PublicKey) (*Claims, error) {
	return parse(token, func(t *jwt.Token) (any, error) {
		return pubKey, nil
	}, jwt.SigningMethodRS256.Alg())
}

// Verifier checks bearer tokens against a shared secret, a JWKS endpoint or
// both. RS256 tokens must carry a kid present in the key set.
type Verifier struct {
	Secret string
	JWKS   *JWKSClient
}

func (v Verifier) Verify(token string) (*Claims, error) {
	var algs []string
	if v.Secret != "" {
		algs = append(algs, jwt.SigningMethodHS256.Alg())
	}
	if v.JWKS != nil {
		algs = append(algs, jwt.SigningMethodRS256.Alg())
	}
	if len(algs) == 0 {
		return nil, fmt.Errorf("%w: no verification keys configured", ErrInvalidToken)
	}
	return parse(token, func(t *jwt.Token) (any, error) {
		switch t.Method.Alg() {
		case jwt.SigningMethodHS256.Alg():
			return []byte(v.Secret), nil
		case jwt.SigningMethodRS256.Alg():
			return v.JWKS.Keyfunc(t)
		}
		return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
	}, algs...)
}

func parse(token string, keyFunc jwt.Keyfunc, algs ...string) (*Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, keyFunc,
		jwt.WithValidMethods(algs),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30*time.Second),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return &claims, nil
}
