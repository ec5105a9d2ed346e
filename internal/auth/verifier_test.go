package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfc-command/ncc/internal/config"
)

const testSecret = "test-secret-key"

func signHS256(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func validClaims(scopes ...interface{}) jwt.MapClaims {
	return jwt.MapClaims{
		"sub":    "operator-1",
		"scopes": scopes,
		"exp":    time.Now().Add(time.Hour).Unix(),
	}
}

func newHS256Verifier(t *testing.T) *Verifier {
	t.Helper()
	v, err := NewVerifier(config.AuthConfig{Enabled: true, Algorithm: AlgHS256, Secret: testSecret})
	require.NoError(t, err)
	return v
}

func TestNewVerifierErrors(t *testing.T) {
	_, err := NewVerifier(config.AuthConfig{Algorithm: AlgHS256})
	assert.ErrorContains(t, err, "secret")

	_, err = NewVerifier(config.AuthConfig{Algorithm: AlgRS256, PublicKeyPEM: "not pem"})
	assert.ErrorContains(t, err, "PEM")

	_, err = NewVerifier(config.AuthConfig{Algorithm: "ES256"})
	assert.ErrorContains(t, err, "unsupported algorithm")
}

func TestVerifyHS256Token(t *testing.T) {
	v := newHS256Verifier(t)

	claims, err := v.VerifyToken(signHS256(t, testSecret, validClaims(ScopeDerive, ScopeRead)))
	require.NoError(t, err)
	assert.Equal(t, "operator-1", claims.Subject)
	assert.Equal(t, []string{ScopeDerive, ScopeRead}, claims.Scopes)
	assert.True(t, claims.HasScope(ScopeRead))
	assert.False(t, claims.HasScope(ScopeTelemetry))
}

func TestVerifyTokenRejects(t *testing.T) {
	v := newHS256Verifier(t)

	expired := validClaims(ScopeRead)
	expired["exp"] = time.Now().Add(-time.Minute).Unix()

	noExp := validClaims(ScopeRead)
	delete(noExp, "exp")

	noSub := validClaims(ScopeRead)
	delete(noSub, "sub")

	tests := map[string]string{
		"empty":         "",
		"garbage":       "not-a-jwt",
		"wrong secret":  signHS256(t, "other-secret", validClaims(ScopeRead)),
		"expired":       signHS256(t, testSecret, expired),
		"no expiry":     signHS256(t, testSecret, noExp),
		"no subject":    signHS256(t, testSecret, noSub),
		"no scopes":     signHS256(t, testSecret, validClaims()),
		"unknown scope": signHS256(t, testSecret, validClaims("admin")),
		"scope type":    signHS256(t, testSecret, validClaims(42)),
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := v.VerifyToken(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestVerifyRS256Token(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	v, err := NewVerifier(config.AuthConfig{Algorithm: AlgRS256, PublicKeyPEM: string(pemKey)})
	require.NoError(t, err)

	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, validClaims(ScopeTelemetry)).SignedString(key)
	require.NoError(t, err)

	claims, err := v.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, []string{ScopeTelemetry}, claims.Scopes)

	// An HS256 token must not pass an RS256 verifier.
	_, err = v.VerifyToken(signHS256(t, testSecret, validClaims(ScopeTelemetry)))
	assert.ErrorIs(t, err, ErrInvalidToken)
}
