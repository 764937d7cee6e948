// Package authtest signs RS256 tokens for tests of the identity layer.
package authtest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"sync"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/campusnet/academic-platform/internal/auth"
)

// Issuer holds a private key and signs tokens with it.
type Issuer struct {
	Key *rsa.PrivateKey
	KID string
	Now func() time.Time
}

var sharedKey = sync.OnceValues(func() (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, 2048)
})

// Shared returns an issuer over a key generated once per test binary.
func Shared(t testing.TB) *Issuer {
	t.Helper()
	key, err := sharedKey()
	require.NoError(t, err)
	return &Issuer{Key: key, Now: time.Now}
}

// NewIssuer generates a fresh key, e.g. to sign tokens the shared key set must reject.
func NewIssuer(t testing.TB) *Issuer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return &Issuer{Key: key, Now: time.Now}
}

// KeySet exposes the issuer's public key.
func (i *Issuer) KeySet() *auth.KeySet {
	if i.KID == "" {
		return auth.NewKeySet(&i.Key.PublicKey, nil)
	}
	return auth.NewKeySet(nil, map[string]*rsa.PublicKey{i.KID: &i.Key.PublicKey})
}

// Codec returns a codec that trusts this issuer.
func (i *Issuer) Codec(opts ...auth.CodecOption) *auth.Codec {
	return auth.NewCodec(i.KeySet(), opts...)
}

// PublicPEM encodes the public key as PKIX PEM.
func (i *Issuer) PublicPEM(t testing.TB) []byte {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(&i.Key.PublicKey)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
}

// Sign signs arbitrary claims with RS256.
func (i *Issuer) Sign(t testing.TB, claims jwt.MapClaims) string {
	t.Helper()
	return i.SignWith(t, jwt.SigningMethodRS256, claims)
}

// SignWith signs claims with the given RSA method.
func (i *Issuer) SignWith(t testing.TB, method jwt.SigningMethod, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(method, claims)
	if i.KID != "" {
		token.Header["kid"] = i.KID
	}
	signed, err := token.SignedString(i.Key)
	require.NoError(t, err)
	return signed
}

// Token signs a token for sub/role valid for an hour. extra overrides or adds claims.
func (i *Issuer) Token(t testing.TB, sub, role string, extra map[string]any) string {
	t.Helper()
	now := i.now()
	claims := jwt.MapClaims{
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
	if sub != "" {
		claims["sub"] = sub
	}
	if role != "" {
		claims["role"] = role
	}
	for k, v := range extra {
		if v == nil {
			delete(claims, k)
			continue
		}
		claims[k] = v
	}
	return i.Sign(t, claims)
}

// Bearer is Token formatted as an Authorization header value.
func (i *Issuer) Bearer(t testing.TB, sub, role string, extra map[string]any) string {
	t.Helper()
	return "Bearer " + i.Token(t, sub, role, extra)
}

func (i *Issuer) now() time.Time {
	if i.Now != nil {
		return i.Now()
	}
	return time.Now()
}
