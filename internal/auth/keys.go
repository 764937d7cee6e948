package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// ErrUnknownKey is returned when a token names a kid that is not in the key set.
var ErrUnknownKey = errors.New("unknown signing key")

// KeyProvider supplies verification keys by key id.
type KeyProvider interface {
	PublicKey(kid string) (*rsa.PublicKey, error)
}

// KeySet is an immutable set of RSA public keys. Tokens without a kid use the default key.
type KeySet struct {
	byID     map[string]*rsa.PublicKey
	fallback *rsa.PublicKey
}

// NewKeySet builds a key set. def may be nil when every token carries a kid.
func NewKeySet(def *rsa.PublicKey, byID map[string]*rsa.PublicKey) *KeySet {
	ks := &KeySet{fallback: def, byID: make(map[string]*rsa.PublicKey, len(byID))}
	for kid, key := range byID {
		if key != nil {
			ks.byID[kid] = key
		}
	}
	if ks.fallback == nil && len(ks.byID) == 1 {
		for _, key := range ks.byID {
			ks.fallback = key
		}
	}
	return ks
}

// Len reports the number of distinct keys.
func (ks *KeySet) Len() int {
	if ks == nil {
		return 0
	}
	n := len(ks.byID)
	if ks.fallback != nil {
		found := false
		for _, key := range ks.byID {
			if key.Equal(ks.fallback) {
				found = true
				break
			}
		}
		if !found {
			n++
		}
	}
	return n
}

// PublicKey implements KeyProvider.
func (ks *KeySet) PublicKey(kid string) (*rsa.PublicKey, error) {
	if ks == nil {
		return nil, newInternal(CauseKeyUnavailable, errors.New("no key set"))
	}
	if kid != "" {
		if key, ok := ks.byID[kid]; ok {
			return key, nil
		}
		if len(ks.byID) > 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownKey, kid)
		}
	}
	if ks.fallback == nil {
		return nil, ErrUnknownKey
	}
	return ks.fallback, nil
}

// StaticKeys returns a provider over keys parsed at process start.
func StaticKeys(ks *KeySet) KeyProvider {
	return ks
}

// LazyKeys loads keys on first use. Concurrent first callers share a single load;
// the outcome, including a failure, is kept for the process lifetime.
type LazyKeys struct {
	load func() (*KeySet, error)
}

// NewLazyKeys wraps loader so it runs at most once.
func NewLazyKeys(loader func() (*KeySet, error)) *LazyKeys {
	return &LazyKeys{load: sync.OnceValues(loader)}
}

// PublicKey implements KeyProvider.
func (l *LazyKeys) PublicKey(kid string) (*rsa.PublicKey, error) {
	ks, err := l.load()
	if err != nil {
		return nil, newInternal(CauseKeyUnavailable, err)
	}
	return ks.PublicKey(kid)
}

// ParsePEM decodes a PEM encoded RSA public key (PKIX or PKCS1).
func ParsePEM(data []byte) (*KeySet, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("parse rsa public key: %w", err)
	}
	return NewKeySet(key, nil), nil
}

// ParseJWKS decodes a JWKS document, keeping RSA keys only.
func ParseJWKS(data []byte) (*KeySet, error) {
	set, err := jwk.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse jwks: %w", err)
	}
	return keySetFromJWK(set)
}

// FetchJWKS downloads and decodes a JWKS document.
func FetchJWKS(ctx context.Context, url string, client *http.Client) (*KeySet, error) {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	set, err := jwk.Fetch(ctx, url, jwk.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("fetch jwks %s: %w", url, err)
	}
	return keySetFromJWK(set)
}

func keySetFromJWK(set jwk.Set) (*KeySet, error) {
	byID := make(map[string]*rsa.PublicKey, set.Len())
	var anonymous *rsa.PublicKey
	for i := 0; i < set.Len(); i++ {
		key, ok := set.Key(i)
		if !ok {
			continue
		}
		var raw any
		if err := key.Raw(&raw); err != nil {
			return nil, fmt.Errorf("decode jwk %q: %w", key.KeyID(), err)
		}
		pub, ok := raw.(*rsa.PublicKey)
		if !ok {
			continue
		}
		if kid := key.KeyID(); kid != "" {
			byID[kid] = pub
		} else if anonymous == nil {
			anonymous = pub
		}
	}
	if len(byID) == 0 && anonymous == nil {
		return nil, errors.New("jwks contains no rsa keys")
	}
	return NewKeySet(anonymous, byID), nil
}

// KeySource describes where verification keys come from. The first populated field wins,
// except JWKS sources which are merged with a PEM default key when both are given.
type KeySource struct {
	PEM         string
	PEMPath     string
	JWKSPath    string
	JWKSURL     string
	HTTPTimeout time.Duration
}

// Empty reports whether no source is configured.
func (s KeySource) Empty() bool {
	return strings.TrimSpace(s.PEM) == "" && s.PEMPath == "" && s.JWKSPath == "" && s.JWKSURL == ""
}

// Load reads and decodes the configured keys.
func (s KeySource) Load(ctx context.Context) (*KeySet, error) {
	if s.Empty() {
		return nil, errors.New("no public key configured")
	}

	var def *rsa.PublicKey
	switch {
	case strings.TrimSpace(s.PEM) != "":
		ks, err := ParsePEM([]byte(s.PEM))
		if err != nil {
			return nil, err
		}
		def = ks.fallback
	case s.PEMPath != "":
		data, err := os.ReadFile(s.PEMPath)
		if err != nil {
			return nil, fmt.Errorf("read public key: %w", err)
		}
		ks, err := ParsePEM(data)
		if err != nil {
			return nil, err
		}
		def = ks.fallback
	}

	var jwks *KeySet
	switch {
	case s.JWKSPath != "":
		data, err := os.ReadFile(s.JWKSPath)
		if err != nil {
			return nil, fmt.Errorf("read jwks: %w", err)
		}
		if jwks, err = ParseJWKS(data); err != nil {
			return nil, err
		}
	case s.JWKSURL != "":
		timeout := s.HTTPTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		var err error
		jwks, err = FetchJWKS(ctx, s.JWKSURL, &http.Client{Timeout: timeout})
		if err != nil {
			return nil, err
		}
	}

	if jwks == nil {
		return NewKeySet(def, nil), nil
	}
	if def == nil {
		return jwks, nil
	}
	return NewKeySet(def, jwks.byID), nil
}
