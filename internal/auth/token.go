package auth

import (
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// DefaultClockSkew is the tolerance applied to the expiration check.
const DefaultClockSkew = 30 * time.Second

var rsaMethods = []string{
	jwt.SigningMethodRS256.Alg(),
	jwt.SigningMethodRS384.Alg(),
	jwt.SigningMethodRS512.Alg(),
}

// Verifier turns a compact token into verified claims.
type Verifier interface {
	Verify(token string) (*Claims, error)
}

// Codec verifies RSA signed access tokens.
//
// Signature and structure are checked by the parser with claim validation disabled; expiration
// is then checked once, explicitly, against the configured skew. A token with a good signature
// and a past exp is therefore reported as expired rather than malformed.
type Codec struct {
	keys      KeyProvider
	clockSkew time.Duration
	now       func() time.Time
	parser    *jwt.Parser
}

// CodecOption customises a Codec.
type CodecOption func(*Codec)

// WithClockSkew sets the tolerance applied when checking exp. Negative values are ignored.
func WithClockSkew(skew time.Duration) CodecOption {
	return func(c *Codec) {
		if skew >= 0 {
			c.clockSkew = skew
		}
	}
}

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCodec builds a codec over the given key provider.
func NewCodec(keys KeyProvider, opts ...CodecOption) *Codec {
	c := &Codec{
		keys:      keys,
		clockSkew: DefaultClockSkew,
		now:       time.Now,
		parser: jwt.NewParser(
			jwt.WithValidMethods(rsaMethods),
			jwt.WithoutClaimsValidation(),
			jwt.WithJSONNumber(),
		),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClockSkew returns the configured expiration tolerance.
func (c *Codec) ClockSkew() time.Duration {
	return c.clockSkew
}

// Verify checks signature then expiration and returns the claims. Claims are never
// returned on error.
func (c *Codec) Verify(token string) (*Claims, error) {
	if strings.TrimSpace(token) == "" {
		return nil, newError(KindMalformedToken, errors.New("token is empty"))
	}
	if c.keys == nil {
		return nil, newInternal(CauseKeyUnavailable, errors.New("codec has no key provider"))
	}

	claims := &Claims{}
	parsed, err := c.parser.ParseWithClaims(token, claims, c.keyFunc)
	if err != nil {
		return nil, classifyParseError(err)
	}
	if !parsed.Valid {
		return nil, newError(KindSignatureInvalid, errors.New("token not valid"))
	}

	if claims.ExpiresAt == nil {
		return nil, newError(KindMalformedToken, errors.New("missing exp claim"))
	}
	if c.now().After(claims.ExpiresAt.Time.Add(c.clockSkew)) {
		return nil, newError(KindExpired, jwt.ErrTokenExpired)
	}
	return claims, nil
}

func (c *Codec) keyFunc(t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	return c.keys.PublicKey(kid)
}

func classifyParseError(err error) error {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr
	}
	switch {
	case errors.Is(err, ErrUnknownKey):
		return newError(KindSignatureInvalid, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return newError(KindMalformedToken, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return newError(KindSignatureInvalid, err)
	}
	return newError(KindMalformedToken, err)
}
