// Package identity assembles the gate capabilities from configuration, identically for every
// process so edge and service agree on keys, skew and public paths.
package identity

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/campusnet/academic-platform/internal/auth"
	"github.com/campusnet/academic-platform/internal/config"
)

// Stack is the set of capabilities a gate is built from.
type Stack struct {
	Codec    *auth.Codec
	Resolver *auth.Resolver
	Public   *auth.PathList
}

// Gate builds a gate over the stack, optionally widening the public list.
func (s Stack) Gate(extraPublic ...auth.PathMatcher) *auth.Gate {
	matchers := append([]auth.PathMatcher{s.Public}, extraPublic...)
	return auth.NewGate(auth.AnyOf(matchers...), s.Codec, s.Resolver)
}

// Build loads keys and assembles the stack. With LazyKeys the key material is decoded on the
// first verification instead; a failure then surfaces as an internal error per request.
func Build(ctx context.Context, cfg config.AuthConfig, logger *zap.Logger) (Stack, error) {
	source := KeySource(cfg)

	var keys auth.KeyProvider
	if cfg.LazyKeys {
		keys = auth.NewLazyKeys(func() (*auth.KeySet, error) {
			loadCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			ks, err := source.Load(loadCtx)
			if err != nil {
				logger.Error("verification keys unavailable", zap.String("cause", auth.CauseKeyUnavailable), zap.Error(err))
				return nil, err
			}
			logger.Info("verification keys loaded", zap.Int("keys", ks.Len()))
			return ks, nil
		})
	} else {
		ks, err := source.Load(ctx)
		if err != nil {
			return Stack{}, fmt.Errorf("load verification keys: %w", err)
		}
		logger.Info("verification keys loaded", zap.Int("keys", ks.Len()))
		keys = auth.StaticKeys(ks)
	}

	return Stack{
		Codec:    auth.NewCodec(keys, auth.WithClockSkew(cfg.ClockSkew())),
		Resolver: auth.NewResolver(auth.WithStrictRoles(cfg.StrictRoles), auth.WithToleratedRoles(auth.ParseRoles(cfg.ToleratedRoles...)...)),
		Public:   PublicPaths(cfg),
	}, nil
}

// PublicPaths compiles the configured allow-list, falling back to the defaults.
func PublicPaths(cfg config.AuthConfig) *auth.PathList {
	if len(cfg.PublicPaths) > 0 {
		return auth.NewPathList(cfg.PublicPaths...)
	}
	return auth.NewPathList(auth.DefaultPublicPaths...)
}

// KeySource maps configuration onto a key source.
func KeySource(cfg config.AuthConfig) auth.KeySource {
	return auth.KeySource{
		PEM:      cfg.PublicKeyPEM,
		PEMPath:  cfg.PublicKeyPath,
		JWKSPath: cfg.JWKSPath,
		JWKSURL:  cfg.JWKSURL,
	}
}
