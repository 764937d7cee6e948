package main

import (
	"github.com/spf13/cobra"

	"github.com/campusnet/academic-platform/internal/config"
)

type keyFlags struct {
	publicKeyPath string
	jwksPath      string
	jwksURL       string
	skewSeconds   int
}

// apply overrides the environment derived auth settings with any flag that was set.
func (f keyFlags) apply(cfg *config.AuthConfig) {
	if f.publicKeyPath != "" || f.jwksPath != "" || f.jwksURL != "" {
		cfg.PublicKeyPEM = ""
		cfg.PublicKeyPath = f.publicKeyPath
		cfg.JWKSPath = f.jwksPath
		cfg.JWKSURL = f.jwksURL
	}
	if f.skewSeconds >= 0 {
		cfg.ClockSkewSeconds = f.skewSeconds
	}
	cfg.LazyKeys = false
}

func newRootCmd() *cobra.Command {
	var keys keyFlags

	root := &cobra.Command{
		Use:   "authctl",
		Short: "Inspect and verify platform access tokens",
		Long: `authctl verifies bearer tokens against the configured public keys and prints the
identity and domain ids the services would derive from them. Key locations default to the
AUTH_* environment variables and can be overridden with flags.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&keys.publicKeyPath, "public-key", "", "PEM encoded RSA public key file")
	root.PersistentFlags().StringVar(&keys.jwksPath, "jwks", "", "JWKS file")
	root.PersistentFlags().StringVar(&keys.jwksURL, "jwks-url", "", "JWKS endpoint")
	root.PersistentFlags().IntVar(&keys.skewSeconds, "skew", -1, "clock skew in seconds (default from AUTH_CLOCK_SKEW_SECONDS)")

	root.AddCommand(newVerifyCmd(&keys))
	root.AddCommand(newPublicCmd())
	return root
}
