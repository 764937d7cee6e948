package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/campusnet/academic-platform/internal/auth"
	"github.com/campusnet/academic-platform/internal/config"
	"github.com/campusnet/academic-platform/internal/identity"
)

func newPublicCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "public <path>...",
		Short: "Report whether paths bypass authentication",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			matcher := identity.PublicPaths(cfg.Auth)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PATH\tACCESS")
			for _, p := range args {
				fmt.Fprintf(tw, "%s\t%s\n", p, access(matcher, p))
			}
			return tw.Flush()
		},
	}
}

func access(m auth.PathMatcher, p string) string {
	if m.Match(p) {
		return "public"
	}
	return "protected"
}
