package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/campusnet/academic-platform/internal/auth"
	"github.com/campusnet/academic-platform/internal/config"
	"github.com/campusnet/academic-platform/internal/identity"
)

func newVerifyCmd(keys *keyFlags) *cobra.Command {
	var roles []string

	cmd := &cobra.Command{
		Use:   "verify [token]",
		Short: "Verify a token and print the resolved identity",
		Long: `Verify reads the token from the argument, the AUTHCTL_TOKEN variable or stdin.
A leading "Bearer " is accepted. With --role the identity must hold one of the listed roles.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readToken(args, cmd.InOrStdin())
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			keys.apply(&cfg.Auth)
			if !cfg.Auth.HasKeySource() {
				return errors.New("no key source: pass --public-key, --jwks or --jwks-url")
			}

			stack, err := identity.Build(cmd.Context(), cfg.Auth, zap.NewNop())
			if err != nil {
				return err
			}

			allowed, err := parseRoles(roles)
			if err != nil {
				return err
			}

			gate := stack.Gate()
			out := gate.Authorize(gate.Authenticate(raw), allowed...)
			return printOutcome(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().StringSliceVar(&roles, "role", nil, "required role, repeatable")
	return cmd
}

// readToken normalises the token source into an Authorization header value.
func readToken(args []string, stdin io.Reader) (string, error) {
	var token string
	switch {
	case len(args) == 1:
		token = args[0]
	case os.Getenv("AUTHCTL_TOKEN") != "":
		token = os.Getenv("AUTHCTL_TOKEN")
	default:
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read token: %w", err)
		}
		token = line
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.New("no token given")
	}
	if !strings.HasPrefix(token, "Bearer ") {
		token = "Bearer " + token
	}
	return token, nil
}

func parseRoles(raw []string) ([]auth.Role, error) {
	roles := auth.ParseRoles(raw...)
	for _, role := range roles {
		if !role.Known() {
			return nil, fmt.Errorf("unknown role %q", role.Name())
		}
	}
	return roles, nil
}

func printOutcome(w io.Writer, out auth.Outcome) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "STATE\t%s\n", out.State)

	if !out.Forward() {
		e := auth.AsError(out.Err)
		fmt.Fprintf(tw, "STATUS\t%d\n", out.Status())
		fmt.Fprintf(tw, "KIND\t%s\n", e.Kind)
		if e.Cause != "" {
			fmt.Fprintf(tw, "CAUSE\t%s\n", e.Cause)
		}
		fmt.Fprintf(tw, "MESSAGE\t%s\n", e.Message)
		if err := tw.Flush(); err != nil {
			return err
		}
		return out.Err
	}

	sc := out.Security
	fmt.Fprintf(tw, "SUBJECT\t%s\n", sc.Identity.SubjectID)
	fmt.Fprintf(tw, "USERNAME\t%s\n", sc.Identity.Username)
	fmt.Fprintf(tw, "ROLE\t%s\n", sc.Identity.Role)
	if sc.Claims.ExpiresAt != nil {
		fmt.Fprintf(tw, "EXPIRES\t%s\n", sc.Claims.ExpiresAt.Time.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(tw, "STUDENT ID\t%s\n", domainIDOrKind(auth.StudentID(sc.Claims)))
	fmt.Fprintf(tw, "TEACHER ID\t%s\n", domainIDOrKind(auth.TeacherID(sc.Claims)))
	return tw.Flush()
}

func domainIDOrKind(id string, err error) string {
	if err != nil {
		return "-  (" + string(auth.KindOf(err)) + ")"
	}
	return id
}
