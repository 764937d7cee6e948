package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusnet/academic-platform/internal/auth/authtest"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func keyFile(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "public.pem")
	require.NoError(t, os.WriteFile(p, authtest.Shared(t).PublicPEM(t), 0o600))
	return p
}

func TestReadToken(t *testing.T) {
	t.Setenv("AUTHCTL_TOKEN", "")

	tok, err := readToken([]string{"abc"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc", tok)

	tok, err = readToken(nil, strings.NewReader("Bearer xyz\n"))
	require.NoError(t, err)
	assert.Equal(t, "Bearer xyz", tok)

	_, err = readToken(nil, strings.NewReader("  \n"))
	assert.Error(t, err)

	t.Setenv("AUTHCTL_TOKEN", "from-env")
	tok, err = readToken(nil, strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, "Bearer from-env", tok)
}

func TestVerifyPrintsIdentity(t *testing.T) {
	t.Setenv("AUTHCTL_TOKEN", "")
	issuer := authtest.Shared(t)
	token := issuer.Token(t, "u-42", "teacher", map[string]any{"username": "ada", "teacherId": 7})

	out, err := run(t, "", "--public-key", keyFile(t), "verify", token)
	require.NoError(t, err)
	assert.Contains(t, out, "authenticated")
	assert.Contains(t, out, "ROLE_TEACHER")
	assert.Contains(t, out, "ada")
	assert.Regexp(t, `TEACHER ID\s+7`, out)
	assert.Contains(t, out, "domain_id_not_found")
}

func TestVerifyRejections(t *testing.T) {
	t.Setenv("AUTHCTL_TOKEN", "")
	issuer := authtest.Shared(t)
	keys := keyFile(t)

	out, err := run(t, "", "--public-key", keys, "verify", "not-a-jwt")
	require.Error(t, err)
	assert.Contains(t, out, "401")

	student := issuer.Token(t, "u-1", "STUDENT", nil)
	out, err = run(t, "", "--public-key", keys, "verify", "--role", "admin", student)
	require.Error(t, err)
	assert.Contains(t, out, "403")

	_, err = run(t, "", "--public-key", keys, "verify", "--role", "janitor", student)
	assert.ErrorContains(t, err, "unknown role")
}

func TestPublicCommand(t *testing.T) {
	t.Setenv("AUTH_PUBLIC_PATHS", "")
	out, err := run(t, "", "public", "/health/live", "/api/users/me")
	require.NoError(t, err)
	assert.Regexp(t, `/health/live\s+public`, out)
	assert.Regexp(t, `/api/users/me\s+protected`, out)
}
