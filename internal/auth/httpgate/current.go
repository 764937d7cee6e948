package httpgate

import (
	"context"

	"github.com/campusnet/academic-platform/internal/auth"
)

// Current returns the authenticated identity or auth.ErrContextNotPopulated.
func Current(ctx context.Context) (auth.Identity, error) {
	return auth.IdentityFrom(ctx)
}

// UserID returns the subject id of the caller.
func UserID(ctx context.Context) (string, error) {
	identity, err := Current(ctx)
	if err != nil {
		return "", err
	}
	return identity.SubjectID, nil
}

func Username(ctx context.Context) (string, error) {
	identity, err := Current(ctx)
	if err != nil {
		return "", err
	}
	return identity.Username, nil
}

func Role(ctx context.Context) (auth.Role, error) {
	identity, err := Current(ctx)
	if err != nil {
		return "", err
	}
	return identity.Role, nil
}

// Token returns the raw bearer token of the request, for calls to downstream services.
func Token(ctx context.Context) (string, error) {
	sc, ok := auth.SecurityContextFrom(ctx)
	if !ok {
		return "", auth.ErrContextNotPopulated
	}
	return sc.Token, nil
}

// RemoteResolver looks up domain ids the token does not carry.
type RemoteResolver interface {
	Resolve(ctx context.Context, token string, kind auth.DomainKind) (string, error)
}

// DomainIDs resolves role specific ids for the current request. The local claim chain runs
// first; Remote, when set, is only consulted after a DomainIDNotFound.
type DomainIDs struct {
	Remote RemoteResolver
}

func (d DomainIDs) StudentID(ctx context.Context) (string, error) {
	return d.Resolve(ctx, auth.DomainStudent)
}

func (d DomainIDs) TeacherID(ctx context.Context) (string, error) {
	return d.Resolve(ctx, auth.DomainTeacher)
}

// Resolve runs the chain for kind.
func (d DomainIDs) Resolve(ctx context.Context, kind auth.DomainKind) (string, error) {
	sc, ok := auth.SecurityContextFrom(ctx)
	if !ok {
		return "", auth.ErrContextNotPopulated
	}
	id, err := auth.DomainID(sc.Claims, kind)
	if err == nil || d.Remote == nil || !auth.IsKind(err, auth.KindDomainIDNotFound) {
		return id, err
	}
	return d.Remote.Resolve(ctx, sc.Token, kind)
}
