package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusnet/academic-platform/internal/auth"
	"github.com/campusnet/academic-platform/internal/domain"
	"github.com/campusnet/academic-platform/internal/events"
	"github.com/campusnet/academic-platform/internal/repository"
	apperrors "github.com/campusnet/academic-platform/pkg/util"
)

func newTestService(t *testing.T) (*UserService, *[]events.Event) {
	t.Helper()
	repo := repository.NewMemoryUserRepository(
		domain.User{ID: "sa-1", Username: "root", Role: auth.RoleSuperAdmin},
		domain.User{ID: "sa-2", Username: "root2", Role: auth.RoleSuperAdmin},
		domain.User{ID: "a-1", Username: "admin", Role: auth.RoleAdmin},
		domain.User{ID: "t-1", Username: "turing", Role: auth.RoleTeacher, TeacherID: "T-100"},
		domain.User{ID: "s-1", Username: "sam", Role: auth.RoleStudent, StudentID: "S-200"},
		domain.User{ID: "x-1", Username: "nobody", Role: auth.RoleStudent},
		domain.User{ID: "s-9", Username: "gone", Role: auth.RoleStudent, StudentID: "S-900", Status: domain.UserStatusSuspended},
	)
	dispatcher := events.NewInMemoryDispatcher()
	var published []events.Event
	record := func(_ context.Context, e events.Event) error {
		published = append(published, e)
		return nil
	}
	dispatcher.Subscribe(events.EventRoleAssigned, record)
	dispatcher.Subscribe(events.EventUserDeleted, record)
	return NewUserService(UserDependencies{UserRepo: repo, Dispatcher: dispatcher}), &published
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var de *apperrors.DomainError
	require.True(t, errors.As(err, &de), "expected DomainError, got %v", err)
	return de.HTTPStatus
}

var (
	superAdmin = auth.Identity{SubjectID: "sa-1", Role: auth.RoleSuperAdmin}
	admin      = auth.Identity{SubjectID: "a-1", Role: auth.RoleAdmin}
	teacher    = auth.Identity{SubjectID: "t-1", Role: auth.RoleTeacher}
)

func TestProfile(t *testing.T) {
	svc, _ := newTestService(t)

	user, err := svc.Profile(context.Background(), teacher)
	require.NoError(t, err)
	assert.Equal(t, "turing", user.Username)

	_, err = svc.Profile(context.Background(), auth.Identity{SubjectID: "ghost", Role: auth.RoleStudent})
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestAssignRole(t *testing.T) {
	svc, published := newTestService(t)
	ctx := context.Background()

	user, err := svc.AssignRole(ctx, superAdmin, "s-1", "teacher")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleTeacher, user.Role)
	require.Len(t, *published, 1)
	assert.Equal(t, events.EventRoleAssigned, (*published)[0].Type)

	_, err = svc.AssignRole(ctx, superAdmin, "s-1", "PRINCIPAL")
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	_, err = svc.AssignRole(ctx, superAdmin, "ghost", "ADMIN")
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	_, err = svc.AssignRole(ctx, superAdmin, "sa-1", "ADMIN")
	assert.Equal(t, http.StatusConflict, statusOf(t, err))

	_, err = svc.AssignRole(ctx, superAdmin, "t-1", "ROLE_TEACHER")
	require.NoError(t, err)
	assert.Len(t, *published, 1, "no event for an unchanged role")
}

func TestDeleteUser(t *testing.T) {
	svc, published := newTestService(t)
	ctx := context.Background()

	err := svc.DeleteUser(ctx, admin, "a-1")
	assert.Equal(t, http.StatusConflict, statusOf(t, err))
	assert.Contains(t, err.Error(), "cannot delete your own account")

	err = svc.DeleteUser(ctx, admin, "sa-2")
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))

	require.NoError(t, svc.DeleteUser(ctx, admin, "s-1"))
	require.NoError(t, svc.DeleteUser(ctx, superAdmin, "sa-2"))
	assert.Len(t, *published, 2)

	err = svc.DeleteUser(ctx, admin, "s-1")
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestDomainIDs(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	ids, err := svc.DomainIDs(ctx, teacher)
	require.NoError(t, err)
	assert.Equal(t, "T-100", ids.TeacherID)
	assert.Empty(t, ids.StudentID)

	_, err = svc.DomainIDs(ctx, auth.Identity{SubjectID: "x-1", Role: auth.RoleStudent})
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestListNormalizesRoleFilter(t *testing.T) {
	svc, _ := newTestService(t)

	users, err := svc.List(context.Background(), repository.UserFilter{Role: "super_admin"})
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestSuspendedAccountIsRefused(t *testing.T) {
	svc, _ := newTestService(t)
	suspended := auth.Identity{SubjectID: "s-9", Role: auth.RoleStudent}

	_, err := svc.Profile(context.Background(), suspended)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))

	_, err = svc.DomainIDs(context.Background(), suspended)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))
}
