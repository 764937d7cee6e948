package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/campusnet/academic-platform/internal/auth"
	"github.com/campusnet/academic-platform/internal/domain"
	"github.com/campusnet/academic-platform/internal/domainid"
	"github.com/campusnet/academic-platform/internal/events"
	"github.com/campusnet/academic-platform/internal/repository"
	apperrors "github.com/campusnet/academic-platform/pkg/util"
)

// UserService holds the business rules of the user directory. Route level role checks run
// before it; the rules here depend on the data, such as who is being changed.
type UserService struct {
	users      repository.UserRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// UserDependencies bundles collaborators for the user service.
type UserDependencies struct {
	UserRepo   repository.UserRepository
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewUserService builds the service.
func NewUserService(deps UserDependencies) *UserService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: deps.UserRepo, dispatcher: deps.Dispatcher, logger: logger}
}

// Profile returns the directory entry of the caller. A suspended account is refused even
// though its token still verifies.
func (s *UserService) Profile(ctx context.Context, caller auth.Identity) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, caller.SubjectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": caller.SubjectID})
		}
		return nil, apperrors.MapError(err)
	}
	if err := checkActive(user); err != nil {
		return nil, err
	}
	return user, nil
}

func checkActive(user *domain.User) error {
	if user.Status == domain.UserStatusSuspended {
		return apperrors.NewForbidden("account suspended")
	}
	return nil
}

// List returns a page of the directory.
func (s *UserService) List(ctx context.Context, filter repository.UserFilter) ([]domain.User, error) {
	if filter.Role != "" {
		filter.Role = auth.NormalizeRole(string(filter.Role))
	}
	users, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

// AssignRole changes the role of a user. Only roles of the closed set may be assigned.
func (s *UserService) AssignRole(ctx context.Context, caller auth.Identity, userID, rawRole string) (*domain.User, error) {
	role := auth.NormalizeRole(rawRole)
	if !role.Known() {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": rawRole})
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": userID})
		}
		return nil, apperrors.MapError(err)
	}
	if caller.SubjectID == userID && role != caller.Role {
		return nil, apperrors.NewConflict("cannot change your own role", map[string]any{"user_id": userID})
	}

	oldRole := user.Role
	if oldRole == role {
		return user, nil
	}
	if err := s.users.UpdateRole(ctx, userID, role); err != nil {
		return nil, apperrors.MapError(err)
	}
	user.Role = role

	s.logger.Info("role assigned",
		zap.String("actor_id", caller.SubjectID),
		zap.String("user_id", userID),
		zap.String("old_role", oldRole.String()),
		zap.String("new_role", role.String()),
	)
	s.publish(ctx, events.NewEvent(events.EventRoleAssigned, actorOf(caller), "", events.RoleAssignedPayload{
		UserID:  userID,
		OldRole: oldRole.String(),
		NewRole: role.String(),
	}))
	return user, nil
}

// DeleteUser removes a user. Callers cannot delete themselves, and only a super admin may
// delete another super admin.
func (s *UserService) DeleteUser(ctx context.Context, caller auth.Identity, userID string) error {
	if caller.SubjectID == userID {
		return apperrors.NewConflict("cannot delete your own account", map[string]any{"user_id": userID})
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("user", map[string]any{"user_id": userID})
		}
		return apperrors.MapError(err)
	}
	if user.Role == auth.RoleSuperAdmin && caller.Role != auth.RoleSuperAdmin {
		return apperrors.NewForbidden(fmt.Sprintf("role %s cannot delete a super admin", caller.Role.Name()))
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		return apperrors.MapError(err)
	}

	s.logger.Info("user deleted", zap.String("actor_id", caller.SubjectID), zap.String("user_id", userID))
	s.publish(ctx, events.NewEvent(events.EventUserDeleted, actorOf(caller), "", events.UserDeletedPayload{
		UserID:   userID,
		Username: user.Username,
	}))
	return nil
}

// DomainIDs returns the role specific ids recorded for the caller. A caller without any is
// reported as not found so remote lookups map it to DomainIDNotFound.
func (s *UserService) DomainIDs(ctx context.Context, caller auth.Identity) (domainid.Response, error) {
	user, err := s.users.GetByID(ctx, caller.SubjectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domainid.Response{}, apperrors.NewNotFound("domain ids", map[string]any{"user_id": caller.SubjectID})
		}
		return domainid.Response{}, apperrors.MapError(err)
	}
	if err := checkActive(user); err != nil {
		return domainid.Response{}, err
	}
	studentID, teacherID := user.DomainIDs()
	if studentID == "" && teacherID == "" {
		return domainid.Response{}, apperrors.NewNotFound("domain ids", map[string]any{"user_id": caller.SubjectID})
	}
	return domainid.Response{StudentID: studentID, TeacherID: teacherID}, nil
}

func (s *UserService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("audit event handler failed", zap.String("type", string(event.Type)), zap.Error(err))
	}
}

func actorOf(identity auth.Identity) events.Actor {
	return events.Actor{SubjectID: identity.SubjectID, Role: identity.Role.String()}
}
