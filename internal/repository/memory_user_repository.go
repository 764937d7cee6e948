package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/campusnet/academic-platform/internal/auth"
	"github.com/campusnet/academic-platform/internal/domain"
)

// ErrDuplicateUser is returned by the in-memory directory for a taken id or username.
var ErrDuplicateUser = errors.New("user already exists")

type memoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]domain.User
	now   func() time.Time
}

// NewMemoryUserRepository returns a directory kept in process memory, used when no database
// is configured.
func NewMemoryUserRepository(seed ...domain.User) UserRepository {
	r := &memoryUserRepository{users: make(map[string]domain.User), now: time.Now}
	for i := range seed {
		_ = r.Create(context.Background(), &seed[i])
	}
	return r
}

func (r *memoryUserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; ok {
		return ErrDuplicateUser
	}
	for _, existing := range r.users {
		if existing.Username == user.Username {
			return ErrDuplicateUser
		}
	}
	now := r.now()
	user.CreatedAt, user.UpdatedAt = now, now
	if user.Status == "" {
		user.Status = domain.UserStatusActive
	}
	r.users[user.ID] = *user
	return nil
}

func (r *memoryUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

func (r *memoryUserRepository) List(_ context.Context, filter UserFilter) ([]domain.User, error) {
	filter = filter.normalized()
	r.mu.RLock()
	users := make([]domain.User, 0, len(r.users))
	for _, user := range r.users {
		if filter.Role == "" || user.Role == filter.Role {
			users = append(users, user)
		}
	}
	r.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	if filter.Offset >= len(users) {
		return []domain.User{}, nil
	}
	users = users[filter.Offset:]
	if len(users) > filter.Limit {
		users = users[:filter.Limit]
	}
	return users, nil
}

func (r *memoryUserRepository) UpdateRole(_ context.Context, id string, role auth.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.Role = role
	user.UpdatedAt = r.now()
	r.users[id] = user
	return nil
}

func (r *memoryUserRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.users, id)
	return nil
}
