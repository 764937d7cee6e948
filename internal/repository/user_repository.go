package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusnet/academic-platform/internal/auth"
	"github.com/campusnet/academic-platform/internal/domain"
)

// UserRepository defines persistence access for the user directory. Missing rows are
// reported as pgx.ErrNoRows by every implementation.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	List(ctx context.Context, filter UserFilter) ([]domain.User, error)
	UpdateRole(ctx context.Context, id string, role auth.Role) error
	Delete(ctx context.Context, id string) error
}

// UserFilter narrows List.
type UserFilter struct {
	Role   auth.Role
	Limit  int
	Offset int
}

func (f UserFilter) normalized() UserFilter {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `id, username, email, full_name, role, student_id, teacher_id, status, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (id, username, email, full_name, role, student_id, teacher_id, status)
        VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8)
        RETURNING created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.FullName,
		user.Role,
		user.StudentID,
		user.TeacherID,
		user.Status,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *userRepository) List(ctx context.Context, filter UserFilter) ([]domain.User, error) {
	filter = filter.normalized()
	query := `SELECT ` + userColumns + ` FROM users
        WHERE ($1 = '' OR role = $1)
        ORDER BY username
        LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, string(filter.Role), filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func (r *userRepository) UpdateRole(ctx context.Context, id string, role auth.Role) error {
	const query = `UPDATE users SET role=$1, updated_at=NOW() WHERE id=$2`

	cmd, err := r.pool.Exec(ctx, query, role, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user                 domain.User
		role                 string
		studentID, teacherID *string
	)
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.FullName,
		&role,
		&studentID,
		&teacherID,
		&user.Status,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	user.Role = auth.NormalizeRole(role)
	if studentID != nil {
		user.StudentID = *studentID
	}
	if teacherID != nil {
		user.TeacherID = *teacherID
	}
	return &user, nil
}
