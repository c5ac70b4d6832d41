package sqlite

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"shopflow/internal/domain"
	"shopflow/internal/repository"
)

const userColumns = `id, email, password_hash, name, role, created_at`

// UserRepo implements repository.UserRepository
type UserRepo struct {
	db *DB
}

// NewUserRepo creates a new UserRepo
func NewUserRepo(db *DB) repository.UserRepository {
	return &UserRepo{db: db}
}

func (r *UserRepo) Create(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = newID()
	}
	if user.Role == "" {
		user.Role = domain.RoleStaff
	}
	user.CreatedAt = now()
	query := `INSERT INTO users (` + userColumns + `) VALUES (:id, :email, :password_hash, :name, :role, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return getOne[domain.User](ctx, r.db, "user", `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return getOne[domain.User](ctx, r.db, "user by email", `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

// roleFilter narrows a users query to one role when role is set
func roleFilter(role string) (string, []interface{}) {
	if role == "" {
		return "", nil
	}
	return ` WHERE role = ?`, []interface{}{role}
}

func (r *UserRepo) List(ctx context.Context, role string, limit, offset int) ([]domain.User, error) {
	where, args := roleFilter(role)
	query := `SELECT ` + userColumns + ` FROM users` + where + ` ORDER BY name, email LIMIT ? OFFSET ?`

	users := []domain.User{}
	if err := r.db.SelectContext(ctx, &users, query, append(args, limit, offset)...); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (r *UserRepo) Count(ctx context.Context, role string) (int, error) {
	where, args := roleFilter(role)
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`+where, args...); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword compares a password with a hash
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
