package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/research-archive-api/internal/models"
)

// UserRepository provides database access for accounts and their roles.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByName returns a user by login name with roles loaded.
func (r *UserRepository) FindByName(ctx context.Context, name string) (*models.User, error) {
	const query = `SELECT id, name, password, display_name, create_at FROM users WHERE name = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, name); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by name: %w", err)
	}
	if err := r.loadRoles(ctx, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID returns a user by identifier with roles loaded.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	const query = `SELECT id, name, password, display_name, create_at FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	if err := r.loadRoles(ctx, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) loadRoles(ctx context.Context, user *models.User) error {
	const query = `SELECT r.name FROM roles r JOIN user_role ur ON ur.role_id = r.id WHERE ur.user_id = $1 ORDER BY r.name`
	var roles []models.RoleName
	if err := r.db.SelectContext(ctx, &roles, query, user.ID); err != nil {
		return fmt.Errorf("load user roles: %w", err)
	}
	user.Roles = roles
	return nil
}

// Create inserts a user and grants the given roles, creating missing roles on the way.
func (r *UserRepository) Create(ctx context.Context, user *models.User) (err error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreateAt.IsZero() {
		user.CreateAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create user: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertQuery = `INSERT INTO users (id, name, password, display_name, create_at) VALUES (:id, :name, :password, :display_name, :create_at)`
	if _, err = tx.NamedExecContext(ctx, insertQuery, user); err != nil {
		if isUniqueViolation(err) {
			err = ErrDuplicate
			return err
		}
		return fmt.Errorf("create user: %w", err)
	}
	for _, role := range user.Roles {
		if err = grantRole(ctx, tx, user.ID, role); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create user: %w", err)
	}
	return nil
}

// GrantRole gives an existing user a role. Granting a held role is a no-op.
func (r *UserRepository) GrantRole(ctx context.Context, userID string, role models.RoleName) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin grant role: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = grantRole(ctx, tx, userID, role); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit grant role: %w", err)
	}
	return nil
}

func grantRole(ctx context.Context, tx *sqlx.Tx, userID string, role models.RoleName) error {
	const upsertRole = `INSERT INTO roles (id, name) VALUES ($1, $2)
ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name RETURNING id`
	var roleID string
	if err := tx.GetContext(ctx, &roleID, upsertRole, uuid.NewString(), string(role)); err != nil {
		return fmt.Errorf("ensure role %s: %w", role, err)
	}
	const link = `INSERT INTO user_role (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := tx.ExecContext(ctx, link, userID, roleID); err != nil {
		return fmt.Errorf("grant role %s: %w", role, err)
	}
	return nil
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE users SET password = $2 WHERE id = $1`, id, passwordHash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}
