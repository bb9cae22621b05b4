package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warden-auth/warden/internal/platform/db"
	"github.com/warden-auth/warden/internal/shared"
)

// Repository defines persistence operations for user accounts.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByID(ctx context.Context, id int64) (User, error)
	CreateUser(ctx context.Context, user User, roleID int64) (User, error)
	UpdateProfile(ctx context.Context, user User) (User, error)
	RecordLogin(ctx context.Context, userID int64, at time.Time) error
	SetActive(ctx context.Context, userID int64, active bool) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewRepository constructs a PostgreSQL repository with bounded call timeouts.
func NewRepository(pool *pgxpool.Pool, timeout time.Duration) *PGRepository {
	return &PGRepository{pool: pool, timeout: timeout}
}

func (r *PGRepository) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

func mapStoreErr(op string, err error) error {
	if db.IsTimeout(err) {
		return fmt.Errorf("accounts: %s: %w", op, shared.ErrStoreTimeout)
	}
	return fmt.Errorf("accounts: %s: %w", op, err)
}

const userColumns = `id, email, first_name, last_name, password_hash, is_active, created_at, last_login`

func scanUser(row pgx.Row) (User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Email, &user.FirstName, &user.LastName,
		&user.PasswordHash, &user.IsActive, &user.CreatedAt, &user.LastLogin)
	return user, err
}

// FindByEmail fetches a user by its case-folded email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	ctx, cancel := r.withDeadline(ctx)
	defer cancel()
	user, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, mapStoreErr("find by email", err)
	}
	return user, nil
}

// FindByID fetches a user by ID.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (User, error) {
	ctx, cancel := r.withDeadline(ctx)
	defer cancel()
	user, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, mapStoreErr("find by id", err)
	}
	return user, nil
}

// CreateUser inserts the user and, when roleID is non-zero, its initial role
// membership in one transaction. Either both rows land or neither does.
func (r *PGRepository) CreateUser(ctx context.Context, user User, roleID int64) (User, error) {
	ctx, cancel := r.withDeadline(ctx)
	defer cancel()
	var created User
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		created, err = scanUser(tx.QueryRow(ctx,
			`INSERT INTO users (email, first_name, last_name, password_hash, is_active)
			 VALUES ($1, $2, $3, $4, TRUE)
			 RETURNING `+userColumns,
			user.Email, user.FirstName, user.LastName, user.PasswordHash))
		if err != nil {
			return err
		}
		if roleID != 0 {
			if _, err := tx.Exec(ctx,
				`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)`,
				created.ID, roleID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err, "users_email_key") {
			return User{}, shared.ErrDuplicateEmail
		}
		if db.IsForeignKeyViolation(err) {
			return User{}, shared.ErrInvalidRole
		}
		return User{}, mapStoreErr("create user", err)
	}
	return created, nil
}

// UpdateProfile persists name fields and password hash.
func (r *PGRepository) UpdateProfile(ctx context.Context, user User) (User, error) {
	ctx, cancel := r.withDeadline(ctx)
	defer cancel()
	updated, err := scanUser(r.pool.QueryRow(ctx,
		`UPDATE users SET first_name = $2, last_name = $3, password_hash = $4 WHERE id = $1
		 RETURNING `+userColumns,
		user.ID, user.FirstName, user.LastName, user.PasswordHash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, mapStoreErr("update profile", err)
	}
	return updated, nil
}

// RecordLogin stamps last_login.
func (r *PGRepository) RecordLogin(ctx context.Context, userID int64, at time.Time) error {
	ctx, cancel := r.withDeadline(ctx)
	defer cancel()
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET last_login = $2 WHERE id = $1`, userID, at)
	if err != nil {
		return mapStoreErr("record login", err)
	}
	return nil
}

// SetActive toggles the is_active flag.
func (r *PGRepository) SetActive(ctx context.Context, userID int64, active bool) error {
	ctx, cancel := r.withDeadline(ctx)
	defer cancel()
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET is_active = $2 WHERE id = $1`, userID, active)
	if err != nil {
		return mapStoreErr("set active", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
