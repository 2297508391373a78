package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"helixdesk/internal/model"
)

const userColumns = `id, email, google_id, full_name, avatar_url, password_hash, department, role,
	otp_code, otp_expires_at, is_2fa_enabled, tokens_valid_after, created_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (model.User, error) {
	var (
		u    model.User
		role string
	)
	err := row.Scan(&u.ID, &u.Email, &u.GoogleID, &u.FullName, &u.AvatarURL, &u.PasswordHash,
		&u.Department, &role, &u.OTPCode, &u.OTPExpiresAt, &u.TwoFactorEnabled,
		&u.TokensValidAfter, &u.CreatedAt)
	if err != nil {
		return model.User{}, err
	}

	// Rows written before the role CHECK existed may carry legacy spellings.
	u.Role, err = model.ParseRole(role)
	if err != nil {
		return model.User{}, fmt.Errorf("user %d: %w", u.ID, err)
	}
	return u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user by id: %w", err)
	}
	return u, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, strings.TrimSpace(email)))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user by email: %w", err)
	}
	return u, nil
}

// Create inserts u and returns the stored row. The case-insensitive email
// index turns a concurrent duplicate signup into ErrUserAlreadyExists.
func (r *UserRepository) Create(ctx context.Context, u model.User) (model.User, error) {
	role := u.Role
	if role == "" {
		role = model.RoleEndUser
	}

	created, err := scanUser(r.pool.QueryRow(ctx,
		`INSERT INTO users (email, google_id, full_name, avatar_url, password_hash, department, role, is_2fa_enabled)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+userColumns,
		strings.TrimSpace(u.Email), u.GoogleID, u.FullName, u.AvatarURL, u.PasswordHash,
		u.Department, string(role), u.TwoFactorEnabled))
	if isPgError(err, pgUniqueViolation) {
		return model.User{}, model.ErrUserAlreadyExists
	}
	if err != nil {
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

// LinkGoogle attaches an external subject to an identity that has none. An
// identity that is already linked is returned unchanged.
func (r *UserRepository) LinkGoogle(ctx context.Context, id int64, googleID string, avatarURL *string) (model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`UPDATE users SET google_id = $2, avatar_url = COALESCE($3, avatar_url)
		 WHERE id = $1 AND google_id IS NULL
		 RETURNING `+userColumns, id, googleID, avatarURL))
	if errors.Is(err, pgx.ErrNoRows) {
		return r.FindByID(ctx, id)
	}
	if isPgError(err, pgUniqueViolation) {
		return model.User{}, model.ErrUserAlreadyExists
	}
	if err != nil {
		return model.User{}, fmt.Errorf("link google account: %w", err)
	}
	return u, nil
}

func (r *UserRepository) SetOTP(ctx context.Context, id int64, code string, expiresAt time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET otp_code = $2, otp_expires_at = $3 WHERE id = $1`, id, code, expiresAt)
	if err != nil {
		return fmt.Errorf("set otp: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

// ConsumeOTP clears the pending code only if it still equals code and has not
// expired at now. At most one concurrent caller observes true.
func (r *UserRepository) ConsumeOTP(ctx context.Context, id int64, code string, now time.Time) (bool, error) {
	var consumed int64
	err := r.pool.QueryRow(ctx,
		`UPDATE users SET otp_code = NULL, otp_expires_at = NULL
		 WHERE id = $1 AND otp_code = $2 AND otp_expires_at > $3
		 RETURNING id`, id, code, now).Scan(&consumed)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("consume otp: %w", err)
	}
	return true, nil
}

func (r *UserRepository) UpdateRole(ctx context.Context, id int64, role model.Role) (model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`UPDATE users SET role = $2 WHERE id = $1 RETURNING `+userColumns, id, string(role)))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("update role: %w", err)
	}
	return u, nil
}

func (r *UserRepository) SetTokensValidAfter(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET tokens_valid_after = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("set tokens valid after: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepository) CountByRole(ctx context.Context, role model.Role) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role = $1`, string(role)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count users by role: %w", err)
	}
	return count, nil
}
