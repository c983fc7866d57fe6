package store

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/ksyq12/tsm/internal/errors"
	"github.com/ksyq12/tsm/internal/models"
)

const userColumns = `id, public_id, email, username, password_hash, is_admin,
    token_version, access_servers, access_pages, created_at, updated_at`

// NewUser holds the fields needed to create a user.
type NewUser struct {
	Email        string
	Username     string
	PasswordHash string
	IsAdmin      bool
	AccessPages  []string
}

func scanUser(row scanner) (*models.User, error) {
	var (
		u                    models.User
		isAdmin              int
		servers, pages       string
		createdAt, updatedAt string
	)
	if err := row.Scan(&u.ID, &u.PublicID, &u.Email, &u.Username, &u.PasswordHash, &isAdmin,
		&u.TokenVersion, &servers, &pages, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if u.AccessServers, err = decodeList(servers); err != nil {
		return nil, err
	}
	if u.AccessPages, err = decodeList(pages); err != nil {
		return nil, err
	}
	u.IsAdmin = isAdmin != 0
	u.CreatedAt = parseTime(createdAt)
	u.UpdatedAt = parseTime(updatedAt)
	return &u, nil
}

// CreateUser inserts a user. The first user ever created becomes an admin.
// Username defaults to the local part of the email.
func (s *Store) CreateUser(ctx context.Context, nu NewUser) (*models.User, error) {
	email := models.NormalizeEmail(nu.Email)
	if email == "" {
		return nil, errors.Validation("email is required")
	}
	if nu.PasswordHash == "" {
		return nil, errors.Validation("password hash is required")
	}
	username := nu.Username
	if username == "" {
		username = models.UsernameFromEmail(email)
	}

	pages, err := encodeList(nu.AccessPages)
	if err != nil {
		return nil, storeErr("failed to encode pages", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr("failed to begin transaction", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return nil, storeErr("failed to count users", err)
	}
	isAdmin := nu.IsAdmin || count == 0

	now := s.timestamp()
	publicID := models.NewPublicID()
	_, err = tx.ExecContext(ctx, `INSERT INTO users
        (public_id, email, username, password_hash, is_admin, access_servers, access_pages, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, '[]', ?, ?, ?)`,
		publicID, email, username, nu.PasswordHash, boolToInt(isAdmin), pages, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, errors.AlreadyExists("user", email)
		}
		return nil, storeErr("failed to insert user", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, storeErr("failed to commit user", err)
	}

	return s.GetUserByPublicID(ctx, publicID)
}

func (s *Store) getUser(ctx context.Context, where string, arg interface{}, label string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE "+where, arg)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("user", label)
		}
		return nil, storeErr("failed to load user", err)
	}
	return u, nil
}

// GetUserByEmail looks a user up by email, case-insensitively.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	email = models.NormalizeEmail(email)
	return s.getUser(ctx, "email = ?", email, email)
}

// GetUserByPublicID looks a user up by public id.
func (s *Store) GetUserByPublicID(ctx context.Context, publicID string) (*models.User, error) {
	return s.getUser(ctx, "public_id = ?", publicID, publicID)
}

// GetUserByID looks a user up by row id.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.getUser(ctx, "id = ?", id, strconv.FormatInt(id, 10))
}

// ListUsers returns every user ordered by creation.
func (s *Store) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, storeErr("failed to list users", err)
	}
	defer rows.Close()

	users := []*models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, storeErr("failed to read user", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("failed to list users", err)
	}
	return users, nil
}

// CountUsers returns the number of users.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return 0, storeErr("failed to count users", err)
	}
	return n, nil
}

func (s *Store) updateUser(ctx context.Context, publicID, set string, arg interface{}) (*models.User, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET "+set+" = ?, updated_at = ? WHERE public_id = ?",
		arg, s.timestamp(), publicID)
	if err != nil {
		return nil, storeErr("failed to update user", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, errors.NotFound("user", publicID)
	}
	return s.GetUserByPublicID(ctx, publicID)
}

// UpdateUserPages replaces a user's page grants.
func (s *Store) UpdateUserPages(ctx context.Context, publicID string, pages []string) (*models.User, error) {
	encoded, err := encodeList(pages)
	if err != nil {
		return nil, storeErr("failed to encode pages", err)
	}
	return s.updateUser(ctx, publicID, "access_pages", encoded)
}

// UpdateUserServers replaces a user's machine grants.
func (s *Store) UpdateUserServers(ctx context.Context, publicID string, servers []string) (*models.User, error) {
	encoded, err := encodeList(servers)
	if err != nil {
		return nil, storeErr("failed to encode servers", err)
	}
	return s.updateUser(ctx, publicID, "access_servers", encoded)
}

// SetAdmin grants or revokes admin rights.
func (s *Store) SetAdmin(ctx context.Context, publicID string, isAdmin bool) (*models.User, error) {
	return s.updateUser(ctx, publicID, "is_admin", boolToInt(isAdmin))
}

// UpdatePassword replaces a user's password hash and bumps their token
// version, which ends every existing session.
func (s *Store) UpdatePassword(ctx context.Context, publicID, passwordHash string) error {
	if passwordHash == "" {
		return errors.Validation("password hash is required")
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET password_hash = ?, token_version = token_version + 1, updated_at = ? WHERE public_id = ?",
		passwordHash, s.timestamp(), publicID)
	if err != nil {
		return storeErr("failed to update password", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("user", publicID)
	}
	return nil
}

// DeleteUser removes a user and any pending reset tokens.
func (s *Store) DeleteUser(ctx context.Context, publicID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE public_id = ?", publicID)
	if err != nil {
		return storeErr("failed to delete user", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("user", publicID)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
