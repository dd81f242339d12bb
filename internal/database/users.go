package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"travelbook/internal/domain"
	"travelbook/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

const userColumns = `id, email, password_hash, first_name, last_name, role, is_active, created_at, updated_at, last_login`

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	return db.queryUser(ctx, query, strings.ToLower(strings.TrimSpace(email)))
}

func (db *DB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return db.queryUser(ctx, query, id)
}

func (db *DB) queryUser(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	var (
		user      models.User
		lastLogin sql.NullTime
	)
	err := db.QueryRowContext(ctx, db.rebind(query), args...).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName,
		&user.Role, &user.IsActive, &user.CreatedAt, &user.UpdatedAt, &lastLogin,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Errorf(domain.ErrNotFound, "user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLogin = &t
	}
	return &user, nil
}

// UserIDs returns the identifiers of every relational user.
func (db *DB) UserIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := db.QueryContext(ctx, `SELECT id FROM users`)
	if err != nil {
		return nil, fmt.Errorf("failed to list user ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

func (db *DB) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	query := `UPDATE users SET last_login = ?, updated_at = ? WHERE id = ?`
	_, err := db.ExecContext(ctx, db.rebind(query), at.UTC(), time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// BeginUserTx opens the transaction that carries a registration until the
// row store writes have succeeded.
func (db *DB) BeginUserTx(ctx context.Context) (domain.UserTx, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &userTx{tx: tx, db: db}, nil
}

type userTx struct {
	tx *sql.Tx
	db *DB
}

func (t *userTx) InsertUser(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var lastLogin interface{}
	if user.LastLogin != nil {
		lastLogin = user.LastLogin.UTC()
	}
	_, err := t.tx.ExecContext(ctx, t.db.rebind(query),
		user.ID,
		strings.ToLower(strings.TrimSpace(user.Email)),
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Role,
		user.IsActive,
		user.CreatedAt.UTC(),
		user.UpdatedAt.UTC(),
		lastLogin,
	)
	if err != nil {
		if isUniqueViolation(err, "email") {
			return domain.Errorf(domain.ErrDuplicateUser, "a user with email %s already exists", user.Email)
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (t *userTx) Commit() error {
	return t.tx.Commit()
}

func (t *userTx) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func isUniqueViolation(err error, column string) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique && strings.Contains(sqliteErr.Error(), column)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && strings.Contains(pgErr.ConstraintName, column)
	}
	return false
}
