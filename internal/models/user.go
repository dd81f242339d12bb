package models

import (
	"strings"
	"time"
)

// User exists in the relational store and is mirrored to the User sheet.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Role         string     `json:"role"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// FullName joins first and last name.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Session is a bearer token with an expiry. Validity depends on ExpiresAt only.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Token     string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Valid reports whether the session has not expired at now.
func (s Session) Valid(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

// UserFromRow reads the sheet mirror of a user. The sheet keeps the full
// name in one column; it is split on the first space.
func UserFromRow(r Row) (User, error) {
	f := newReader(r)
	u := User{
		ID:           f.required("id"),
		Email:        f.required("email"),
		PasswordHash: f.str("password_hash"),
		Role:         f.str("role"),
		IsActive:     true,
		CreatedAt:    f.time("created_at"),
		LastLogin:    f.optTime("last_login"),
	}
	first, last, _ := strings.Cut(f.str("full_name"), " ")
	u.FirstName, u.LastName = first, strings.TrimSpace(last)
	if u.Role == "" {
		u.Role = RoleCustomer
	}
	return u, f.err
}

func (u User) Values() []interface{} {
	lastLogin := ""
	if u.LastLogin != nil {
		lastLogin = FormatTime(*u.LastLogin)
	}
	return []interface{}{u.ID, u.Email, u.PasswordHash, u.FullName(), u.Role, FormatTime(u.CreatedAt), lastLogin}
}

func SessionFromRow(r Row) (Session, error) {
	f := newReader(r)
	s := Session{
		ID:        f.required("id"),
		UserID:    f.required("user_id"),
		Token:     f.required("auth_token"),
		CreatedAt: f.time("created_at"),
		ExpiresAt: f.time("expires_at"),
	}
	return s, f.err
}

func (s Session) Values() []interface{} {
	return []interface{}{s.ID, s.UserID, s.Token, FormatTime(s.CreatedAt), FormatTime(s.ExpiresAt)}
}
