package users

import (
	"database/sql"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound          = errors.New("user not found")
	ErrDuplicateEmail    = errors.New("a user with that email already exists")
	ErrDuplicateUsername = errors.New("a user with that username already exists")
	QueryTimeoutDuration = time.Second * 5
)

// Role is the closed set of user roles. Anything outside the three
// constants fails Valid and is rejected at the boundary.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleAuthor     Role = "author"
	RoleSubscriber Role = "subscriber"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleAuthor, RoleSubscriber:
		return true
	}
	return false
}

type User struct {
	ID                   int64          `json:"id"`
	Username             string         `json:"username"`
	Email                string         `json:"email"`
	FullName             string         `json:"full_name"`
	Avatar               sql.NullString `json:"avatar" swaggertype:"string"`
	Bio                  sql.NullString `json:"bio" swaggertype:"string"`
	Password             password       `json:"-"`
	Role                 Role           `json:"role"`
	RefreshToken         string         `json:"-"` // Sensitive data
	ResetPasswordToken   string         `json:"-"` // Sensitive data
	ResetPasswordExpires time.Time      `json:"-"` // Internal use only
	LastLogin            sql.NullTime   `json:"last_login" swaggertype:"string"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// IsAdmin reports whether the user carries the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Password struct to store plain text and hash
type password struct {
	text *string `json:"-"` // Hide plaintext password
	hash []byte  `json:"-"` // Hide hashed password
}

func (p *password) Set(text string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(text), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	p.text = &text
	p.hash = hash

	return nil
}

func (p *password) Compare(text string) error {
	return bcrypt.CompareHashAndPassword(p.hash, []byte(text))
}

// Hash exposes the bcrypt hash for persistence.
func (p *password) Hash() []byte {
	return p.hash
}

// SetHash loads an already-hashed password, used when scanning rows.
func (p *password) SetHash(hash []byte) {
	p.hash = hash
}
