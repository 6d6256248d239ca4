package categories

import (
	"database/sql"
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("category not found")
	ErrDuplicateName     = errors.New("a category with that name already exists")
	ErrHasPosts          = errors.New("category has associated posts")
	QueryTimeoutDuration = time.Second * 5
)

type Category struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Slug        string         `json:"slug"`
	Description sql.NullString `json:"description" swaggertype:"string"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   sql.NullTime   `json:"updated_at" swaggertype:"string"`
}
