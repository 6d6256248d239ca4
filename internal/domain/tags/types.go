package tags

import (
	"database/sql"
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("tag not found")
	ErrDuplicateName     = errors.New("a tag with that name already exists")
	QueryTimeoutDuration = time.Second * 5
)

type Tag struct {
	ID        int64        `json:"id"`
	Name      string       `json:"name"`
	Slug      string       `json:"slug"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt sql.NullTime `json:"updated_at" swaggertype:"string"`
}
