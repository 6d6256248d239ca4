package storage

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"quill/internal/domain/categories"
	"quill/internal/domain/posts"
	"quill/internal/domain/tags"
	"quill/internal/domain/users"
)

// Container aggregates the per-domain repositories behind one handle that
// the application carries around.
type Container struct {
	Users      users.Store
	Posts      posts.Store
	Categories categories.Store
	Tags       tags.Store
}

func NewContainer(db *pgxpool.Pool) *Container {
	return &Container{
		Users:      users.NewRepository(db),
		Posts:      posts.NewRepository(db),
		Categories: categories.NewRepository(db),
		Tags:       tags.NewRepository(db),
	}
}
