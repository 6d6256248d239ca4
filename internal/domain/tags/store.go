package tags

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"quill/internal/slug"
)

type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store interface {
	GetAll(ctx context.Context) ([]Tag, error)
	GetByID(ctx context.Context, id int64) (*Tag, error)
	GetBySlug(ctx context.Context, s string) (*Tag, error)
	Create(ctx context.Context, tag *Tag) error
	Update(ctx context.Context, tag *Tag) error
	Delete(ctx context.Context, id int64) error
}

type Repository struct {
	db DB
}

func NewRepository(db DB) Store {
	return &Repository{db: db}
}

func (r *Repository) GetAll(ctx context.Context) ([]Tag, error) {
	query := `SELECT id, name, slug, created_at, updated_at FROM tags ORDER BY name ASC`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, t)
	}

	return list, rows.Err()
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*Tag, error) {
	query := `SELECT id, name, slug, created_at, updated_at FROM tags WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

func (r *Repository) GetBySlug(ctx context.Context, s string) (*Tag, error) {
	query := `SELECT id, name, slug, created_at, updated_at FROM tags WHERE slug = $1`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	return r.scanOne(r.db.QueryRow(ctx, query, s))
}

func (r *Repository) scanOne(row pgx.Row) (*Tag, error) {
	var t Tag
	err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *Repository) Create(ctx context.Context, tag *Tag) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	s, err := r.availableSlug(ctx, slug.Make(tag.Name), 0)
	if err != nil {
		return err
	}
	tag.Slug = s

	query := `INSERT INTO tags (name, slug) VALUES ($1, $2) RETURNING id, created_at`

	err = r.db.QueryRow(ctx, query, tag.Name, tag.Slug).Scan(&tag.ID, &tag.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateName
		}
		return err
	}
	return nil
}

func (r *Repository) Update(ctx context.Context, tag *Tag) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	s, err := r.availableSlug(ctx, slug.Make(tag.Name), tag.ID)
	if err != nil {
		return err
	}
	tag.Slug = s

	query := `UPDATE tags SET name = $1, slug = $2, updated_at = NOW() WHERE id = $3 RETURNING updated_at`

	err = r.db.QueryRow(ctx, query, tag.Name, tag.Slug, tag.ID).Scan(&tag.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if isUniqueViolation(err) {
			return ErrDuplicateName
		}
		return err
	}
	return nil
}

// Delete detaches the tag from every post before removing it.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	if _, err := r.db.Exec(ctx, `DELETE FROM post_tags WHERE tag_id = $1`, id); err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, `DELETE FROM tags WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) availableSlug(ctx context.Context, base string, excludeID int64) (string, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM tags WHERE slug = $1 AND id != $2)`
	if err := r.db.QueryRow(ctx, query, base, excludeID).Scan(&exists); err != nil {
		return "", err
	}
	if exists {
		return slug.WithSuffix(base), nil
	}
	return base, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
