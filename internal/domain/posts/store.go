package posts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"quill/internal/domain/categories"
	"quill/internal/domain/tags"
	"quill/internal/slug"
)

type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store interface {
	GetByID(ctx context.Context, id int64) (*Post, error)
	GetBySlug(ctx context.Context, s string) (*Post, error)
	Create(ctx context.Context, post *Post, tagIDs []int64) error
	Update(ctx context.Context, post *Post, tagIDs []int64, retitled bool) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f Filter) ([]Post, int, error)
	IncrementViewCount(ctx context.Context, id int64) error
	SetFeaturedImage(ctx context.Context, id int64, url string) error
}

type Repository struct {
	db DB
}

func NewRepository(db DB) Store {
	return &Repository{db: db}
}

const postColumns = `
	p.id, p.title, p.content, p.excerpt, p.slug, p.author_id, p.category_id,
	p.featured_image, p.status, p.visibility, p.published_at,
	p.created_at, p.updated_at, p.view_count, p.comment_count, p.like_count,
	u.username, u.full_name, u.avatar, u.bio,
	c.name, c.slug, c.description, c.created_at, c.updated_at`

const postJoins = `
	FROM posts p
	JOIN users u ON u.id = p.author_id
	JOIN categories c ON c.id = p.category_id`

func scanPost(row interface{ Scan(dest ...any) error }, extra ...any) (*Post, error) {
	var p Post
	p.Author = &Author{}
	p.Category = &categories.Category{}

	dest := []any{
		&p.ID, &p.Title, &p.Content, &p.Excerpt, &p.Slug, &p.AuthorID, &p.CategoryID,
		&p.FeaturedImage, &p.Status, &p.Visibility, &p.PublishedAt,
		&p.CreatedAt, &p.UpdatedAt, &p.ViewCount, &p.CommentCount, &p.LikeCount,
		&p.Author.Username, &p.Author.FullName, &p.Author.Avatar, &p.Author.Bio,
		&p.Category.Name, &p.Category.Slug, &p.Category.Description,
		&p.Category.CreatedAt, &p.Category.UpdatedAt,
	}
	dest = append(dest, extra...)

	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	p.Author.ID = p.AuthorID
	p.Category.ID = p.CategoryID
	return &p, nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*Post, error) {
	query := `SELECT` + postColumns + postJoins + ` WHERE p.id = $1`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	post, err := scanPost(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadTags(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func (r *Repository) GetBySlug(ctx context.Context, s string) (*Post, error) {
	query := `SELECT` + postColumns + postJoins + ` WHERE p.slug = $1`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	post, err := scanPost(r.db.QueryRow(ctx, query, s))
	if err != nil {
		return nil, err
	}
	if err := r.loadTags(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func (r *Repository) Create(ctx context.Context, post *Post, tagIDs []int64) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	s, err := r.availableSlug(ctx, slug.Make(post.Title), 0)
	if err != nil {
		return err
	}
	post.Slug = s

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx) // safe even if already committed
	}()

	query := `
		INSERT INTO posts (
			title, content, excerpt, slug, author_id, category_id,
			featured_image, status, visibility, published_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`

	err = tx.QueryRow(
		ctx, query,
		post.Title, post.Content, post.Excerpt, post.Slug, post.AuthorID, post.CategoryID,
		post.FeaturedImage, post.Status, post.Visibility, post.PublishedAt,
	).Scan(&post.ID, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSlug
		}
		return err
	}

	if err := attachTags(ctx, tx, post.ID, tagIDs); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Update persists every mutable column. When retitled is true the slug is
// rederived from the new title, keeping the old slug if nothing collides
// semantically (a fresh suffix only appears on collision). tagIDs replaces
// the tag set; pass nil to leave tags untouched.
func (r *Repository) Update(ctx context.Context, post *Post, tagIDs []int64, retitled bool) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	if retitled {
		s, err := r.availableSlug(ctx, slug.Make(post.Title), post.ID)
		if err != nil {
			return err
		}
		post.Slug = s
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	query := `
		UPDATE posts
		SET title = $1, content = $2, excerpt = $3, slug = $4, category_id = $5,
		    featured_image = $6, status = $7, visibility = $8, published_at = $9,
		    updated_at = NOW()
		WHERE id = $10
		RETURNING updated_at`

	err = tx.QueryRow(
		ctx, query,
		post.Title, post.Content, post.Excerpt, post.Slug, post.CategoryID,
		post.FeaturedImage, post.Status, post.Visibility, post.PublishedAt, post.ID,
	).Scan(&post.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if isUniqueViolation(err) {
			return ErrDuplicateSlug
		}
		return err
	}

	if tagIDs != nil {
		if _, err := tx.Exec(ctx, `DELETE FROM post_tags WHERE post_id = $1`, post.ID); err != nil {
			return err
		}
		if err := attachTags(ctx, tx, post.ID, tagIDs); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	if _, err := r.db.Exec(ctx, `DELETE FROM post_tags WHERE post_id = $1`, id); err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) List(ctx context.Context, f Filter) ([]Post, int, error) {
	where, args := f.whereClause()

	query := `SELECT` + postColumns + `, COUNT(*) OVER() AS total` + postJoins + where +
		fmt.Sprintf(` ORDER BY p.created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []Post
	var total int
	for rows.Next() {
		post, err := scanPost(rows, &total)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *post)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if err := r.loadTagsForAll(ctx, list); err != nil {
		return nil, 0, err
	}

	return list, total, nil
}

func (f Filter) whereClause() (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Status != "" {
		add(`p.status = $%d`, f.Status)
	}
	if len(f.Visibilities) > 0 {
		vs := make([]string, len(f.Visibilities))
		for i, v := range f.Visibilities {
			vs[i] = string(v)
		}
		add(`p.visibility = ANY($%d)`, vs)
	}
	if f.CategoryID != 0 {
		add(`p.category_id = $%d`, f.CategoryID)
	}
	if f.AuthorID != 0 {
		add(`p.author_id = $%d`, f.AuthorID)
	}
	if f.Tag != "" {
		add(`EXISTS (
			SELECT 1 FROM post_tags pt
			JOIN tags t ON t.id = pt.tag_id
			WHERE pt.post_id = p.id AND t.name = $%d)`, f.Tag)
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(`(p.title ILIKE $%d OR p.content ILIKE $%d)`, n, n))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *Repository) IncrementViewCount(ctx context.Context, id int64) error {
	query := `UPDATE posts SET view_count = view_count + 1 WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	_, err := r.db.Exec(ctx, query, id)
	return err
}

func (r *Repository) SetFeaturedImage(ctx context.Context, id int64, url string) error {
	query := `UPDATE posts SET featured_image = $1, updated_at = NOW() WHERE id = $2`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := r.db.Exec(ctx, query, url, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) loadTags(ctx context.Context, post *Post) error {
	query := `
		SELECT t.id, t.name, t.slug, t.created_at, t.updated_at
		FROM tags t
		JOIN post_tags pt ON pt.tag_id = t.id
		WHERE pt.post_id = $1
		ORDER BY t.name ASC`

	rows, err := r.db.Query(ctx, query, post.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	post.Tags = []tags.Tag{}
	for rows.Next() {
		var t tags.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return err
		}
		post.Tags = append(post.Tags, t)
	}
	return rows.Err()
}

func (r *Repository) loadTagsForAll(ctx context.Context, list []Post) error {
	if len(list) == 0 {
		return nil
	}

	ids := make([]int64, len(list))
	index := make(map[int64]*Post, len(list))
	for i := range list {
		ids[i] = list[i].ID
		index[list[i].ID] = &list[i]
		list[i].Tags = []tags.Tag{}
	}

	query := `
		SELECT pt.post_id, t.id, t.name, t.slug, t.created_at, t.updated_at
		FROM tags t
		JOIN post_tags pt ON pt.tag_id = t.id
		WHERE pt.post_id = ANY($1)
		ORDER BY t.name ASC`

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var postID int64
		var t tags.Tag
		if err := rows.Scan(&postID, &t.ID, &t.Name, &t.Slug, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return err
		}
		if p, ok := index[postID]; ok {
			p.Tags = append(p.Tags, t)
		}
	}
	return rows.Err()
}

func attachTags(ctx context.Context, tx pgx.Tx, postID int64, tagIDs []int64) error {
	for _, tagID := range tagIDs {
		_, err := tx.Exec(ctx,
			`INSERT INTO post_tags (post_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			postID, tagID)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) availableSlug(ctx context.Context, base string, excludeID int64) (string, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM posts WHERE slug = $1 AND id != $2)`
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
