package posts

import (
	"database/sql"
	"errors"
	"time"

	"quill/internal/domain/categories"
	"quill/internal/domain/tags"
)

var (
	ErrNotFound          = errors.New("post not found")
	ErrDuplicateSlug     = errors.New("a post with that slug already exists")
	QueryTimeoutDuration = time.Second * 5
)

// Status is the publication lifecycle stage of a post.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	}
	return false
}

// Visibility controls who may ever see a post, regardless of status.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
	VisibilityMembers Visibility = "members"
)

func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityPrivate, VisibilityMembers:
		return true
	}
	return false
}

// Author is the public projection of a post's author. Email and password
// never leave the users table through this path.
type Author struct {
	ID       int64          `json:"id"`
	Username string         `json:"username"`
	FullName string         `json:"full_name"`
	Avatar   sql.NullString `json:"avatar" swaggertype:"string"`
	Bio      sql.NullString `json:"bio" swaggertype:"string"`
}

type Post struct {
	ID            int64                `json:"id"`
	Title         string               `json:"title"`
	Content       string               `json:"content"`
	Excerpt       string               `json:"excerpt"`
	Slug          string               `json:"slug"`
	AuthorID      int64                `json:"author_id"`
	Author        *Author              `json:"author,omitempty"`
	CategoryID    int64                `json:"category_id"`
	Category      *categories.Category `json:"category,omitempty"`
	Tags          []tags.Tag           `json:"tags"`
	FeaturedImage sql.NullString       `json:"featured_image" swaggertype:"string"`
	Status        Status               `json:"status"`
	Visibility    Visibility           `json:"visibility"`
	PublishedAt   sql.NullTime         `json:"published_at" swaggertype:"string"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
	ViewCount     int                  `json:"view_count"`
	CommentCount  int                  `json:"comment_count"`
	LikeCount     int                  `json:"like_count"`
}

// Filter narrows List results. Zero values mean "don't filter".
type Filter struct {
	Status       Status
	Visibilities []Visibility
	CategoryID   int64
	AuthorID     int64
	Tag          string
	Search       string
	Limit        int
	Offset       int
}
