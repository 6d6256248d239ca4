package categories

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCategoryTestFixture(t *testing.T) (Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	repo := NewRepository(mock)
	return repo, mock
}

func TestCategoryRepository_Create(t *testing.T) {
	repo, mock := newCategoryTestFixture(t)
	defer mock.Close()

	now := time.Now().UTC().Truncate(time.Microsecond)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("tech-news", int64(0)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	mock.ExpectQuery("INSERT INTO categories").
		WithArgs("Tech News", "tech-news", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(5), now))

	category := &Category{Name: "Tech News"}
	require.NoError(t, repo.Create(context.Background(), category))
	assert.Equal(t, int64(5), category.ID)
	assert.Equal(t, "tech-news", category.Slug)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryRepository_Create_SlugCollisionGetsSuffix(t *testing.T) {
	repo, mock := newCategoryTestFixture(t)
	defer mock.Close()

	now := time.Now().UTC().Truncate(time.Microsecond)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("tech-news", int64(0)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	mock.ExpectQuery("INSERT INTO categories").
		WithArgs("Tech News", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(6), now))

	category := &Category{Name: "Tech News"}
	require.NoError(t, repo.Create(context.Background(), category))
	assert.NotEqual(t, "tech-news", category.Slug)
	assert.Contains(t, category.Slug, "tech-news-")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryRepository_Create_DuplicateName(t *testing.T) {
	repo, mock := newCategoryTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("tech-news", int64(0)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	mock.ExpectQuery("INSERT INTO categories").
		WithArgs("Tech News", "tech-news", pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "categories_name_key"})

	err := repo.Create(context.Background(), &Category{Name: "Tech News"})
	assert.ErrorIs(t, err, ErrDuplicateName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryRepository_Delete_RefusedWithPosts(t *testing.T) {
	repo, mock := newCategoryTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM posts WHERE category_id").
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))

	err := repo.Delete(context.Background(), 3)
	assert.ErrorIs(t, err, ErrHasPosts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryRepository_Delete_ForeignKeyRace(t *testing.T) {
	repo, mock := newCategoryTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM posts WHERE category_id").
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))

	mock.ExpectExec("DELETE FROM categories").
		WithArgs(int64(3)).
		WillReturnError(&pgconn.PgError{Code: "23503"})

	err := repo.Delete(context.Background(), 3)
	assert.ErrorIs(t, err, ErrHasPosts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryRepository_Delete_NotFound(t *testing.T) {
	repo, mock := newCategoryTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM posts WHERE category_id").
		WithArgs(int64(99)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))

	mock.ExpectExec("DELETE FROM categories").
		WithArgs(int64(99)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := repo.Delete(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryRepository_GetBySlug_NotFound(t *testing.T) {
	repo, mock := newCategoryTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT id, name, slug").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetBySlug(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
