package users

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

func newUserTestFixture(t *testing.T) (Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	repo := NewRepository(mock)
	return repo, mock
}

func userColumnNames() []string {
	return []string{
		"id", "username", "email", "full_name", "avatar", "bio", "password", "role",
		"refresh_token", "reset_password_token", "reset_password_expires",
		"last_login", "created_at", "updated_at",
	}
}

func sampleUserRow() *pgxmock.Rows {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return pgxmock.NewRows(userColumnNames()).AddRow(
		int64(1), "alice", "alice@example.com", "Alice Smith", nil, nil,
		[]byte("$2a$10$fakehash"), RoleAuthor,
		"", "", time.Unix(0, 0), nil, now, now,
	)
}

func TestUserRepository_GetByID(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT(.|\n)*FROM users WHERE id").
		WithArgs(int64(1)).
		WillReturnRows(sampleUserRow())

	user, err := repo.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, RoleAuthor, user.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT(.|\n)*FROM users WHERE id").
		WithArgs(int64(999)).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create_DuplicateEmail(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	defer mock.Close()

	user := &User{
		Username: "alice",
		Email:    "alice@example.com",
		Role:     RoleSubscriber,
	}
	require.NoError(t, user.Password.Set("correct horse battery"))

	mock.ExpectQuery("INSERT INTO users").
		WithArgs(user.Username, user.Email, user.FullName, user.Avatar, user.Bio,
			user.Password.Hash(), user.Role).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	err := repo.Create(context.Background(), user)
	assert.ErrorIs(t, err, ErrDuplicateEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create_DuplicateUsername(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	defer mock.Close()

	user := &User{
		Username: "alice",
		Email:    "other@example.com",
		Role:     RoleSubscriber,
	}
	require.NoError(t, user.Password.Set("correct horse battery"))

	mock.ExpectQuery("INSERT INTO users").
		WithArgs(user.Username, user.Email, user.FullName, user.Avatar, user.Bio,
			user.Password.Hash(), user.Role).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})

	err := repo.Create(context.Background(), user)
	assert.ErrorIs(t, err, ErrDuplicateUsername)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_UpdateRole_NotFound(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE users SET role").
		WithArgs(RoleAdmin, int64(42)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateRole(context.Background(), 42, RoleAdmin)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_RefreshTokenLifecycle(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE users SET refresh_token").
		WithArgs("tok-1", int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	mock.ExpectQuery("SELECT COALESCE\\(refresh_token").
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"refresh_token"}).AddRow("tok-1"))

	mock.ExpectExec("UPDATE users SET refresh_token = NULL").
		WithArgs(int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ctx := context.Background()

	require.NoError(t, repo.SaveRefreshToken(ctx, 1, "tok-1"))

	stored, err := repo.GetRefreshToken(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", stored)

	require.NoError(t, repo.DeleteRefreshToken(ctx, 1))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_ClearResetToken(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	defer mock.Close()

	// Clearing must write NULLs, not an empty string and a zero timestamp,
	// so the columns land in the same state Update's NULLIF normalization
	// produces for "no token".
	mock.ExpectExec("UPDATE users\\s+SET reset_password_token = NULL, reset_password_expires = NULL").
		WithArgs("alice@example.com").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.ClearResetToken(context.Background(), "alice@example.com"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_ClearResetToken_NotFound(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE users\\s+SET reset_password_token = NULL").
		WithArgs("ghost@example.com").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.ClearResetToken(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_List(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	defer mock.Close()

	now := time.Now().UTC().Truncate(time.Microsecond)
	cols := append(userColumnNames(), "total")
	rows := pgxmock.NewRows(cols).
		AddRow(int64(1), "alice", "alice@example.com", "Alice", nil, nil,
			[]byte("hash"), RoleAdmin, "", "", time.Unix(0, 0), nil, now, now, 2).
		AddRow(int64(2), "bob", "bob@example.com", "Bob", nil, nil,
			[]byte("hash"), RoleSubscriber, "", "", time.Unix(0, 0), nil, now, now, 2)

	mock.ExpectQuery("SELECT(.|\n)*COUNT\\(\\*\\) OVER\\(\\)(.|\n)*FROM users").
		WithArgs(10, 0).
		WillReturnRows(rows)

	list, total, err := repo.List(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, list, 2)
	assert.Equal(t, "alice", list[0].Username)
	assert.Equal(t, RoleSubscriber, list[1].Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}
