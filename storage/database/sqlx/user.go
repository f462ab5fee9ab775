package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/sajili/core/user"
)

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

const userColumns = `id, name, username, email, is_active, roles, password_hash, created_at, updated_at, last_login`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUser scans a row selected with userColumns; roles are a text[].
func scanUser(row rowScanner) (user.User, error) {
	var usr user.User
	var lastLogin sql.NullTime
	err := row.Scan(
		&usr.ID, &usr.Name, &usr.Username, &usr.Email, &usr.IsActive,
		pq.Array(&usr.Roles), &usr.PasswordHash, &usr.CreatedAt, &usr.UpdatedAt, &lastLogin,
	)
	if err != nil {
		return user.User{}, err
	}
	usr.LastLogin = lastLogin.Time
	return usr, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t.UTC(), Valid: !t.IsZero()}
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := `
		INSERT INTO users (name, username, email, is_active, roles, password_hash, created_at, updated_at, last_login)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	err := repo.db.QueryRowContext(
		ctx, q,
		usr.Name, usr.Username, usr.Email, usr.IsActive, pq.Array(usr.Roles),
		usr.PasswordHash, usr.CreatedAt, usr.UpdatedAt, nullTime(usr.LastLogin),
	).Scan(&usr.ID)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id int) (user.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	usr, err := scanUser(repo.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "finding user by ID")
	}
	return usr, nil
}

func (repo userRepository) GetUserByUsernameOrEmail(ctx context.Context, uname string) (user.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE username = $1 OR email = $1`
	usr, err := scanUser(repo.db.QueryRowContext(ctx, q, uname))
	if err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "finding user")
	}
	return usr, nil
}

func (repo userRepository) GetFirstUserByRole(ctx context.Context, rolePrefix string) (user.User, error) {
	q := `
		SELECT ` + userColumns + ` FROM users u
		WHERE u.is_active AND EXISTS (SELECT 1 FROM UNNEST(u.roles) role WHERE role LIKE $1)
		ORDER BY u.created_at, u.id
		LIMIT 1`
	usr, err := scanUser(repo.db.QueryRowContext(ctx, q, rolePrefix+"%"))
	if err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "finding user by role")
	}
	return usr, nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := `
		UPDATE users
		SET name = $2, username = $3, email = $4, is_active = $5, roles = $6,
		    password_hash = $7, updated_at = $8, last_login = $9
		WHERE id = $1`
	res, err := repo.db.ExecContext(
		ctx, q,
		usr.ID, usr.Name, usr.Username, usr.Email, usr.IsActive, pq.Array(usr.Roles),
		usr.PasswordHash, usr.UpdatedAt, nullTime(usr.LastLogin),
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}
