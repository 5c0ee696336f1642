package user

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var ErrEmailExists = errors.New("email already exists")

const uniqueViolationCode = "23505"

// Store is the persistence surface the auth handlers need.
type Store interface {
	CreateUser(ctx context.Context, email, fullName, passwordHash string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	UpdateProfile(ctx context.Context, id int64, fullName string, profileImage *string) (User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}

// PostgresStore implements Store over database/sql.
type PostgresStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateUser(ctx context.Context, email, fullName, passwordHash string) (User, error) {
	var user User
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO users (email, full_name, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, email, full_name, password_hash, profile_image, created_at
	`, email, fullName, passwordHash)
	if err := scanUser(row, &user); err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrEmailExists
		}
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, full_name, password_hash, profile_image, created_at
		FROM users
		WHERE email = $1
	`, email)
	if err := scanUser(row, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) UpdateProfile(ctx context.Context, id int64, fullName string, profileImage *string) (User, error) {
	var user User
	row := s.db.QueryRowContext(ctx, `
		UPDATE users
		SET full_name = $1,
			profile_image = COALESCE($2, profile_image)
		WHERE id = $3
		RETURNING id, email, full_name, password_hash, profile_image, created_at
	`, fullName, nullableString(profileImage), id)
	if err := scanUser(row, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET password_hash = $1
		WHERE id = $2
	`, passwordHash, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func scanUser(row *sql.Row, user *User) error {
	return row.Scan(&user.ID, &user.Email, &user.FullName, &user.PasswordHash, &user.ProfileImage, &user.CreatedAt)
}

func nullableString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationCode
	}
	return false
}
