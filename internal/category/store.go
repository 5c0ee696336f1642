package category

import (
	"context"
	"database/sql"
)

// Store is the persistence surface the category handlers need.
type Store interface {
	ListCategories(ctx context.Context) ([]Category, error)
	CountCategories(ctx context.Context) (int64, error)
	InsertCategories(ctx context.Context, categories []Category) error
}

// PostgresStore implements Store over database/sql.
type PostgresStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, type, icon, color
		FROM categories
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Type, &c.Icon, &c.Color); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return categories, nil
}

func (s *PostgresStore) CountCategories(ctx context.Context) (int64, error) {
	var count int64
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`)
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *PostgresStore) InsertCategories(ctx context.Context, categories []Category) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, c := range categories {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO categories (name, type, icon, color)
			VALUES ($1, $2, $3, $4)
		`, c.Name, c.Type, c.Icon, c.Color); err != nil {
			return err
		}
	}

	return tx.Commit()
}
