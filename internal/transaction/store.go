package transaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var ErrCategoryNotFound = errors.New("category not found")

const foreignKeyViolationCode = "23503"

// Store is the persistence surface the transaction handlers need. Every
// operation is scoped to the owning user; rows belonging to someone else
// behave as if they did not exist.
type Store interface {
	CreateTransaction(ctx context.Context, userID int64, input UpsertRequest) (Transaction, error)
	ListTransactions(ctx context.Context, userID int64, filter ListFilter) ([]Transaction, error)
	GetTransaction(ctx context.Context, id, userID int64) (Transaction, error)
	UpdateTransaction(ctx context.Context, id, userID int64, input UpsertRequest) (Transaction, error)
	DeleteTransaction(ctx context.Context, id, userID int64) (bool, error)
}

// PostgresStore implements Store over database/sql.
type PostgresStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const selectColumns = `
	t.id, t.user_id, t.category_id, t.amount, t.description, t.transaction_date, t.created_at,
	c.id, c.name, c.type, c.icon, c.color
`

func (s *PostgresStore) CreateTransaction(ctx context.Context, userID int64, input UpsertRequest) (Transaction, error) {
	var id int64
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO transactions (user_id, category_id, amount, description, transaction_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, userID, input.CategoryID, input.Amount, input.Description, input.Date)
	if err := row.Scan(&id); err != nil {
		if isForeignKeyViolation(err) {
			return Transaction{}, ErrCategoryNotFound
		}
		return Transaction{}, err
	}
	return s.GetTransaction(ctx, id, userID)
}

func (s *PostgresStore) ListTransactions(ctx context.Context, userID int64, filter ListFilter) ([]Transaction, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = $1
	`
	args := []any{userID}

	if filter.Year != 0 && filter.Month != 0 {
		query += fmt.Sprintf(" AND EXTRACT(YEAR FROM t.transaction_date) = $%d AND EXTRACT(MONTH FROM t.transaction_date) = $%d", len(args)+1, len(args)+2)
		args = append(args, filter.Year, filter.Month)
	}

	query += fmt.Sprintf(" ORDER BY t.transaction_date DESC OFFSET $%d LIMIT $%d", len(args)+1, len(args)+2)
	args = append(args, filter.Skip, filter.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []Transaction
	for rows.Next() {
		var t Transaction
		if err := scanTransaction(rows.Scan, &t); err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return transactions, nil
}

func (s *PostgresStore) GetTransaction(ctx context.Context, id, userID int64) (Transaction, error) {
	var t Transaction
	row := s.db.QueryRowContext(ctx, `
		SELECT `+selectColumns+`
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE t.id = $1 AND t.user_id = $2
	`, id, userID)
	if err := scanTransaction(row.Scan, &t); err != nil {
		return Transaction{}, err
	}
	return t, nil
}

func (s *PostgresStore) UpdateTransaction(ctx context.Context, id, userID int64, input UpsertRequest) (Transaction, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET category_id = $1,
			amount = $2,
			description = $3,
			transaction_date = $4
		WHERE id = $5 AND user_id = $6
	`, input.CategoryID, input.Amount, input.Description, input.Date, id, userID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return Transaction{}, ErrCategoryNotFound
		}
		return Transaction{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Transaction{}, err
	}
	if affected == 0 {
		return Transaction{}, sql.ErrNoRows
	}
	return s.GetTransaction(ctx, id, userID)
}

func (s *PostgresStore) DeleteTransaction(ctx context.Context, id, userID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM transactions
		WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func scanTransaction(scan func(...any) error, t *Transaction) error {
	return scan(
		&t.ID, &t.UserID, &t.CategoryID, &t.Amount, &t.Description, &t.Date, &t.CreatedAt,
		&t.Category.ID, &t.Category.Name, &t.Category.Type, &t.Category.Icon, &t.Category.Color,
	)
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == foreignKeyViolationCode
	}
	return false
}
