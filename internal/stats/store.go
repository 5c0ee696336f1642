package stats

import (
	"context"
	"database/sql"
	"fmt"
)

type CategoryTotal struct {
	CategoryID   int64   `json:"category_id"`
	CategoryName string  `json:"category_name"`
	Icon         *string `json:"icon"`
	Color        *string `json:"color"`
	Total        float64 `json:"total"`
	Percentage   float64 `json:"percentage"`
}

// Store is the aggregation surface the stats handlers need.
type Store interface {
	SumByType(ctx context.Context, userID int64, categoryType string, w Window) (float64, error)
	CategoryTotals(ctx context.Context, userID int64, w Window) ([]CategoryTotal, error)
}

// PostgresStore implements Store over database/sql.
type PostgresStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// SumByType totals the user's transactions whose category has the given
// type within the window. A window with no rows sums to zero.
func (s *PostgresStore) SumByType(ctx context.Context, userID int64, categoryType string, w Window) (float64, error) {
	query := `
		SELECT COALESCE(SUM(t.amount), 0)
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = $1 AND c.type = $2
	`
	args := []any{userID, categoryType}
	clause, args := windowClause(w, args)
	query += clause

	var total float64
	row := s.db.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// CategoryTotals groups all the user's transactions in the window by
// category, regardless of type. Categories without rows are omitted;
// percentages are filled in by the caller.
func (s *PostgresStore) CategoryTotals(ctx context.Context, userID int64, w Window) ([]CategoryTotal, error) {
	query := `
		SELECT c.id, c.name, c.icon, c.color, SUM(t.amount) AS total
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = $1
	`
	args := []any{userID}
	clause, args := windowClause(w, args)
	query += clause
	query += ` GROUP BY c.id, c.name, c.icon, c.color ORDER BY total DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []CategoryTotal
	for rows.Next() {
		var ct CategoryTotal
		if err := rows.Scan(&ct.CategoryID, &ct.CategoryName, &ct.Icon, &ct.Color, &ct.Total); err != nil {
			return nil, err
		}
		totals = append(totals, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return totals, nil
}

func windowClause(w Window, args []any) (string, []any) {
	switch w.Period {
	case PeriodWeekly:
		clause := fmt.Sprintf(" AND t.transaction_date >= $%d AND t.transaction_date <= $%d", len(args)+1, len(args)+2)
		return clause, append(args, w.Start, w.End)
	case PeriodYearly:
		clause := fmt.Sprintf(" AND EXTRACT(YEAR FROM t.transaction_date) = $%d", len(args)+1)
		return clause, append(args, w.Year)
	default:
		clause := fmt.Sprintf(" AND EXTRACT(YEAR FROM t.transaction_date) = $%d AND EXTRACT(MONTH FROM t.transaction_date) = $%d", len(args)+1, len(args)+2)
		return clause, append(args, w.Year, w.Month)
	}
}
