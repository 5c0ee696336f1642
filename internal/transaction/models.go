package transaction

import (
	"time"

	"mangir/internal/category"
)

type Transaction struct {
	ID          int64             `json:"id"`
	UserID      int64             `json:"user_id"`
	CategoryID  int64             `json:"category_id"`
	Amount      float64           `json:"amount"`
	Description *string           `json:"description"`
	Date        time.Time         `json:"transaction_date"`
	CreatedAt   time.Time         `json:"created_at"`
	Category    category.Category `json:"category"`
}

type UpsertRequest struct {
	CategoryID  int64     `json:"category_id"`
	Amount      float64   `json:"amount"`
	Description *string   `json:"description"`
	Date        time.Time `json:"transaction_date"`
}

// ListFilter narrows a user's transaction list. Year and Month apply only
// when both are set.
type ListFilter struct {
	Year  int
	Month int
	Skip  int
	Limit int
}
