package category

const (
	TypeIncome  = "income"
	TypeExpense = "expense"
)

type Category struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Type  string  `json:"type"`
	Icon  *string `json:"icon"`
	Color *string `json:"color"`
}

// defaultCategories is the seed set for a fresh install.
var defaultCategories = []Category{
	{Name: "Salary", Type: TypeIncome, Icon: ptr("💰"), Color: ptr("#4CAF50")},
	{Name: "Food", Type: TypeExpense, Icon: ptr("🍔"), Color: ptr("#FF5722")},
	{Name: "Transport", Type: TypeExpense, Icon: ptr("🚗"), Color: ptr("#2196F3")},
	{Name: "Entertainment", Type: TypeExpense, Icon: ptr("🎮"), Color: ptr("#9C27B0")},
	{Name: "Bills", Type: TypeExpense, Icon: ptr("💡"), Color: ptr("#FF9800")},
	{Name: "Health", Type: TypeExpense, Icon: ptr("🏥"), Color: ptr("#E91E63")},
	{Name: "Shopping", Type: TypeExpense, Icon: ptr("🛒"), Color: ptr("#00BCD4")},
	{Name: "Rent", Type: TypeExpense, Icon: ptr("🏠"), Color: ptr("#795548")},
	{Name: "Other Income", Type: TypeIncome, Icon: ptr("💵"), Color: ptr("#8BC34A")},
	{Name: "Other Expense", Type: TypeExpense, Icon: ptr("📦"), Color: ptr("#607D8B")},
}

func ptr(s string) *string {
	return &s
}
