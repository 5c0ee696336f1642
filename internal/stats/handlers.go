package stats

import (
	"encoding/json"
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"mangir/internal/category"
	"mangir/internal/user"
)

type Totals struct {
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
	Balance float64 `json:"balance"`
}

type Handler struct {
	store  Store
	auth   func(http.Handler) http.Handler
	logger *log.Logger
	now    func() time.Time
}

func NewHandler(store Store, auth func(http.Handler) http.Handler, logger *log.Logger) *Handler {
	return &Handler{
		store:  store,
		auth:   auth,
		logger: logger,
		now:    time.Now,
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(h.auth)

	r.Get("/period", h.handlePeriod)
	r.Get("/by-category-period", h.handleCategoryPeriod)

	return r
}

func (h *Handler) handlePeriod(w http.ResponseWriter, r *http.Request) {
	owner, ok := user.FromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	window, err := h.resolveWindow(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	income, err := h.store.SumByType(r.Context(), owner.ID, category.TypeIncome, window)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	expense, err := h.store.SumByType(r.Context(), owner.ID, category.TypeExpense, window)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}

	h.writeJSON(w, http.StatusOK, Totals{
		Income:  income,
		Expense: expense,
		Balance: income - expense,
	})
}

func (h *Handler) handleCategoryPeriod(w http.ResponseWriter, r *http.Request) {
	owner, ok := user.FromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	window, err := h.resolveWindow(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	totals, err := h.store.CategoryTotals(r.Context(), owner.ID, window)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}

	var grand float64
	for _, ct := range totals {
		grand += ct.Total
	}
	for i := range totals {
		if grand > 0 {
			totals[i].Percentage = round2(totals[i].Total / grand * 100)
		}
	}
	if totals == nil {
		totals = []CategoryTotal{}
	}

	h.writeJSON(w, http.StatusOK, totals)
}

func (h *Handler) resolveWindow(r *http.Request) (Window, error) {
	q := r.URL.Query()
	return ResolveWindow(
		q.Get("period"),
		queryInt(r, "year"),
		queryInt(r, "month"),
		q.Get("week_start"),
		h.now(),
	)
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func queryInt(r *http.Request, key string) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return 0
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return parsed
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Printf("json encode error: %v", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
