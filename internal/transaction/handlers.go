package transaction

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"mangir/internal/user"
)

const defaultListLimit = 100

type Handler struct {
	store  Store
	auth   func(http.Handler) http.Handler
	logger *log.Logger
}

func NewHandler(store Store, auth func(http.Handler) http.Handler, logger *log.Logger) *Handler {
	return &Handler{
		store:  store,
		auth:   auth,
		logger: logger,
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(h.auth)

	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.Put("/{id}", h.handleUpdate)
	r.Delete("/{id}", h.handleDelete)

	return r
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	owner, ok := user.FromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var input UpsertRequest
	if err := h.decodeJSON(w, r, &input); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateInput(input); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.store.CreateTransaction(r.Context(), owner.ID, input)
	if err != nil {
		if errors.Is(err, ErrCategoryNotFound) {
			h.writeError(w, http.StatusNotFound, "category not found")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "failed to create transaction")
		return
	}

	h.writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	owner, ok := user.FromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	filter := ListFilter{
		Year:  queryInt(r, "year", 0),
		Month: queryInt(r, "month", 0),
		Skip:  queryInt(r, "skip", 0),
		Limit: queryInt(r, "limit", defaultListLimit),
	}
	if filter.Skip < 0 {
		filter.Skip = 0
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}

	transactions, err := h.store.ListTransactions(r.Context(), owner.ID, filter)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to load transactions")
		return
	}
	if transactions == nil {
		transactions = []Transaction{}
	}
	h.writeJSON(w, http.StatusOK, transactions)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	owner, ok := user.FromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := parseID(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	found, err := h.store.GetTransaction(r.Context(), id, owner.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(w, http.StatusNotFound, "transaction not found")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "failed to load transaction")
		return
	}

	h.writeJSON(w, http.StatusOK, found)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	owner, ok := user.FromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := parseID(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	var input UpsertRequest
	if err := h.decodeJSON(w, r, &input); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateInput(input); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.store.UpdateTransaction(r.Context(), id, owner.ID, input)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.writeError(w, http.StatusNotFound, "transaction not found")
		case errors.Is(err, ErrCategoryNotFound):
			h.writeError(w, http.StatusNotFound, "category not found")
		default:
			h.writeError(w, http.StatusInternalServerError, "failed to update transaction")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	owner, ok := user.FromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := parseID(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	deleted, err := h.store.DeleteTransaction(r.Context(), id, owner.ID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to delete transaction")
		return
	}
	if !deleted {
		h.writeError(w, http.StatusNotFound, "transaction not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func validateInput(input UpsertRequest) error {
	if input.CategoryID <= 0 {
		return errors.New("category_id is required")
	}
	if input.Date.IsZero() {
		return errors.New("transaction_date is required")
	}
	return nil
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func queryInt(r *http.Request, key string, fallback int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("body must contain a single JSON object")
	}
	return nil
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
