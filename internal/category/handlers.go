package category

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	store  Store
	logger *log.Logger
}

func NewHandler(store Store, logger *log.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger,
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/", h.handleList)
	r.Post("/seed", h.handleSeed)

	return r
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.ListCategories(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to load categories")
		return
	}
	if categories == nil {
		categories = []Category{}
	}
	h.writeJSON(w, http.StatusOK, categories)
}

// handleSeed inserts the default set on first call and is a no-op once any
// category exists.
func (h *Handler) handleSeed(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.CountCategories(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to check categories")
		return
	}
	if count > 0 {
		h.writeJSON(w, http.StatusOK, map[string]any{"message": "categories already exist"})
		return
	}

	if err := h.store.InsertCategories(r.Context(), defaultCategories); err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to seed categories")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"message": "categories seeded",
		"count":   len(defaultCategories),
	})
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
