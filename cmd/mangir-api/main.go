package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"mangir/internal/category"
	"mangir/internal/config"
	"mangir/internal/database"
	"mangir/internal/reset"
	"mangir/internal/stats"
	"mangir/internal/token"
	"mangir/internal/transaction"
	"mangir/internal/user"
)

const version = "1.0.0"

func main() {
	logger := log.New(os.Stdout, "mangir-api ", log.LstdFlags|log.LUTC)

	if err := godotenv.Load(); err != nil {
		logger.Println("no .env file found, using environment")
	}
	cfg := config.Load(":8000")

	db, err := database.Open(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(context.Background(), db); err != nil {
		logger.Fatalf("db migrate failed: %v", err)
	}

	tokens := token.NewService(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	resets := reset.NewMemoryStore(cfg.ResetCodeTTL)

	users := user.NewHandler(user.NewStore(db), tokens, resets, logger)
	categories := category.NewHandler(category.NewStore(db), logger)
	transactions := transaction.NewHandler(transaction.NewStore(db), users.RequireAuth, logger)
	statistics := stats.NewHandler(stats.NewStore(db), users.RequireAuth, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost", "http://localhost:8000", "http://127.0.0.1:8000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/", handleRoot)
	r.Get("/health", handleHealth)
	r.Mount("/api/auth", users.Routes())
	r.Mount("/api/categories", categories.Routes())
	r.Mount("/api/transactions", transactions.Routes())
	r.Mount("/api/stats", statistics.Routes())

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Printf("listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Println("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Printf("shutdown error: %v", err)
	}
}

func handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"message": "Mangir API",
		"version": version,
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}
