package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	api "github.com/orienta-lab/orienta/internal/api/http"
	"github.com/orienta-lab/orienta/internal/analytics"
	"github.com/orienta-lab/orienta/internal/assessment"
	"github.com/orienta-lab/orienta/internal/auth"
	"github.com/orienta-lab/orienta/internal/config"
	"github.com/orienta-lab/orienta/internal/db"
	"github.com/orienta-lab/orienta/internal/store"
	"github.com/orienta-lab/orienta/internal/vault"
)

func main() {
	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	vaultKey, err := cfg.VaultKey()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	st := store.NewSQLStore(dbh)
	v, err := vault.New(vaultKey)
	if err != nil {
		log.Fatalf("vault: %v", err)
	}

	tokens := auth.NewTokens(cfg.AuthSecret)
	sessions := auth.NewSessionGuard(st)
	lockout := auth.NewLockoutGuard(st)
	admin := auth.NewAdminAuth(cfg.AdminUser, cfg.AdminPassHash, tokens)
	sequencer := assessment.NewSequencer(st)
	aggregator := analytics.NewAggregator(st, v)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public: join flow + admin login
	r.Post("/auth/login", api.AdminLoginHandler(admin, lockout))
	r.Get("/classes/{code}", api.GetClassHandler(st))
	r.Post("/register", api.RegisterHandler(st, sessions, tokens, sequencer))

	// Student flow: every submission re-validates the stored session token
	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireStudent(tokens, sessions))
		pr.Get("/me", api.MeHandler(st))
		pr.Get("/next", api.NextHandler(sequencer))
		pr.Post("/instruments/{route}", api.SubmitHandler(st, v, sequencer))
	})

	// Admin surface
	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireAdmin(tokens))
		pr.Post("/admin/classes", api.CreateClassHandler(st))
		pr.Get("/admin/classes", api.ListClassesHandler(st))
		pr.Delete("/admin/classes/{id}", api.DeleteClassHandler(st))
		pr.Get("/admin/dashboard", api.DashboardHandler(aggregator))
		pr.Get("/admin/classes/{id}/stats", api.GroupStatsHandler(aggregator))
		pr.Get("/admin/classes/{id}/students", api.RosterHandler(st, v))
		pr.Get("/admin/students/{id}/health", api.HealthDetailHandler(st, v))
		pr.Get("/admin/health-history", api.HealthHistoryHandler(st, v))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Printf("listening on %s", cfg.HTTPAddr)
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		log.Fatalf("server: %v", err)
	}
}
