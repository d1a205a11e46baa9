package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/linguaprep/assessment-engine/internal/ability"
	api "github.com/linguaprep/assessment-engine/internal/api/http"
	"github.com/linguaprep/assessment-engine/internal/attempt"
	auth "github.com/linguaprep/assessment-engine/internal/auth/middleware"
	"github.com/linguaprep/assessment-engine/internal/calibration"
	"github.com/linguaprep/assessment-engine/internal/config"
	"github.com/linguaprep/assessment-engine/internal/db"
	"github.com/linguaprep/assessment-engine/internal/engine"
	"github.com/linguaprep/assessment-engine/internal/examconfig"
	"github.com/linguaprep/assessment-engine/internal/itembank"
	"github.com/linguaprep/assessment-engine/internal/selector"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	items := itembank.NewSQLStore(dbh)
	queue := calibration.NewSQLQueue(dbh)
	svc := engine.New(engine.Deps{
		Configs:  examconfig.NewSQLStore(dbh),
		Items:    items,
		Attempts: attempt.NewSQLStore(dbh),
		Profiles: ability.NewSQLStore(dbh),
		Queue:    queue,
		Selector: selector.New(items, nil),
	}, time.Now, engine.WithMaxPause(cfg.MaxPause))

	// Deferred calibration: exam exposures drain in the background.
	applier := calibration.NewApplier(queue, items, cfg.CalibrationInterval, log.Default())
	go applier.Run(context.Background())

	// --- Auth ---
	authSvc := auth.NewAuthService(cfg.JWTSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc, auth.LoginConfig{
		AdminUser:     cfg.AdminUser,
		AdminPassHash: cfg.AdminPassHash,
		StudentSecret: cfg.StudentSecret,
	}))

	// Protected API (JWT → subject/role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))
		api.Mount(pr, svc)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
	})

	log.Printf("listening on %s (db=%s)", cfg.HTTPAddr, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
