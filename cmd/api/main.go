package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/bryanwahyu/docbatch/internal/application"
	appbatches "github.com/bryanwahyu/docbatch/internal/application/batches"
	"github.com/bryanwahyu/docbatch/internal/config"
	domain "github.com/bryanwahyu/docbatch/internal/domain/batches"
	aiclient "github.com/bryanwahyu/docbatch/internal/infra/ai/openai"
	mysqlp "github.com/bryanwahyu/docbatch/internal/infra/db/mysql"
	postgresp "github.com/bryanwahyu/docbatch/internal/infra/db/postgres"
	"github.com/bryanwahyu/docbatch/internal/infra/httpserver"
	minioStore "github.com/bryanwahyu/docbatch/internal/infra/storage"
	"github.com/bryanwahyu/docbatch/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()

	// connect DB sesuai driver
	var repo domain.Repository
	var db *sql.DB
	switch cfg.Database.Driver {
	case "postgres":
		pdb, err := postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			log.Fatalf("postgres connect error: %v", err)
		}
		repo = postgresp.NewBatchRepository(pdb)
		db = pdb
	default:
		mdb, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			log.Fatalf("mysql connect error: %v", err)
		}
		repo = mysqlp.NewBatchRepository(mdb)
		db = mdb
	}
	defer db.Close()

	// init analyzer
	analyzer := aiclient.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model)

	// init report store (opsional)
	var reports domain.ReportStore
	if cfg.Minio.Endpoint != "" {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			log.Fatalf("minio init error: %v", err)
		}
		reports = store
	}

	// init service
	svc := &appbatches.Service{
		Repo:        repo,
		Analyzer:    analyzer,
		Reports:     reports,
		Clock:       application.SystemClock{},
		MaxParallel: cfg.Engine.MaxParallel,
		ItemTimeout: cfg.ItemTimeout(),
	}

	// init router
	mux := chi.NewRouter()
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(cors.Handler(cors.Options{
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))
	if len(cfg.Server.APIKeys) > 0 {
		mux.Use(middleware.APIKeyAuth(cfg.Server.APIKeys))
	}
	mux.Use(middleware.RateLimitMiddleware(30, 1))

	mux.Get("/health", middleware.HealthHandler(map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: db},
	}))
	mux.Mount("/", httpserver.NewRouter(svc))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
		// Run batches synchronously; write timeout must outlive slow runs
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
