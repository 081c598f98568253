package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/justaszie/spending-tracker/src/config"
	"github.com/justaszie/spending-tracker/src/database"
	"github.com/justaszie/spending-tracker/src/handlers"
	"github.com/justaszie/spending-tracker/src/logger"
	"github.com/justaszie/spending-tracker/src/processors"
	"github.com/justaszie/spending-tracker/src/security"
	"github.com/justaszie/spending-tracker/src/services"
	"github.com/justaszie/spending-tracker/src/storage"
	"github.com/justaszie/spending-tracker/src/store"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"remoteAddr", r.RemoteAddr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:3000": true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			logger.L.Debug("Handling OPTIONS preflight request", "path", r.URL.Path, "origin", origin)
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	cfg := config.Load()
	logger.InitLogger(cfg.LogLevel)
	logger.L.Info("Spending tracker backend server starting...")

	if cfg.JWTSecret == "" || len(cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid. Must be at least 32 bytes.")
		os.Exit(1)
	}

	logger.L.Info("Initializing database...", "path", cfg.DatabasePath)
	db, err := database.InitDB(cfg.DatabasePath)
	if err != nil {
		logger.L.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.L.Info("Database initialized successfully.")

	logger.L.Info("Initializing statement storage...", "root", cfg.StorageRoot)
	fileStorage, err := storage.NewLocalFileStorage(cfg.StorageRoot)
	if err != nil {
		logger.L.Error("Failed to initialize statement storage", "error", err)
		os.Exit(1)
	}

	logger.L.Info("Initializing services and handlers...")
	authService := security.NewAuthService(cfg.JWTSecret)

	rateService := services.NewECBRateService(cfg.RateAPIBaseURL, cfg.RateAPITimeout)
	currencyProcessor := processors.NewCurrencyProcessor(rateService)
	categorizer := processors.NewCategorizer()

	jobStore := store.NewJobStore(db)
	txnStore := store.NewTransactionStore(db)

	ingestService := services.NewIngestService(jobStore, txnStore, fileStorage, currencyProcessor, categorizer)

	authMiddleware := handlers.NewAuthMiddleware(authService)
	jobHandler := handlers.NewJobHandler(ingestService, cfg)

	logger.L.Info("Configuring routes...")
	rootMux := http.NewServeMux()
	apiRouter := http.NewServeMux()

	apiRouter.Handle("POST /api/ingest-jobs", authMiddleware.Require(http.HandlerFunc(jobHandler.HandleCreateJob)))
	apiRouter.Handle("GET /api/ingest-jobs/{id}", authMiddleware.Require(http.HandlerFunc(jobHandler.HandleGetJob)))

	rootMux.Handle("/api/", apiRouter)

	rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"message": "Spending tracker backend is running"})
		} else if !strings.HasPrefix(r.URL.Path, "/api/") {
			logger.L.Warn("Root level path not found", "method", r.Method, "path", r.URL.Path)
			http.NotFound(w, r)
		}
	})

	logger.L.Info("Applying global middleware...")
	finalHandler := enableCORS(rateLimitMiddleware(rootMux))

	serverAddr := ":" + cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      finalHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.L.Error("Failed to start server", "error", err)
		stdlog.Fatalf("Failed to start server: %v", err)
	} else if err == http.ErrServerClosed {
		logger.L.Info("Server stopped gracefully.")
	}
}
