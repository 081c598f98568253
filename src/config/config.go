package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	JWTSecret          string
	Port               string
	DatabasePath       string
	LogLevel           string
	StorageRoot        string
	MaxUploadSizeBytes int64

	RateAPIBaseURL string
	RateAPITimeout time.Duration
}

// Load reads configuration from a .env file (if present) and the OS
// environment. The returned value is passed explicitly into the services
// that need it; there is no package-level config singleton.
func Load() *AppConfig {
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found or error loading .env file. Relying on OS environment variables and defaults. Error (if any):", err)
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	jwtSecret := getEnv("JWT_SECRET", "your-very-secure-and-long-jwt-secret-key-for-hs256-minimum-32-bytes")
	if jwtSecret == "your-very-secure-and-long-jwt-secret-key-for-hs256-minimum-32-bytes" {
		log.Println("WARNING: Using default insecure JWT_SECRET. Set JWT_SECRET environment variable for production.")
	}

	maxUploadSizeBytesStr := getEnv("MAX_UPLOAD_SIZE_BYTES", "10485760")
	maxUploadSizeBytes, err := strconv.ParseInt(maxUploadSizeBytesStr, 10, 64)
	if err != nil {
		log.Printf("WARNING: Invalid MAX_UPLOAD_SIZE_BYTES format '%s'. Using default 10MB. Error: %v", maxUploadSizeBytesStr, err)
		maxUploadSizeBytes = 10 * 1024 * 1024
	}

	rateAPITimeoutStr := getEnv("RATE_API_TIMEOUT", "20s")
	rateAPITimeout, err := time.ParseDuration(rateAPITimeoutStr)
	if err != nil {
		log.Printf("WARNING: Invalid RATE_API_TIMEOUT format '%s'. Using default 20s. Error: %v", rateAPITimeoutStr, err)
		rateAPITimeout = 20 * time.Second
	}

	return &AppConfig{
		JWTSecret:          jwtSecret,
		Port:               getEnv("PORT", "8080"),
		DatabasePath:       getEnv("DATABASE_PATH", "./spending-tracker.db"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		StorageRoot:        getEnv("STORAGE_ROOT", "./statements"),
		MaxUploadSizeBytes: maxUploadSizeBytes,
		RateAPIBaseURL:     getEnv("RATE_API_BASE_URL", "https://data-api.ecb.europa.eu/service/data/EXR"),
		RateAPITimeout:     rateAPITimeout,
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
