package config

import (
	"log"
	"os"
	"strconv"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable so every component receives its knobs explicitly
// at construction time.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for password hashing
	UploadDir      string // directory for uploaded event images
	AdminEmail     string // contact address surfaced in moderation notices
}

// Load reads configuration from the environment. Required variables are
// enforced by must(); a missing value exits with a fatal log message.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),
		UploadDir:      getenv("UPLOAD_DIR", "uploads"),
		AdminEmail:     os.Getenv("ADMIN_EMAIL"),
	}
}

func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
