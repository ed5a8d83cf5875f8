package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultAPIURL           = "http://localhost:4000"
	DefaultKeycloakURL      = "http://localhost:8080"
	DefaultKeycloakRealm    = "links-app"
	DefaultKeycloakClientID = "links-backend"
)

type Config struct {
	StateURL         string
	APIURL           string
	KeycloakURL      string
	KeycloakRealm    string
	KeycloakClientID string
	LogLevel         string
	ImportRate       float64       // requests per second, 0 = unpaced
	HTTPTimeout      time.Duration // 0 = no client-side timeout
}

func Load() *Config {
	_ = godotenv.Load() // Ignore error if .env not found

	return &Config{
		StateURL:         getEnv("LINKS_STATE_URL", defaultStateURL()),
		APIURL:           getEnv("LINKS_API_URL", DefaultAPIURL),
		KeycloakURL:      getEnv("KEYCLOAK_URL", DefaultKeycloakURL),
		KeycloakRealm:    getEnv("KEYCLOAK_REALM", DefaultKeycloakRealm),
		KeycloakClientID: getEnv("KEYCLOAK_CLIENT_ID", DefaultKeycloakClientID),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		ImportRate:       getFloat("IMPORT_RATE", 0),
		HTTPTimeout:      getDuration("HTTP_TIMEOUT", 0),
	}
}

func defaultStateURL() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "file:links-state.db"
	}
	return "file:" + filepath.Join(home, ".links", "state.db")
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || f < 0 {
		return fallback
	}
	return f
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}
