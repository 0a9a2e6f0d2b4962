// Package config loads the server configuration from environment variables.
// Secrets have no fallback defaults; non-secret settings carry development
// defaults so a bare `go run` works against local services.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Chain    ChainConfig
	Auth     AuthConfig
	Game     GameConfig
	WS       WSConfig
}

type ServerConfig struct {
	Host string
	Port string
	Env  string
}

type DatabaseConfig struct {
	URL            string
	MaxConnections int32
	MinConnections int32
}

type CacheConfig struct {
	URL      string
	PoolSize int
}

type ChainConfig struct {
	RPCURL             string
	WSURL              string
	TitanProgramID     string
	GameProgramID      string
	BreachTokenMint    string
	BackendKeypairPath string
}

type AuthConfig struct {
	JWTSecret         string
	JWTExpiry         time.Duration
	SignatureExpiry   time.Duration
	CaptureTokenTTL   time.Duration
}

type GameConfig struct {
	CaptureRadiusMeters       float64
	CaptureCooldown           time.Duration
	MaxSpeedMps               float64
	LocationAccuracyThreshold float64
}

type WSConfig struct {
	IdleTimeout time.Duration
}

// Load reads the full configuration. It returns an error for missing
// required values rather than exiting so tests can exercise it.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("required environment variable DATABASE_URL is not set")
	}
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("required environment variable JWT_SECRET is not set")
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			Port: getEnvOrDefault("SERVER_PORT", "8080"),
			Env:  getEnvOrDefault("SERVER_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:            dbURL,
			MaxConnections: int32(getEnvInt("DATABASE_MAX_CONNECTIONS", 10)),
			MinConnections: int32(getEnvInt("DATABASE_MIN_CONNECTIONS", 2)),
		},
		Cache: CacheConfig{
			URL:      getEnvOrDefault("CACHE_URL", "redis://localhost:6379/0"),
			PoolSize: getEnvInt("CACHE_POOL_SIZE", 10),
		},
		Chain: ChainConfig{
			RPCURL:             getEnvOrDefault("CHAIN_RPC_URL", "http://localhost:8899"),
			WSURL:              getEnvOrDefault("CHAIN_WS_URL", "ws://localhost:8900"),
			TitanProgramID:     os.Getenv("CHAIN_TITAN_PROGRAM_ID"),
			GameProgramID:      os.Getenv("CHAIN_GAME_PROGRAM_ID"),
			BreachTokenMint:    os.Getenv("CHAIN_BREACH_TOKEN_MINT"),
			BackendKeypairPath: getEnvOrDefault("CHAIN_BACKEND_KEYPAIR_PATH", "keys/backend.json"),
		},
		Auth: AuthConfig{
			JWTSecret:       jwtSecret,
			JWTExpiry:       time.Duration(getEnvInt("JWT_EXPIRY_HOURS", 24)) * time.Hour,
			SignatureExpiry: time.Duration(getEnvInt("SIGNATURE_EXPIRY_SECONDS", 300)) * time.Second,
			CaptureTokenTTL: time.Duration(getEnvInt("CAPTURE_TOKEN_TTL_SECONDS", 300)) * time.Second,
		},
		Game: GameConfig{
			CaptureRadiusMeters:       getEnvFloat("GAME_CAPTURE_RADIUS_METERS", 50),
			CaptureCooldown:           time.Duration(getEnvInt("GAME_CAPTURE_COOLDOWN_SECONDS", 300)) * time.Second,
			MaxSpeedMps:               getEnvFloat("GAME_MAX_SPEED_MPS", 42),
			LocationAccuracyThreshold: getEnvFloat("GAME_LOCATION_ACCURACY_THRESHOLD", 100),
		},
		WS: WSConfig{
			IdleTimeout: time.Duration(getEnvInt("WS_IDLE_TIMEOUT_SECONDS", 600)) * time.Second,
		},
	}
	return cfg, nil
}

func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}
