package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds process-level settings loaded once at startup and treated as
// immutable for the process lifetime. Tournament-specific settings live in
// the YAML file referenced by TournamentFile.
type Config struct {
	CoordinatorPort int
	AgentHost       string
	PlayerBasePort  int
	RefereeBasePort int

	TournamentFile string
	SnapshotDir    string

	// Optional collaborators; empty values disable the feature cleanly.
	DatabaseURL          string
	JWTSecretKey         string
	OperatorPasswordHash string
	R2AccountID          string
	R2AccessKeyID        string
	R2SecretAccessKey    string
	R2BucketName         string
	R2PublicBaseURL      string
}

// Load reads configuration from environment variables, optionally seeded
// from a .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	coordinatorPort, err := portFromEnv("COORDINATOR_PORT", 8080)
	if err != nil {
		return nil, err
	}
	playerBasePort, err := portFromEnv("PLAYER_BASE_PORT", 8100)
	if err != nil {
		return nil, err
	}
	refereeBasePort, err := portFromEnv("REFEREE_BASE_PORT", 8200)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		CoordinatorPort:      coordinatorPort,
		AgentHost:            getEnvOrDefault("AGENT_HOST", "127.0.0.1"),
		PlayerBasePort:       playerBasePort,
		RefereeBasePort:      refereeBasePort,
		TournamentFile:       getEnvOrDefault("TOURNAMENT_FILE", "tournament.yaml"),
		SnapshotDir:          getEnvOrDefault("SNAPSHOT_DIR", "data"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		JWTSecretKey:         os.Getenv("JWT_SECRET_KEY"),
		OperatorPasswordHash: os.Getenv("OPERATOR_PASSWORD_HASH"),
		R2AccountID:          os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:        os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey:    os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:         os.Getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:      os.Getenv("R2_PUBLIC_BASE_URL"),
	}

	if cfg.JWTSecretKey != "" && cfg.OperatorPasswordHash == "" {
		return nil, fmt.Errorf("OPERATOR_PASSWORD_HASH is required when JWT_SECRET_KEY is set")
	}

	return cfg, nil
}

// OperatorAPIEnabled reports whether the operator HTTP surface should be
// mounted at all.
func (c *Config) OperatorAPIEnabled() bool {
	return c.JWTSecretKey != ""
}

// R2Enabled reports whether transcript upload is configured.
func (c *Config) R2Enabled() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" && c.R2BucketName != ""
}

func portFromEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	port, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	if port <= 0 || port > 65535 {
		return 0, fmt.Errorf("%s must be between 1 and 65535, got %d", key, port)
	}
	return port, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
