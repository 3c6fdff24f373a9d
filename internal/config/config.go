package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port string

	DBHost string
	DBPort string
	DBName string
	DBUser string
	DBPass string

	// DBMaxOpenConns is the maximum number of open connections to the database (default 25).
	DBMaxOpenConns int
	// DBMaxIdleConns is the maximum number of idle connections (default 5).
	DBMaxIdleConns int

	JWTSecret string

	// Env is "dev" (default) or "prod". When "prod", JWT_SECRET must be set and not the default.
	Env string

	// JWTExpireHours is the token lifetime in hours (default 24). Set via JWT_EXPIRE_HOURS.
	JWTExpireHours int

	// CredentialsKey is the base64-encoded 32-byte AES key used to encrypt
	// stored cloud credentials at rest. Set via CREDENTIALS_KEY.
	CredentialsKey string

	// EngineURLs maps provider type to the base URL of its compliance engine
	// (ClusterIP services in-cluster). Overridable per provider via
	// AWS_ENGINE_URL, AZURE_ENGINE_URL, etc.
	EngineURLs map[string]string

	// PollInterval is how often the scheduler checks for due schedules
	// (default 60s). Set via SCHEDULER_INTERVAL_SECONDS.
	PollInterval time.Duration

	// SchedulerWorkers bounds how many due schedules run concurrently within
	// one poll (default 4). Set via SCHEDULER_WORKERS.
	SchedulerWorkers int

	// TLSCertFile and TLSKeyFile enable HTTPS when both are set.
	// When empty, the API listens with plain HTTP.
	TLSCertFile string
	TLSKeyFile  string

	// LogFormat is "text" (default) or "json" for structured logging.
	LogFormat string

	// CORSAllowedOrigins is a list of origins allowed for CORS (e.g. https://app.example.com).
	// Set via CORS_ALLOWED_ORIGINS (comma-separated). When empty, no CORS headers are sent.
	CORSAllowedOrigins []string
}

func Load() Config {
	return Config{
		Port: getEnv("PORT", "8080"),

		DBHost: getEnv("DB_HOST", "localhost"),
		DBPort: getEnv("DB_PORT", "5432"),
		DBName: getEnv("DB_NAME", "onboarding"),
		DBUser: getEnv("DB_USER", "onboarding"),
		DBPass: getEnv("DB_PASS", "onboarding"),

		DBMaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),

		JWTSecret:      getEnv("JWT_SECRET", "supersecretkey"),
		Env:            getEnv("ENV", "dev"),
		JWTExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),

		CredentialsKey: getEnv("CREDENTIALS_KEY", ""),

		EngineURLs: map[string]string{
			"aws":      getEnv("AWS_ENGINE_URL", "http://aws-compliance-engine.engines.svc.cluster.local"),
			"azure":    getEnv("AZURE_ENGINE_URL", "http://azure-compliance-engine.engines.svc.cluster.local"),
			"gcp":      getEnv("GCP_ENGINE_URL", "http://gcp-compliance-engine.engines.svc.cluster.local"),
			"alicloud": getEnv("ALICLOUD_ENGINE_URL", "http://alicloud-compliance-engine.engines.svc.cluster.local"),
			"oci":      getEnv("OCI_ENGINE_URL", "http://oci-compliance-engine.engines.svc.cluster.local"),
			"ibm":      getEnv("IBM_ENGINE_URL", "http://ibm-compliance-engine.engines.svc.cluster.local"),
		},

		PollInterval:     time.Duration(getEnvInt("SCHEDULER_INTERVAL_SECONDS", 60)) * time.Second,
		SchedulerWorkers: getEnvInt("SCHEDULER_WORKERS", 4),

		TLSCertFile: getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:  getEnv("TLS_KEY_FILE", ""),

		LogFormat: getEnv("LOG_FORMAT", "text"),

		CORSAllowedOrigins: parseCORSOrigins(getEnv("CORS_ALLOWED_ORIGINS", "")),
	}
}

// parseCORSOrigins splits a comma-separated list of origins and trims spaces. Empty strings are omitted.
func parseCORSOrigins(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if o := strings.TrimSpace(p); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
