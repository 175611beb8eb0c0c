package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds configuration for the chat gateway.
type Config struct {
	HTTPPort    string
	JWTSecret   []byte
	FrontendURL string

	// AdminEmails is the allow-list consulted once, at account creation.
	// After that admin status lives in the user directory only.
	AdminEmails []string

	// EnvironmentAPIKey is the last-resort upstream credential.
	EnvironmentAPIKey string

	Database DatabaseConfig
	Redis    RedisConfig
	Google   GoogleOAuthConfig
	Upstream UpstreamConfig
	Audit    AuditConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// GoogleOAuthConfig holds the OAuth client registration
type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	StateTTL     time.Duration
}

// UpstreamConfig holds settings for the chat completion relay
type UpstreamConfig struct {
	BaseURL        string
	Model          string
	SystemPrompt   string
	RequestTimeout time.Duration
}

// AuditConfig holds configuration for the S3-backed chat audit sink
type AuditConfig struct {
	Enabled       bool          // Whether to ship audit records to S3
	BufferKey     string        // Redis list used as the staging buffer
	BatchSize     int           // Flush to S3 after this many records
	FlushInterval time.Duration // Flush to S3 after this duration
	S3Bucket      string        // S3 bucket name
	S3Region      string        // AWS region
	S3Prefix      string        // Prefix for S3 keys (e.g., "audit/")
	PodName       string        // Pod identifier for multi-pod deployments
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

func getEnvStringList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}

	var out []string
	for _, item := range strings.Split(val, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	port := getEnvString("HTTP_PORT", "8080")

	// The signing secret must come from the environment, never from source.
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	googleClientID := os.Getenv("GOOGLE_CLIENT_ID")
	googleClientSecret := os.Getenv("GOOGLE_CLIENT_SECRET")
	if googleClientID == "" || googleClientSecret == "" {
		return nil, fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required")
	}

	frontendURL := getEnvString("FRONTEND_URL", "http://localhost:3000")

	cfg := &Config{
		HTTPPort:          port,
		JWTSecret:         []byte(jwtSecret),
		FrontendURL:       frontendURL,
		AdminEmails:       getEnvStringList("ADMIN_EMAILS"),
		EnvironmentAPIKey: getEnvString("OPENAI_API_KEY", ""),
		Database: DatabaseConfig{
			URL:             dbURL,
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
		},
		Redis: RedisConfig{
			Address:      getEnvString("REDIS_ADDRESS", "localhost:6379"),
			Password:     getEnvString("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Google: GoogleOAuthConfig{
			ClientID:     googleClientID,
			ClientSecret: googleClientSecret,
			RedirectURL:  getEnvString("GOOGLE_REDIRECT_URL", frontendURL+"/auth/google"),
			StateTTL:     getEnvDuration("OAUTH_STATE_TTL", 10*time.Minute),
		},
		Upstream: UpstreamConfig{
			BaseURL:        getEnvString("UPSTREAM_BASE_URL", "https://api.openai.com/v1"),
			Model:          getEnvString("UPSTREAM_MODEL", "gpt-4o"),
			SystemPrompt:   getEnvString("UPSTREAM_SYSTEM_PROMPT", "You are a helpful assistant."),
			RequestTimeout: getEnvDuration("UPSTREAM_REQUEST_TIMEOUT", 60*time.Second),
		},
		Audit: AuditConfig{
			Enabled:       getEnvString("AUDIT_SINK_ENABLED", "false") == "true",
			BufferKey:     getEnvString("AUDIT_SINK_BUFFER_KEY", "gateway:audit"),
			BatchSize:     getEnvInt("AUDIT_SINK_BATCH_SIZE", 1000),
			FlushInterval: getEnvDuration("AUDIT_SINK_FLUSH_INTERVAL", 5*time.Minute),
			S3Bucket:      getEnvString("AUDIT_SINK_S3_BUCKET", ""),
			S3Region:      getEnvString("AUDIT_SINK_S3_REGION", "us-east-1"),
			S3Prefix:      getEnvString("AUDIT_SINK_S3_PREFIX", "audit/"),
			PodName:       getEnvString("POD_NAME", "gateway-0"),
		},
	}

	return cfg, nil
}

// IsAdminEmail reports whether email is on the bootstrap allow-list.
func (c *Config) IsAdminEmail(email string) bool {
	for _, candidate := range c.AdminEmails {
		if strings.EqualFold(candidate, email) {
			return true
		}
	}
	return false
}
