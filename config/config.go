package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DBUrl       string
	Environment string // "debug" or "release"

	// Supabase (hosted auth + database)
	SupabaseUrl            string
	SupabaseKey            string // anon/public key
	SupabaseServiceRoleKey string
	SupabaseJWTSecret      string

	FrontendURL string

	// iCount invoicing integration
	ICountWebhookSecret string
	ICountForwardURL    string // secondary endpoint; empty = debug variant (no forwarding)
	ICountUser          string
	ICountCompany       string
	ICountPassword      string

	// SMTP (lead notifications)
	SMTPHost      string
	SMTPPort      string
	SMTPUsername  string
	SMTPPassword  string
	SMTPFromEmail string
	SalesEmailTo  string

	// Redis/Upstash
	UpstashRedisURL      string
	UpstashRedisPassword string

	// S3-compatible photo storage
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Region          string
	S3Bucket          string
	S3Endpoint        string // non-AWS providers (e.g. Wasabi)

	// Rate limiting
	RateLimitWindowSeconds   int
	RateLimitLoginThreshold  int
	RateLimitGlobalThreshold int

	// Auth reconciliation timing. Defaults mirror the frontend contract:
	// the UI must never hang on a slow backend.
	ProbeTimeout         time.Duration
	SessionFetchTimeout  time.Duration
	AuthInitTimeout      time.Duration
	ClientRecordTimeout  time.Duration
	UnifiedEscalation    time.Duration
	AdminSessionCacheTTL time.Duration

	// Admin role allow-list (comma separated emails), in addition to
	// app_metadata role claims.
	AdminEmails []string
}

func LoadConfig() (*Config, error) {
	// Only effective locally; ignored in production when no .env exists.
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		DBUrl:       getEnv("DATABASE_URL", ""),
		Environment: getEnv("GIN_MODE", "debug"),

		// Trailing slash breaks GoTrue paths (".co//auth"), so strip it.
		SupabaseUrl:            strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
		SupabaseKey:            getEnv("SUPABASE_KEY", getEnv("SUPABASE_ANON_KEY", "")),
		SupabaseServiceRoleKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
		SupabaseJWTSecret:      getEnv("SUPABASE_JWT_SECRET", getEnv("SUPABASE_JWT_KEY", "")),

		FrontendURL: strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),

		ICountWebhookSecret: getEnv("ICOUNT_WEBHOOK_SECRET", ""),
		ICountForwardURL:    getEnv("ICOUNT_FORWARD_URL", ""),
		ICountUser:          getEnv("ICOUNT_USER", ""),
		ICountCompany:       getEnv("ICOUNT_COMPANY", ""),
		ICountPassword:      getEnv("ICOUNT_PASSWORD", ""),

		SMTPHost:      getEnv("SMTP_HOST", "smtp-relay.brevo.com"),
		SMTPPort:      getEnv("SMTP_PORT", "587"),
		SMTPUsername:  getEnv("SMTP_USERNAME", ""),
		SMTPPassword:  getEnv("SMTP_PASSWORD", ""),
		SMTPFromEmail: getEnv("SMTP_FROM_EMAIL", "noreply@dishlens.io"),
		SalesEmailTo:  getEnv("SALES_EMAIL_TO", "sales@dishlens.io"),

		UpstashRedisURL:      getEnv("UPSTASH_REDIS_URL", ""),
		UpstashRedisPassword: getEnv("UPSTASH_REDIS_PASSWORD", ""),

		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		S3Region:          getEnv("S3_REGION", "eu-central-1"),
		S3Bucket:          getEnv("S3_BUCKET", "dishlens-photos"),
		S3Endpoint:        getEnv("S3_ENDPOINT", ""),

		RateLimitWindowSeconds:   getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitLoginThreshold:  getEnvInt("RATE_LIMIT_LOGIN_THRESHOLD", 10),
		RateLimitGlobalThreshold: getEnvInt("RATE_LIMIT_GLOBAL_THRESHOLD", 100),

		ProbeTimeout:         getEnvDuration("AUTH_PROBE_TIMEOUT", 5*time.Second),
		SessionFetchTimeout:  getEnvDuration("AUTH_SESSION_FETCH_TIMEOUT", 8*time.Second),
		AuthInitTimeout:      getEnvDuration("AUTH_INIT_TIMEOUT", 20*time.Second),
		ClientRecordTimeout:  getEnvDuration("CLIENT_RECORD_TIMEOUT", 5*time.Second),
		UnifiedEscalation:    getEnvDuration("UNIFIED_ESCALATION_TIMEOUT", 20*time.Second),
		AdminSessionCacheTTL: getEnvDuration("ADMIN_SESSION_CACHE_TTL", 30*time.Minute),
	}

	if admins := getEnv("ADMIN_EMAILS", ""); admins != "" {
		for _, e := range strings.Split(admins, ",") {
			if e = strings.TrimSpace(strings.ToLower(e)); e != "" {
				cfg.AdminEmails = append(cfg.AdminEmails, e)
			}
		}
	}

	// Basic sanity warnings; the process still starts so that health
	// endpoints can report the misconfiguration.
	if cfg.DBUrl == "" {
		log.Println("WARNING: DATABASE_URL is missing. Application may fail to connect.")
	}
	if cfg.SupabaseUrl == "" {
		log.Println("WARNING: SUPABASE_URL is missing. Authentication will be unavailable.")
	}
	if cfg.ICountWebhookSecret == "" {
		log.Println("WARNING: ICOUNT_WEBHOOK_SECRET not set. Webhook endpoint will reject all calls.")
	}
	if cfg.UpstashRedisURL == "" {
		log.Println("WARNING: UPSTASH_REDIS_URL not configured. Rate limiting and the admin session cache will use in-memory fallbacks.")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt returns an integer environment variable or fallback if not set/invalid
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvDuration returns a duration environment variable ("5s", "2m") or fallback
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
