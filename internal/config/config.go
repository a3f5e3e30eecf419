package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	LogLevel    string
	HTTPAddr    string

	// StripeSecretKey authenticates outbound Stripe API calls.
	StripeSecretKey string
	// StripeWebhookSecrets are tried in declaration order when verifying
	// incoming webhook signatures. Several secrets can be valid at once,
	// e.g. a platform endpoint and a Connect endpoint sharing one URL.
	StripeWebhookSecrets []string
	// SkipWebhookVerification bypasses signature checks entirely. Test-mode
	// escape hatch; refused when Environment is "production".
	SkipWebhookVerification bool

	ResendAPIKey string
	EmailFrom    string
	AppBaseURL   string

	OTLPEndpoint   string
	MetricsEnabled bool

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")

	skipVerification := getenvBool("SKIP_WEBHOOK_VERIFICATION", false)
	if environment == "production" {
		skipVerification = false
	}

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "givebridge"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: environment,
		LogLevel:    getenv("LOG_LEVEL", "info"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		StripeSecretKey: strings.TrimSpace(getenv("STRIPE_SECRET_KEY", "")),
		StripeWebhookSecrets: collectSecrets(
			getenv("STRIPE_WEBHOOK_SECRET", ""),
			getenv("STRIPE_WEBHOOK_SECRET_2", ""),
			getenv("STRIPE_WEBHOOK_SECRET_3", ""),
		),
		SkipWebhookVerification: skipVerification,

		ResendAPIKey: strings.TrimSpace(getenv("RESEND_API_KEY", "")),
		EmailFrom:    getenv("EMAIL_FROM", "Givebridge <donations@givebridge.org>"),
		AppBaseURL:   strings.TrimRight(getenv("APP_BASE_URL", "http://localhost:3000"), "/"),

		OTLPEndpoint:   getenv("OTLP_ENDPOINT", "localhost:4317"),
		MetricsEnabled: getenvBool("METRICS_ENABLED", false),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "givebridge"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 2),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 10),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 30),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 5),
	}

	return cfg
}

func collectSecrets(values ...string) []string {
	secrets := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		secrets = append(secrets, value)
	}
	return secrets
}

func getenv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}
