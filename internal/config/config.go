package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// HTTP boundary; an empty origin list disables CORS, zero disables
	// rate limiting.
	CORSAllowedOrigins []string
	RateLimitPerSecond float64
	RateLimitBurst     int

	// Business identity used in outbound messages
	BusinessName    string
	BusinessPhone   string
	BusinessAddress string

	// Channel provider credentials
	SMSProvider              string
	TelnyxAPIKey             string
	TelnyxMessagingProfileID string
	TelnyxBaseURL            string
	SendGridAPIKey           string
	SendGridFromEmail        string
	SendGridFromName         string
	ChannelSendTimeout       time.Duration

	// Scheduler worker
	WorkerEnabled      bool
	WorkerPollInterval time.Duration
	WorkerWindowHours  int

	// Scoring tunables. These are the product constants; env overrides exist so
	// operators can re-tune without a rebuild.
	RiskThresholdMedium   int
	RiskThresholdHigh     int
	RiskThresholdSevere   int
	RiskThresholdCritical int

	PredictionWeightHistory    float64
	PredictionWeightBooking    float64
	PredictionWeightEngagement float64
	PredictionWeightExternal   float64
	PredictionWeightTemporal   float64

	ProfileWeightReliability float64
	ProfileWeightEngagement  float64
	ProfileWeightRecency     float64
	ProfileWeightValue       float64
	ProfileWeightLoyalty     float64

	DeltaAppointmentCompleted int
	DeltaNoShow               int
	DeltaCancellation         int
	DeltaPayment              int
	DeltaEngagement           int

	CooldownCacheTTL time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", nil),
		RateLimitPerSecond: getEnvAsFloat("RATE_LIMIT_PER_SECOND", 0),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),

		BusinessName:    getEnv("BUSINESS_NAME", "SalonBase"),
		BusinessPhone:   getEnv("BUSINESS_PHONE", ""),
		BusinessAddress: getEnv("BUSINESS_ADDRESS", ""),

		SMSProvider:              strings.ToLower(strings.TrimSpace(getEnv("SMS_PROVIDER", "telnyx"))),
		TelnyxAPIKey:             getEnv("TELNYX_API_KEY", ""),
		TelnyxMessagingProfileID: getEnv("TELNYX_MESSAGING_PROFILE_ID", ""),
		TelnyxBaseURL:            getEnv("TELNYX_BASE_URL", "https://api.telnyx.com"),
		SendGridAPIKey:           getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail:        getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:         getEnv("SENDGRID_FROM_NAME", "SalonBase"),
		ChannelSendTimeout:       getEnvAsDuration("CHANNEL_SEND_TIMEOUT", 15*time.Second),

		WorkerEnabled:      getEnvAsBool("WORKER_ENABLED", true),
		WorkerPollInterval: getEnvAsDuration("WORKER_POLL_INTERVAL", 15*time.Minute),
		WorkerWindowHours:  getEnvAsInt("WORKER_WINDOW_HOURS", 72),

		RiskThresholdMedium:   getEnvAsInt("RISK_THRESHOLD_MEDIUM", 30),
		RiskThresholdHigh:     getEnvAsInt("RISK_THRESHOLD_HIGH", 60),
		RiskThresholdSevere:   getEnvAsInt("RISK_THRESHOLD_SEVERE", 80),
		RiskThresholdCritical: getEnvAsInt("RISK_THRESHOLD_CRITICAL", 90),

		PredictionWeightHistory:    getEnvAsFloat("PREDICTION_WEIGHT_HISTORY", 0.35),
		PredictionWeightBooking:    getEnvAsFloat("PREDICTION_WEIGHT_BOOKING", 0.25),
		PredictionWeightEngagement: getEnvAsFloat("PREDICTION_WEIGHT_ENGAGEMENT", 0.20),
		PredictionWeightExternal:   getEnvAsFloat("PREDICTION_WEIGHT_EXTERNAL", 0.15),
		PredictionWeightTemporal:   getEnvAsFloat("PREDICTION_WEIGHT_TEMPORAL", 0.05),

		ProfileWeightReliability: getEnvAsFloat("PROFILE_WEIGHT_RELIABILITY", 0.40),
		ProfileWeightEngagement:  getEnvAsFloat("PROFILE_WEIGHT_ENGAGEMENT", 0.25),
		ProfileWeightRecency:     getEnvAsFloat("PROFILE_WEIGHT_RECENCY", 0.15),
		ProfileWeightValue:       getEnvAsFloat("PROFILE_WEIGHT_VALUE", 0.10),
		ProfileWeightLoyalty:     getEnvAsFloat("PROFILE_WEIGHT_LOYALTY", 0.10),

		DeltaAppointmentCompleted: getEnvAsInt("DELTA_APPOINTMENT_COMPLETED", -5),
		DeltaNoShow:               getEnvAsInt("DELTA_NO_SHOW", 15),
		DeltaCancellation:         getEnvAsInt("DELTA_CANCELLATION", 8),
		DeltaPayment:              getEnvAsInt("DELTA_PAYMENT", -3),
		DeltaEngagement:           getEnvAsInt("DELTA_ENGAGEMENT", -2),

		CooldownCacheTTL: getEnvAsDuration("COOLDOWN_CACHE_TTL", 48*time.Hour),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated environment variable, trimming blanks
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
