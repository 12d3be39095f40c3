package config

import (
	"os"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	// Verification policy.
	OTPTTL         time.Duration // lifetime of an issued code
	ResendCooldown time.Duration // min gap between sends per (identifier, channel); 0 disables
	SessionIdleTTL time.Duration // idle lifetime of a verification session

	// OTP store backend: "memory", "dynamo" or "postgres".
	OTPStore string

	// SMS provider: "bulksms" or "sns".
	SMSProvider string

	AWSRegion        string
	AWSEndpointURL   string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID   string
	AWSSecretKey     string
	DynamoTableCodes string
	SNSRegion        string

	DatabaseURL string

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	BulkSMSBaseURL    string
	BulkSMSAuthKey    string
	BulkSMSRoute      string
	BulkSMSSenderID   string
	BulkSMSTemplateID string

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration

	CompletionWebhookURL string

	AllowedOrigins []string // CORS allowed origins
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		OTPTTL:         getEnvDuration("OTP_TTL", 10*time.Minute),
		ResendCooldown: getEnvDuration("OTP_RESEND_COOLDOWN", 60*time.Second),
		SessionIdleTTL: getEnvDuration("SESSION_IDLE_TTL", 30*time.Minute),

		OTPStore:    getEnv("OTP_STORE", "memory"),
		SMSProvider: getEnv("SMS_PROVIDER", "bulksms"),

		AWSRegion:        getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL:   getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID:   getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:     getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTableCodes: getEnv("DYNAMO_TABLE_VERIFICATION_CODES", "verification_codes"),
		SNSRegion:        getEnv("SNS_REGION", "us-east-1"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@stocklaabh.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		BulkSMSBaseURL:    getEnv("BULKSMS_BASE_URL", "https://api.msg91.com/api/v5/otp"),
		BulkSMSAuthKey:    getEnv("BULKSMS_AUTH_KEY", ""),
		BulkSMSRoute:      getEnv("BULKSMS_ROUTE", "4"),
		BulkSMSSenderID:   getEnv("BULKSMS_SENDER_ID", "STKLBH"),
		BulkSMSTemplateID: getEnv("BULKSMS_TEMPLATE_ID", ""),

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         getEnvDuration("JWT_EXPIRY", 168*time.Hour),

		CompletionWebhookURL: getEnv("COMPLETION_WEBHOOK_URL", ""),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
