// Package config loads application settings from environment variables.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Settings holds all application configuration.
type Settings struct {
	// Server
	Host    string
	Port    string
	BaseURL string

	// Logging
	LogLevel  string
	LogFormat string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Session & auth
	SecretKey         string
	SessionCookieName string
	SessionMaxAge     time.Duration

	// Resend email channel
	ResendAPIKey    string
	ResendFromEmail string
	ResendAPIURL    string

	// Twilio SMS channel
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	// Escalation scheduler
	EscalationCheckInterval time.Duration
}

// Load reads settings from the environment. A .env file is honored when
// present.
//
// Recognized variables (defaults in parentheses):
//   - HOST (0.0.0.0), PORT (5032), BASE_URL (http://localhost:5032)
//   - LOG_LEVEL (info), LOG_FORMAT (json)
//   - DB_HOST (localhost), DB_PORT (5432), DB_USER, DB_PASSWORD,
//     DB_NAME (bullet), DB_SSLMODE (disable)
//   - SECRET_KEY (random), SESSION_COOKIE_NAME (bullet_session),
//     SESSION_MAX_AGE_SECONDS (604800)
//   - RESEND_API_KEY, RESEND_FROM_EMAIL,
//     RESEND_API_URL (https://api.resend.com/emails)
//   - TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN, TWILIO_FROM_NUMBER
//   - ESCALATION_CHECK_INTERVAL seconds (5)
func Load() *Settings {
	_ = godotenv.Load()

	s := &Settings{
		Host:    getEnv("HOST", "0.0.0.0"),
		Port:    getEnv("PORT", "5032"),
		BaseURL: strings.TrimRight(getEnv("BASE_URL", "http://localhost:5032"), "/"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", ""),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "bullet"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		SecretKey:         getEnv("SECRET_KEY", ""),
		SessionCookieName: getEnv("SESSION_COOKIE_NAME", "bullet_session"),
		SessionMaxAge:     getEnvSeconds("SESSION_MAX_AGE_SECONDS", 7*24*time.Hour),

		ResendAPIKey:    getEnv("RESEND_API_KEY", ""),
		ResendFromEmail: getEnv("RESEND_FROM_EMAIL", ""),
		ResendAPIURL:    getEnv("RESEND_API_URL", "https://api.resend.com/emails"),

		TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber: getEnv("TWILIO_FROM_NUMBER", ""),

		EscalationCheckInterval: getEnvSeconds("ESCALATION_CHECK_INTERVAL", 5*time.Second),
	}

	if s.SecretKey == "" {
		s.SecretKey = randomHex(32)
	}

	return s
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvSeconds(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return fallback
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failure means the process cannot produce secrets
		panic(err)
	}
	return hex.EncodeToString(b)
}
