package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string

	CalBaseURL        string
	CalAPIKey         string
	CalAPIVersion     string
	CalBookingBaseURL string
	CalUsername       string
	CalTimezone       string

	LMSBaseURL string

	NATSURL   string
	JWTSecret string

	OTLPEndpoint     string
	TraceSampleRatio float64

	RateLimitMax        int
	RateLimitExpiration time.Duration
	HTTPClientTimeout   time.Duration
}

// Load reads .env.dev when present and then the process environment.
// Required keys are reported together in a single error.
func Load() (*Config, error) {
	if err := godotenv.Load(".env.dev"); err != nil {
		log.Println("No .env.dev file found, reading from environment variables")
	}

	cfg := &Config{
		Port:              getEnv("APP_PORT", "8003"),
		Environment:       getEnv("APP_ENV", "production"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		DBUser:            os.Getenv("DB_USER"),
		DBPassword:        os.Getenv("DB_PASSWORD"),
		DBHost:            os.Getenv("DB_HOST"),
		DBPort:            os.Getenv("DB_PORT"),
		DBName:            os.Getenv("DB_NAME"),
		CalBaseURL:        strings.TrimRight(getEnv("CAL_BASE_URL", "https://api.cal.com"), "/"),
		CalAPIKey:         os.Getenv("CAL_API_KEY"),
		CalAPIVersion:     getEnv("CAL_API_VERSION", "2024-06-14"),
		CalBookingBaseURL: strings.TrimRight(getEnv("CAL_BOOKING_BASE_URL", "https://cal.com"), "/"),
		CalUsername:       os.Getenv("CAL_USERNAME"),
		CalTimezone:       getEnv("CAL_TIMEZONE", "Asia/Kolkata"),
		LMSBaseURL:        strings.TrimRight(os.Getenv("LMS_BASE_URL"), "/"),
		NATSURL:           getEnv("NATS_URL", "nats://localhost:4222"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		OTLPEndpoint:      getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "jaeger:4317"),
	}

	var invalid []string

	cfg.RateLimitMax = parseInt("RATE_LIMIT_MAX", 100, &invalid)
	cfg.RateLimitExpiration = time.Duration(parseInt("RATE_LIMIT_EXPIRATION", 60, &invalid)) * time.Second
	cfg.HTTPClientTimeout = parseDuration("HTTP_CLIENT_TIMEOUT", 15*time.Second, &invalid)
	cfg.TraceSampleRatio = parseRatio("TRACE_SAMPLE_RATIO", 1.0, &invalid)

	if _, err := time.LoadLocation(cfg.CalTimezone); err != nil {
		invalid = append(invalid, "CAL_TIMEZONE")
	}

	if len(invalid) > 0 {
		return nil, fmt.Errorf("invalid environment variables: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// Require fails when any of the named settings is empty.
func (c *Config) Require(keys ...string) error {
	values := map[string]string{
		"DB_USER":      c.DBUser,
		"DB_PASSWORD":  c.DBPassword,
		"DB_HOST":      c.DBHost,
		"DB_PORT":      c.DBPort,
		"DB_NAME":      c.DBName,
		"CAL_API_KEY":  c.CalAPIKey,
		"CAL_USERNAME": c.CalUsername,
		"JWT_SECRET":   c.JWTSecret,
	}

	var missing []string
	for _, key := range keys {
		if strings.TrimSpace(values[key]) == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}

	return nil
}

func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.CalTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func parseInt(key string, fallback int, invalid *[]string) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		*invalid = append(*invalid, key)
		return fallback
	}
	return v
}

func parseDuration(key string, fallback time.Duration, invalid *[]string) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		*invalid = append(*invalid, key)
		return fallback
	}
	return v
}

func parseRatio(key string, fallback float64, invalid *[]string) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || v > 1 {
		*invalid = append(*invalid, key)
		return fallback
	}
	return v
}
