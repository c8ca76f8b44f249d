package config

import (
	"os"      // For environment variables
	"strconv" // For string to number conversion
	"time"    // For interval durations

	"github.com/joho/godotenv" // For loading .env files
)

// Config holds the application configuration
type Config struct {
	AppPort    string // Application port
	DBUser     string // Database user
	DBPassword string // Database password
	DBHost     string // Database host
	DBPort     string // Database port
	DBName     string // Database name
	JWTSecret  string // JWT secret key
	RedisAddr  string // Redis server address
	RedisPass  string // Redis password
	RedisDB    int    // Redis database number
	IsProd     bool   // Is production environment

	PaymentBaseURL       string // Payment processor API base URL
	PaymentAPIKey        string // Payment processor API key
	PaymentSecretKey     string // Payment processor secret, also signs webhooks
	PaymentContractCode  string // Contract code for reserved accounts
	PaymentSourceAccount string // Wallet account debited for disbursements

	ListingBaseURL string // Equity-token listing service base URL
	ListingAPIKey  string // Listing service API key

	YieldPeriod string // "daily" or "weekly"
	YieldCron   string // Cron spec for the accrual job

	MonitorInterval     time.Duration // Price monitor poll interval
	MonitorThresholdPct float64       // Price move (percent) that triggers watchlist alerts

	RateLimitRPS   float64 // Auth endpoint requests per second per client
	RateLimitBurst int     // Auth endpoint burst
}

// DSN returns the MySQL data source name
func (c *Config) DSN() string {
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?parseTime=true"
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present
	redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	return &Config{
		AppPort:    getEnv("APP_PORT", "8080"),     // Application port
		DBUser:     os.Getenv("DB_USER"),           // Database user
		DBPassword: os.Getenv("DB_PASSWORD"),       // Database password
		DBHost:     getEnv("DB_HOST", "127.0.0.1"), // Database host
		DBPort:     getEnv("DB_PORT", "3306"),      // Database port
		DBName:     os.Getenv("DB_NAME"),           // Database name
		JWTSecret:  os.Getenv("JWT_SECRET"),        // JWT secret key
		RedisAddr:  getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPass:  os.Getenv("REDIS_PASS"),
		RedisDB:    redisDB,
		IsProd:     os.Getenv("IS_PROD") == "true",

		PaymentBaseURL:       getEnv("PAYMENT_BASE_URL", "https://sandbox.monnify.com"),
		PaymentAPIKey:        os.Getenv("PAYMENT_API_KEY"),
		PaymentSecretKey:     os.Getenv("PAYMENT_SECRET_KEY"),
		PaymentContractCode:  os.Getenv("PAYMENT_CONTRACT_CODE"),
		PaymentSourceAccount: os.Getenv("PAYMENT_SOURCE_ACCOUNT"),

		ListingBaseURL: os.Getenv("LISTING_BASE_URL"),
		ListingAPIKey:  os.Getenv("LISTING_API_KEY"),

		YieldPeriod: getEnv("YIELD_PERIOD", "daily"),
		YieldCron:   getEnv("YIELD_CRON", "@daily"),

		MonitorInterval:     getDuration("MONITOR_INTERVAL", 5*time.Minute),
		MonitorThresholdPct: getFloat("MONITOR_THRESHOLD_PCT", 5),

		RateLimitRPS:   getFloat("RATE_LIMIT_RPS", 1),
		RateLimitBurst: getInt("RATE_LIMIT_BURST", 5),
	}
}

// getEnv returns the variable or a fallback when unset
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return fallback
}
