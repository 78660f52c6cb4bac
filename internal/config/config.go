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
	HTTPPort    string
	LogLevel    string

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

	RedisAddr     string
	RedisPassword string

	Hospital HospitalConfig
	Billing  BillingConfig
	Email    EmailConfig
	Storage  StorageConfig
}

// HospitalConfig is the identity block printed on every invoice.
type HospitalConfig struct {
	Name     string
	Address  string
	Phone    string
	Email    string
	LogoPath string
	Footer   string
}

type BillingConfig struct {
	DefaultTaxRate float64
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

type StorageConfig struct {
	Endpoint       string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
	PresignMinutes int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "medicore"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPPort:    getenv("HTTP_PORT", "8080"),
		LogLevel:    getenv("LOG_LEVEL", "info"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "medicore"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),

		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),

		Hospital: HospitalConfig{
			Name:     getenv("HOSPITAL_NAME", "MediCore General Hospital"),
			Address:  getenv("HOSPITAL_ADDRESS", ""),
			Phone:    getenv("HOSPITAL_PHONE", ""),
			Email:    getenv("HOSPITAL_EMAIL", ""),
			LogoPath: getenv("HOSPITAL_LOGO_PATH", ""),
			Footer:   getenv("HOSPITAL_INVOICE_FOOTER", "This is a computer generated invoice and does not require a signature."),
		},
		Billing: BillingConfig{
			DefaultTaxRate: getenvFloat("BILLING_DEFAULT_TAX_RATE", 0.18),
		},
		Email: EmailConfig{
			SMTPHost:     getenv("SMTP_HOST", ""),
			SMTPPort:     getenvInt("SMTP_PORT", 587),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SMTPFrom:     getenv("SMTP_FROM", "billing@medicore.local"),
		},
		Storage: StorageConfig{
			Endpoint:       getenv("STORAGE_ENDPOINT", ""),
			AccessKey:      getenv("STORAGE_ACCESS_KEY", ""),
			SecretKey:      getenv("STORAGE_SECRET_KEY", ""),
			Bucket:         getenv("STORAGE_BUCKET", "lab-reports"),
			UseSSL:         getenvBool("STORAGE_USE_SSL", false),
			PresignMinutes: getenvInt("STORAGE_PRESIGN_MINUTES", 15),
		},
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
