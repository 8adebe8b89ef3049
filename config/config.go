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
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Redis    RedisConfig
	Firebase FirebaseConfig
	Payment  PaymentConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// APIBaseURL is the externally reachable API root including the version prefix,
	// e.g. https://api.example.com/api/v1
	APIBaseURL      string
	FrontendBaseURL string
	RateLimit       int
	RateWindow      time.Duration
}

type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	AccessSecret string
	AccessExpiry time.Duration
	Issuer       string
}

type RedisConfig struct {
	URL string
}

type FirebaseConfig struct {
	ServiceAccountPath string
}

type PaymentConfig struct {
	Currency        string
	ProviderTimeout time.Duration
	Chapa           ChapaConfig
	Telebirr        TelebirrConfig
	SantimPay       SantimPayConfig
}

// ChapaConfig for the hosted-checkout gateway. Empty SecretKey runs the adapter in mock mode.
type ChapaConfig struct {
	BaseURL         string
	CheckoutBaseURL string
	SecretKey       string
	WebhookSecret   string
}

// TelebirrConfig for the signed form-POST checkout. Empty AppKey runs the adapter in mock mode.
type TelebirrConfig struct {
	BaseURL      string
	AppID        string
	AppKey       string
	MerchantCode string
}

// SantimPayConfig for the reference-based gateway (OAuth2 client credentials).
type SantimPayConfig struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[CONFIG] .env not loaded: %v", err)
	}
	return &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8099"),
			Env:             getEnv("APP_ENV", "development"),
			ReadTimeout:     getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDuration("SERVER_WRITE_TIMEOUT", 20*time.Second),
			APIBaseURL:      strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8099/api/v1"), "/"),
			FrontendBaseURL: strings.TrimRight(getEnv("FRONTEND_BASE_URL", "http://localhost:3000"), "/"),
			RateLimit:       getInt("RATE_LIMIT", 100),
			RateWindow:      getDuration("RATE_WINDOW", 60*time.Second),
		},
		Database: DatabaseConfig{
			DSN:             getEnv("DATABASE_DSN", "marketpay:marketpay@tcp(localhost:3306)/marketpay?charset=utf8mb4&parseTime=True&loc=Local"),
			MaxIdleConns:    getInt("DATABASE_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getInt("DATABASE_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getDuration("DATABASE_CONN_MAX_LIFETIME", time.Hour),
		},
		JWT: JWTConfig{
			AccessSecret: getEnv("JWT_ACCESS_SECRET", "change-me-in-production"),
			AccessExpiry: getDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
			Issuer:       getEnv("JWT_ISSUER", "marketpay"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Firebase: FirebaseConfig{
			ServiceAccountPath: os.Getenv("FIREBASE_SERVICE_ACCOUNT_PATH"),
		},
		Payment: PaymentConfig{
			Currency:        getEnv("PAYMENT_CURRENCY", "ETB"),
			ProviderTimeout: getDuration("PAYMENT_PROVIDER_TIMEOUT", 15*time.Second),
			Chapa: ChapaConfig{
				BaseURL:         getEnv("CHAPA_BASE_URL", "https://api.chapa.co"),
				CheckoutBaseURL: getEnv("CHAPA_CHECKOUT_BASE_URL", "https://checkout.chapa.co/checkout"),
				SecretKey:       os.Getenv("CHAPA_SECRET_KEY"),
				WebhookSecret:   os.Getenv("CHAPA_WEBHOOK_SECRET"),
			},
			Telebirr: TelebirrConfig{
				BaseURL:      getEnv("TELEBIRR_BASE_URL", "https://app.ethiotelecom.et"),
				AppID:        os.Getenv("TELEBIRR_APP_ID"),
				AppKey:       os.Getenv("TELEBIRR_APP_KEY"),
				MerchantCode: os.Getenv("TELEBIRR_MERCHANT_CODE"),
			},
			SantimPay: SantimPayConfig{
				BaseURL:      getEnv("SANTIMPAY_BASE_URL", "https://services.santimpay.com/api"),
				TokenURL:     getEnv("SANTIMPAY_TOKEN_URL", "https://services.santimpay.com/oauth/token"),
				ClientID:     os.Getenv("SANTIMPAY_CLIENT_ID"),
				ClientSecret: os.Getenv("SANTIMPAY_CLIENT_SECRET"),
			},
		},
	}
}

// CallbackURL is where a provider posts asynchronous notifications for the given method.
func (c *Config) CallbackURL(method string) string {
	return c.Server.APIBaseURL + "/payments/callback/" + strings.ToLower(method)
}

// WebhookURL is the Chapa webhook endpoint.
func (c *Config) WebhookURL() string {
	return c.Server.APIBaseURL + "/payments/webhook/chapa"
}

// ReturnURL is the frontend page the buyer lands on after leaving the provider UI.
func (c *Config) ReturnURL(orderID string) string {
	return c.Server.FrontendBaseURL + "/orders/" + orderID
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[CONFIG] invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[CONFIG] invalid %s=%q, using %s", key, v, def)
		return def
	}
	return d
}
