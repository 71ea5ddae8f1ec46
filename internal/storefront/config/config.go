package config

import (
	"flag"
	"os"
	"time"
)

// Config contains application configuration
type Config struct {
	RunAddress  string
	DatabaseURI string
	JWTSecret   string

	// Payment gateway settings
	GatewayURL        string
	MerchantCode      string
	GatewayAPIKey     string
	CallbackURL       string
	ReturnURL         string
	GatewayTimeout    time.Duration
	PaymentExpiryMins int
}

// NewConfig creates a new configuration from environment variables or flags
func NewConfig() *Config {
	var cfg Config

	// Parse flags
	flag.StringVar(&cfg.RunAddress, "a", "", "Server run address")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "Database URI")
	flag.StringVar(&cfg.GatewayURL, "g", "", "Payment gateway inquiry URL")
	flag.Parse()

	// Override with env vars if present
	if envAddr := os.Getenv("RUN_ADDRESS"); envAddr != "" {
		cfg.RunAddress = envAddr
	}

	if envDBURI := os.Getenv("DATABASE_URI"); envDBURI != "" {
		cfg.DatabaseURI = envDBURI
	}

	if envGateway := os.Getenv("GATEWAY_URL"); envGateway != "" {
		cfg.GatewayURL = envGateway
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.MerchantCode = os.Getenv("GATEWAY_MERCHANT_CODE")
	cfg.GatewayAPIKey = os.Getenv("GATEWAY_API_KEY")
	cfg.CallbackURL = os.Getenv("GATEWAY_CALLBACK_URL")
	cfg.ReturnURL = os.Getenv("GATEWAY_RETURN_URL")

	// Set defaults if needed
	if cfg.RunAddress == "" {
		cfg.RunAddress = ":8080"
	}

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "insecure-dev-secret"
	}

	cfg.GatewayTimeout = 10 * time.Second
	cfg.PaymentExpiryMins = 60

	return &cfg
}
