// config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port    string
		BaseURL string
	}
	DB struct {
		Driver       string // "postgres" or "sqlite"
		Host         string
		Port         string
		User         string
		Password     string
		DBName       string
		SSLMode      string
		Path         string // sqlite file path
		MaxOpenConns int
		MaxIdleConns int
		ConnLifetime time.Duration
	}
	JWT struct {
		Secret   string
		TokenTTL time.Duration
	}
	Stripe struct {
		SecretKey         string
		WebhookKey        string
		PriceID           string
		CreditAmountCents int64
		Currency          string
	}
	OpenAI struct {
		APIKey        string
		Model         string
		RealtimeModel string
	}
	Twilio struct {
		AccountSID string
		AuthToken  string
		FromNumber string
		TwiMLURL   string
	}
	ShutdownTimeout time.Duration
}

// Load loads the configuration
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")
	v.AddConfigPath("$HOME/.better-call")

	v.SetDefault("ShutdownTimeout", 10*time.Second)
	v.SetDefault("Server.Port", "9001")
	v.SetDefault("Server.BaseURL", "http://127.0.0.1:9001")
	v.SetDefault("DB.Driver", "sqlite")
	v.SetDefault("DB.Path", "better-call.db")
	v.SetDefault("DB.MaxOpenConns", 20)
	v.SetDefault("DB.MaxIdleConns", 10)
	v.SetDefault("DB.ConnLifetime", 5*time.Minute)
	v.SetDefault("JWT.TokenTTL", 60*time.Minute)
	v.SetDefault("Stripe.CreditAmountCents", 500)
	v.SetDefault("Stripe.Currency", "usd")
	v.SetDefault("OpenAI.Model", "gpt-4o-mini")
	v.SetDefault("OpenAI.RealtimeModel", "gpt-realtime")

	v.AutomaticEnv()

	err := v.ReadInConfig()

	// No config file: assemble the config from environment variables only.
	if err != nil {
		cfg := &Config{}

		cfg.Server.Port = getEnvOr("SERVER_PORT", "9001")
		cfg.Server.BaseURL = getEnvOr("BACKEND_BASE_URL", "http://127.0.0.1:9001")
		cfg.DB.Driver = getEnvOr("DB_DRIVER", "sqlite")
		cfg.DB.Host = getEnvOr("DB_HOST", "localhost")
		cfg.DB.Port = getEnvOr("DB_PORT", "5432")
		cfg.DB.User = getEnvOr("DB_USER", "postgres")
		cfg.DB.Password = getEnvOr("DB_PASSWORD", "postgres")
		cfg.DB.DBName = getEnvOr("DB_NAME", "better_call")
		cfg.DB.SSLMode = getEnvOr("DB_SSL_MODE", "disable")
		cfg.DB.Path = getEnvOr("DB_PATH", "better-call.db")
		cfg.DB.MaxOpenConns = getEnvIntOr("DB_MAX_OPEN_CONNS", 20)
		cfg.DB.MaxIdleConns = getEnvIntOr("DB_MAX_IDLE_CONNS", 10)
		cfg.DB.ConnLifetime = 5 * time.Minute
		cfg.JWT.Secret = os.Getenv("JWT_SECRET_KEY")
		cfg.JWT.TokenTTL = time.Duration(getEnvIntOr("JWT_ACCESS_TOKEN_EXP_MINUTES", 60)) * time.Minute
		cfg.Stripe.SecretKey = os.Getenv("STRIPE_SECRET_KEY")
		cfg.Stripe.WebhookKey = os.Getenv("STRIPE_WEBHOOK_SECRET")
		cfg.Stripe.PriceID = os.Getenv("STRIPE_PRICE_ID")
		cfg.Stripe.CreditAmountCents = int64(getEnvIntOr("STRIPE_CREDIT_AMOUNT_CENTS", 500))
		cfg.Stripe.Currency = getEnvOr("STRIPE_CURRENCY", "usd")
		cfg.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
		cfg.OpenAI.Model = getEnvOr("OPENAI_MODEL", "gpt-4o-mini")
		cfg.OpenAI.RealtimeModel = getEnvOr("OPENAI_REALTIME_MODEL", "gpt-realtime")
		cfg.Twilio.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
		cfg.Twilio.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
		cfg.Twilio.FromNumber = os.Getenv("TWILIO_FROM_NUMBER")
		cfg.Twilio.TwiMLURL = os.Getenv("TWIML_URL")
		cfg.ShutdownTimeout = 10 * time.Second

		return cfg, nil
	}

	// Process any ${ENV_VAR} syntax in the config values
	for _, key := range v.AllKeys() {
		value := v.GetString(key)
		if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
			envVar := strings.TrimPrefix(strings.TrimSuffix(value, "}"), "${")
			envValue := os.Getenv(envVar)
			if envValue != "" {
				v.Set(key, envValue)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Helper function to get environment variable with default value
func getEnvOr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOr(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
