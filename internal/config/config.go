package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	ListenAddr  string
	LogLevel    string
	LogFormat   string
	JWTSecret   string
	JWTUser     string
	JWTPassword string
	TLSCertFile string
	TLSKeyFile  string

	SearchTimeout time.Duration
	FallbackPrice int

	RetryMaxAttempts int
	RetryBaseDelay   time.Duration

	HTTPTimeout      time.Duration
	HTTPMaxConns     int
	HTTPMaxIdleConns int

	AirLabsBaseURL string
	AirLabsAPIKey  string

	AmadeusURL          string
	AmadeusClientId     string
	AmadeusClientSecret string
	AmadeusCurrency     string
}

func Load() (*Config, error) {
	// .env is optional, real environment variables win
	_ = godotenv.Load(".env")

	v := viper.New()

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("auth_user", "demo")
	v.SetDefault("auth_pass", "demo123")
	v.SetDefault("search_timeout", "30s")
	v.SetDefault("fallback_price", 90000)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay", "1s")
	v.SetDefault("http_timeout", "10s")
	v.SetDefault("http_max_conns", 100)
	v.SetDefault("http_max_idle_conns", 20)

	v.SetDefault("airlabs_base_url", "https://airlabs.co/api/v9")
	v.SetDefault("amadeus_url", "https://test.api.amadeus.com")

	if path := os.Getenv("FLIGHTS_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/flights")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.AutomaticEnv()

	to, err := time.ParseDuration(v.GetString("search_timeout"))
	if err != nil {
		return nil, fmt.Errorf("bad search_timeout: %w", err)
	}
	backoff, err := time.ParseDuration(v.GetString("retry_base_delay"))
	if err != nil {
		return nil, fmt.Errorf("bad retry_base_delay: %w", err)
	}
	httpTo, err := time.ParseDuration(v.GetString("http_timeout"))
	if err != nil {
		return nil, fmt.Errorf("bad http_timeout: %w", err)
	}

	cfg := &Config{
		ListenAddr:          v.GetString("listen_addr"),
		LogLevel:            v.GetString("log_level"),
		LogFormat:           v.GetString("log_format"),
		JWTSecret:           v.GetString("jwt_secret"),
		JWTUser:             v.GetString("auth_user"),
		JWTPassword:         v.GetString("auth_pass"),
		TLSCertFile:         os.Getenv("TLS_CERT_FILE"),
		TLSKeyFile:          os.Getenv("TLS_KEY_FILE"),
		SearchTimeout:       to,
		FallbackPrice:       v.GetInt("fallback_price"),
		RetryMaxAttempts:    v.GetInt("retry_max_attempts"),
		RetryBaseDelay:      backoff,
		HTTPTimeout:         httpTo,
		HTTPMaxConns:        v.GetInt("http_max_conns"),
		HTTPMaxIdleConns:    v.GetInt("http_max_idle_conns"),
		AirLabsBaseURL:      v.GetString("airlabs_base_url"),
		AirLabsAPIKey:       v.GetString("airlabs_api_key"),
		AmadeusURL:          v.GetString("amadeus_url"),
		AmadeusClientId:     v.GetString("amadeus_clientid"),
		AmadeusClientSecret: v.GetString("amadeus_clientsecret"),
		AmadeusCurrency:     v.GetString("amadeus_currency"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.FallbackPrice <= 0 {
		return fmt.Errorf("fallback_price must be positive, got %d", c.FallbackPrice)
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("retry_max_attempts must be at least 1, got %d", c.RetryMaxAttempts)
	}
	if c.SearchTimeout <= 0 {
		return fmt.Errorf("search_timeout must be positive, got %s", c.SearchTimeout)
	}
	return nil
}

// MissingCredentials lists the credential keys that are unset. Providers whose
// credentials are missing stay registered but report no results.
func (c *Config) MissingCredentials() []string {
	var missing []string
	if c.AirLabsAPIKey == "" {
		missing = append(missing, "airlabs_api_key")
	}
	if c.AmadeusClientId == "" {
		missing = append(missing, "amadeus_clientid")
	}
	if c.AmadeusClientSecret == "" {
		missing = append(missing, "amadeus_clientsecret")
	}
	if c.JWTSecret == "" {
		missing = append(missing, "jwt_secret")
	}
	return missing
}
