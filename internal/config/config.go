package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Port        string `validate:"required,numeric"`
	Environment string `validate:"oneof=development staging production test"`
	LogLevel    string `validate:"oneof=debug info warn error"`
	LogFormat   string `validate:"oneof=json console"`
	DemoMode    bool
	CORSOrigins []string
	StoreDriver string `validate:"oneof=memory postgres"`
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Telemetry   TelemetryConfig
	Sync        SyncConfig
	API         APIConfig
	Shopify     ShopifyConfig
	Amazon      AmazonConfig
	Ebay        EbayConfig
	Etsy        EtsyConfig
}

type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int `validate:"min=1"`
	MaxIdleConns int `validate:"min=0"`
}

type RedisConfig struct {
	URL string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type TelemetryConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

type SyncConfig struct {
	Interval            time.Duration `validate:"min=0"`
	PageSize            int           `validate:"min=1,max=250"`
	MaxPagesPerPass     int           `validate:"min=1"`
	CallTimeout         time.Duration `validate:"gt=0"`
	MaxTransientRetries int           `validate:"min=0"`
	MaxRateLimitRetries int           `validate:"min=0"`
	RetryBaseDelay      time.Duration `validate:"gt=0"`
	RetryMaxDelay       time.Duration `validate:"gtefield=RetryBaseDelay"`
	LockTTL             time.Duration `validate:"gt=0"`
	RequestsPerSecond   float64       `validate:"gt=0"`
}

type APIConfig struct {
	// AdminKeyHash is a bcrypt hash; when set, mutating routes require the matching bearer key
	AdminKeyHash string
}

type ShopifyConfig struct {
	ShopDomain  string
	AccessToken string
	APIVersion  string
	// Endpoint overrides the GraphQL URL derived from ShopDomain
	Endpoint string
}

type AmazonConfig struct {
	AccessToken   string
	MarketplaceID string
	Endpoint      string
}

type EbayConfig struct {
	UserToken string
	Endpoint  string
}

type EtsyConfig struct {
	APIKey      string
	AccessToken string
	ShopID      string
	Endpoint    string
}

func Load() (*Config, error) {
	viper.SetConfigType("env")
	viper.SetConfigName(".env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")

	// Set defaults
	viper.SetDefault("PORT", "8000")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("LOG_LEVEL", "info")

	// Read from environment variables
	viper.AutomaticEnv()

	// Try to read .env file (optional)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	environment := getEnvOrViper("ENVIRONMENT", "development")
	defaultFormat := "console"
	if environment == "production" {
		defaultFormat = "json"
	}

	cfg := &Config{
		Port:        getEnvOrViper("PORT", "8000"),
		Environment: environment,
		LogLevel:    strings.ToLower(getEnvOrViper("LOG_LEVEL", "info")),
		LogFormat:   getEnvOrViper("LOG_FORMAT", defaultFormat),
		DemoMode:    getBoolOrViper("DEMO_MODE", false),
		CORSOrigins: getListOrViper("CORS_ORIGINS", []string{"http://localhost:3000"}),
		StoreDriver: getEnvOrViper("STORE_DRIVER", "memory"),
		Database: DatabaseConfig{
			Host:         getEnvOrViper("DB_HOST", "localhost"),
			Port:         getEnvOrViper("DB_PORT", "5432"),
			User:         getEnvOrViper("DB_USER", "postgres"),
			Password:     getEnvOrViper("DB_PASSWORD", "postgres"),
			DBName:       getEnvOrViper("DB_NAME", "orderhub"),
			SSLMode:      getEnvOrViper("DB_SSLMODE", "disable"),
			MaxOpenConns: getIntOrViper("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns: getIntOrViper("DB_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			URL: getEnvOrViper("REDIS_URL", ""),
		},
		Kafka: KafkaConfig{
			Brokers: getListOrViper("KAFKA_BROKERS", nil),
			Topic:   getEnvOrViper("KAFKA_TOPIC", "orderhub.order-events"),
		},
		Telemetry: TelemetryConfig{
			Enabled:     getBoolOrViper("OTEL_ENABLED", false),
			Endpoint:    getEnvOrViper("OTEL_ENDPOINT", "localhost:4317"),
			ServiceName: getEnvOrViper("OTEL_SERVICE_NAME", "orderhub"),
		},
		Sync: SyncConfig{
			Interval:            time.Duration(getIntOrViper("SYNC_INTERVAL_MINUTES", 5)) * time.Minute,
			PageSize:            getIntOrViper("SYNC_PAGE_SIZE", 50),
			MaxPagesPerPass:     getIntOrViper("SYNC_MAX_PAGES_PER_PASS", 20),
			CallTimeout:         getDurationOrViper("SYNC_CALL_TIMEOUT", 30*time.Second),
			MaxTransientRetries: getIntOrViper("SYNC_MAX_TRANSIENT_RETRIES", 3),
			MaxRateLimitRetries: getIntOrViper("SYNC_MAX_RATE_LIMIT_RETRIES", 5),
			RetryBaseDelay:      getDurationOrViper("SYNC_RETRY_BASE_DELAY", 500*time.Millisecond),
			RetryMaxDelay:       getDurationOrViper("SYNC_RETRY_MAX_DELAY", 30*time.Second),
			LockTTL:             getDurationOrViper("SYNC_LOCK_TTL", 15*time.Minute),
			RequestsPerSecond:   getFloatOrViper("PLATFORM_REQUESTS_PER_SECOND", 2),
		},
		API: APIConfig{
			AdminKeyHash: getEnvOrViper("ADMIN_API_KEY_HASH", ""),
		},
		Shopify: ShopifyConfig{
			ShopDomain:  getEnvOrViper("SHOPIFY_SHOP_DOMAIN", ""),
			AccessToken: getEnvOrViper("SHOPIFY_ACCESS_TOKEN", ""),
			APIVersion:  getEnvOrViper("SHOPIFY_API_VERSION", "2024-01"),
			Endpoint:    getEnvOrViper("SHOPIFY_ENDPOINT", ""),
		},
		Amazon: AmazonConfig{
			AccessToken:   getEnvOrViper("AMAZON_ACCESS_TOKEN", ""),
			MarketplaceID: getEnvOrViper("AMAZON_MARKETPLACE_ID", "ATVPDKIKX0DER"),
			Endpoint:      getEnvOrViper("AMAZON_ENDPOINT", "https://sellingpartnerapi-na.amazon.com"),
		},
		Ebay: EbayConfig{
			UserToken: getEnvOrViper("EBAY_USER_TOKEN", ""),
			Endpoint:  getEnvOrViper("EBAY_ENDPOINT", "https://api.ebay.com"),
		},
		Etsy: EtsyConfig{
			APIKey:      getEnvOrViper("ETSY_API_KEY", ""),
			AccessToken: getEnvOrViper("ETSY_ACCESS_TOKEN", ""),
			ShopID:      getEnvOrViper("ETSY_SHOP_ID", ""),
			Endpoint:    getEnvOrViper("ETSY_ENDPOINT", "https://openapi.etsy.com"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

var validate = validator.New()

// Validate checks field constraints and cross-field requirements
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid configuration: %s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.StoreDriver == "postgres" && c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required when STORE_DRIVER=postgres")
	}
	return nil
}

// HasCredentials reports whether live credentials are configured for the platform
func (c *Config) HasCredentials(platform string) bool {
	switch platform {
	case "shopify":
		return c.Shopify.ShopDomain != "" && c.Shopify.AccessToken != ""
	case "amazon":
		return c.Amazon.AccessToken != "" && c.Amazon.MarketplaceID != ""
	case "ebay":
		return c.Ebay.UserToken != ""
	case "etsy":
		return c.Etsy.APIKey != "" && c.Etsy.AccessToken != "" && c.Etsy.ShopID != ""
	default:
		return false
	}
}

func getEnvOrViper(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return defaultValue
}

func getIntOrViper(key string, defaultValue int) int {
	if v, err := strconv.Atoi(getEnvOrViper(key, "")); err == nil {
		return v
	}
	return defaultValue
}

func getFloatOrViper(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(getEnvOrViper(key, ""), 64); err == nil {
		return v
	}
	return defaultValue
}

func getBoolOrViper(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(getEnvOrViper(key, "")); err == nil {
		return v
	}
	return defaultValue
}

func getDurationOrViper(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(getEnvOrViper(key, "")); err == nil {
		return v
	}
	return defaultValue
}

func getListOrViper(key string, defaultValue []string) []string {
	raw := getEnvOrViper(key, "")
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
