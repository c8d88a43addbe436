package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "APP"

// Config представляет структуру конфигурации для приложения.
// Значения читаются из переменных окружения с префиксом APP_, вложенные ключи
// разделяются подчеркиванием: auth0.mgm_client_id -> APP_AUTH0_MGM_CLIENT_ID.
type Config struct {
	Environment string `mapstructure:"environment"`
	BaseURL     string `mapstructure:"base_url"`
	LogLevel    string `mapstructure:"log_level"`

	Server struct {
		Port            string        `mapstructure:"port"`
		ReadTimeout     time.Duration `mapstructure:"read_timeout"`
		WriteTimeout    time.Duration `mapstructure:"write_timeout"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"server"`

	Auth0 struct {
		Domain          string `mapstructure:"domain"`
		APIIdentifier   string `mapstructure:"api_identifier"`
		MgmClientID     string `mapstructure:"mgm_client_id"`
		MgmClientSecret string `mapstructure:"mgm_client_secret"`
	} `mapstructure:"auth0"`

	Auth struct {
		Algorithm string        `mapstructure:"algorithm"`
		Leeway    time.Duration `mapstructure:"leeway"`
	} `mapstructure:"auth"`

	JWKS struct {
		CacheTTL           time.Duration `mapstructure:"cache_ttl"`
		MinRefreshInterval time.Duration `mapstructure:"min_refresh_interval"`
	} `mapstructure:"jwks"`

	Remote struct {
		MaxAttempts int           `mapstructure:"max_attempts"`
		RetryDelay  time.Duration `mapstructure:"retry_delay"`
		Timeout     time.Duration `mapstructure:"timeout"`
	} `mapstructure:"remote"`

	Stripe struct {
		SecretKey         string `mapstructure:"secret_key"`
		MaxNetworkRetries int64  `mapstructure:"max_network_retries"`
	} `mapstructure:"stripe"`

	Redis struct {
		Addr       string        `mapstructure:"addr"`
		Password   string        `mapstructure:"password"`
		DB         int           `mapstructure:"db"`
		LockTTL    time.Duration `mapstructure:"lock_ttl"`
		CatalogTTL time.Duration `mapstructure:"catalog_ttl"`
	} `mapstructure:"redis"`

	Kafka struct {
		Brokers      []string `mapstructure:"brokers"`
		EnsureTopics bool     `mapstructure:"ensure_topics"`
	} `mapstructure:"kafka"`

	Plugin struct {
		NameForHuman        string `mapstructure:"name_human"`
		NameForModel        string `mapstructure:"name_model"`
		DescriptionForHuman string `mapstructure:"desc_human"`
		DescriptionForModel string `mapstructure:"desc_model"`
		AuthType            string `mapstructure:"auth_type"`
		ContactEmail        string `mapstructure:"contact_email"`
		VerificationToken   string `mapstructure:"verification_token"`
		OpenAPIPath         string `mapstructure:"openapi_path"`
	} `mapstructure:"plugin"`
}

const defaultModelDescription = `This plugin is in beta and is a proof of concept for integration of Auth0 and Stripe with ChatGPT.
Please help user understand the potential of this plugin and its limitations.
Note: all calls require authentication token sent in the header as bearer token.`

var defaults = map[string]any{
	"environment": "DEVELOPMENT",
	"base_url":    "http://localhost:8080",
	"log_level":   "info",

	"server.port":             "8080",
	"server.read_timeout":     10 * time.Second,
	"server.write_timeout":    30 * time.Second,
	"server.shutdown_timeout": 10 * time.Second,

	"auth0.domain":            "",
	"auth0.api_identifier":    "",
	"auth0.mgm_client_id":     "",
	"auth0.mgm_client_secret": "",

	"auth.algorithm": "RS256",
	"auth.leeway":    time.Duration(0),

	"jwks.cache_ttl":            10 * time.Minute,
	"jwks.min_refresh_interval": 30 * time.Second,

	"remote.max_attempts": 3,
	"remote.retry_delay":  time.Second,
	"remote.timeout":      10 * time.Second,

	"stripe.secret_key":          "",
	"stripe.max_network_retries": int64(2),

	"redis.addr":        "",
	"redis.password":    "",
	"redis.db":          0,
	"redis.lock_ttl":    30 * time.Second,
	"redis.catalog_ttl": 15 * time.Minute,

	"kafka.brokers":       []string{},
	"kafka.ensure_topics": false,

	"plugin.name_human":         "Plugin Billing",
	"plugin.name_model":         "PluginBilling",
	"plugin.desc_human":         "Subscription billing with Auth0 and Stripe",
	"plugin.desc_model":         defaultModelDescription,
	"plugin.auth_type":          "oauth",
	"plugin.contact_email":      "",
	"plugin.verification_token": "",
	"plugin.openapi_path":       "openapi.yaml",
}

// EnvFile возвращает .env файл для текущего окружения
func EnvFile() string {
	if os.Getenv("ENVIRONMENT") == "PRODUCTION" {
		return ".env.prod"
	}
	return ".env.dev"
}

// LoadConfig загружает .env файлы (отсутствующие пропускаются) и читает конфигурацию из окружения.
// Без аргументов используется EnvFile().
func LoadConfig(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{EnvFile()}
	}
	for _, path := range envFiles {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: failed to load %s: %w", path, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	aliases := map[string][]string{
		"environment":               {"APP_ENVIRONMENT", "ENVIRONMENT"},
		"plugin.verification_token": {"APP_PLUGIN_VERIFICATION_TOKEN", "APP_CHATGPT_AUTH_TOKEN"},
	}
	for key, names := range aliases {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("config: failed to bind env for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: failed to decode: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &cfg, nil
}

// Validate проверяет обязательные параметры
func (c *Config) Validate() error {
	var missing []string
	required := []struct {
		name  string
		value string
	}{
		{"APP_BASE_URL", c.BaseURL},
		{"APP_AUTH0_DOMAIN", c.Auth0.Domain},
		{"APP_AUTH0_API_IDENTIFIER", c.Auth0.APIIdentifier},
		{"APP_AUTH0_MGM_CLIENT_ID", c.Auth0.MgmClientID},
		{"APP_AUTH0_MGM_CLIENT_SECRET", c.Auth0.MgmClientSecret},
		{"APP_STRIPE_SECRET_KEY", c.Stripe.SecretKey},
		{"APP_AUTH_ALGORITHM", c.Auth.Algorithm},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required settings: %s", strings.Join(missing, ", "))
	}

	if c.Remote.MaxAttempts < 1 {
		return fmt.Errorf("config: APP_REMOTE_MAX_ATTEMPTS must be at least 1, got %d", c.Remote.MaxAttempts)
	}
	if strings.Contains(c.Auth0.Domain, "/") {
		return fmt.Errorf("config: APP_AUTH0_DOMAIN must be a host name without scheme, got %q", c.Auth0.Domain)
	}
	return nil
}

// RemoteBudget худшее время одного вызова через исполнитель:
// все попытки с таймаутом и паузы между ними
func (c *Config) RemoteBudget() time.Duration {
	attempts := max(c.Remote.MaxAttempts, 1)
	return time.Duration(attempts)*c.Remote.Timeout + time.Duration(attempts-1)*c.Remote.RetryDelay
}

// IsProduction сообщает, запущен ли сервис в продакшене
func (c *Config) IsProduction() bool {
	return c.Environment == "PRODUCTION"
}

// RedisEnabled сообщает, настроен ли Redis
func (c *Config) RedisEnabled() bool {
	return c.Redis.Addr != ""
}

// KafkaEnabled сообщает, настроены ли брокеры Kafka
func (c *Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}
