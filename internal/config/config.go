package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultAllowedOrigins are the dashboard origins always accepted by CORS
var DefaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
	"https://real-time-threat.vercel.app",
}

type Config struct {
	App         AppConfig
	HTTP        HTTPConfig
	ClickHouse  ClickHouseConfig
	Kafka       KafkaConfig
	ThreatIntel ThreatIntelConfig
}

type AppConfig struct {
	Env     string
	Port    int
	Host    string
	Version string
}

type HTTPConfig struct {
	FrontendURL     string
	RateLimit       int
	RateLimitWindow time.Duration
}

type ClickHouseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// ProviderConfig is the per-provider slice of ThreatIntelConfig
type ProviderConfig struct {
	APIKey        string
	Timeout       time.Duration
	RatePerMinute int
}

type ThreatIntelConfig struct {
	VirusTotal          ProviderConfig
	Shodan              ProviderConfig
	AbuseIPDB           ProviderConfig
	AbuseIPDBMaxAgeDays int
}

// Load reads configuration from an optional .env file, an optional config
// file and the environment, in increasing order of precedence
func Load() (*Config, error) {
	// .env is optional; real environment variables win over it
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Error reading .env file", "error", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/app")
	viper.AddConfigPath("/etc/threatintel")

	viper.AutomaticEnv()
	bindEnvVars()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("Error reading config file", "error", err)
		}
	}

	config := &Config{
		App: AppConfig{
			Env:     viper.GetString("APP_ENV"),
			Port:    viper.GetInt("APP_PORT"),
			Host:    viper.GetString("APP_HOST"),
			Version: viper.GetString("APP_VERSION"),
		},
		HTTP: HTTPConfig{
			FrontendURL:     viper.GetString("FRONTEND_URL"),
			RateLimit:       viper.GetInt("API_RATE_LIMIT"),
			RateLimitWindow: viper.GetDuration("API_RATE_WINDOW"),
		},
		ClickHouse: ClickHouseConfig{
			Enabled:  viper.GetBool("CLICKHOUSE_ENABLED"),
			Host:     viper.GetString("CLICKHOUSE_HOST"),
			Port:     viper.GetInt("CLICKHOUSE_PORT"),
			User:     viper.GetString("CLICKHOUSE_USER"),
			Password: viper.GetString("CLICKHOUSE_PASSWORD"),
			Database: viper.GetString("CLICKHOUSE_DATABASE"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(viper.GetString("KAFKA_BROKERS")),
			Topic:   viper.GetString("KAFKA_TOPIC"),
		},
		ThreatIntel: ThreatIntelConfig{
			VirusTotal: ProviderConfig{
				APIKey:        viper.GetString("VIRUSTOTAL_API_KEY"),
				Timeout:       viper.GetDuration("VIRUSTOTAL_TIMEOUT"),
				RatePerMinute: viper.GetInt("VIRUSTOTAL_RATE_PER_MIN"),
			},
			Shodan: ProviderConfig{
				APIKey:        viper.GetString("SHODAN_API_KEY"),
				Timeout:       viper.GetDuration("SHODAN_TIMEOUT"),
				RatePerMinute: viper.GetInt("SHODAN_RATE_PER_MIN"),
			},
			AbuseIPDB: ProviderConfig{
				APIKey:        viper.GetString("ABUSEIPDB_API_KEY"),
				Timeout:       viper.GetDuration("ABUSEIPDB_TIMEOUT"),
				RatePerMinute: viper.GetInt("ABUSEIPDB_RATE_PER_MIN"),
			},
			AbuseIPDBMaxAgeDays: viper.GetInt("ABUSEIPDB_MAX_AGE_DAYS"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func bindEnvVars() {
	// App
	viper.BindEnv("APP_ENV")
	viper.BindEnv("APP_PORT")
	viper.BindEnv("APP_HOST")
	viper.BindEnv("APP_VERSION")

	// HTTP
	viper.BindEnv("FRONTEND_URL")
	viper.BindEnv("API_RATE_LIMIT")
	viper.BindEnv("API_RATE_WINDOW")

	// ClickHouse
	viper.BindEnv("CLICKHOUSE_ENABLED")
	viper.BindEnv("CLICKHOUSE_HOST")
	viper.BindEnv("CLICKHOUSE_PORT")
	viper.BindEnv("CLICKHOUSE_USER")
	viper.BindEnv("CLICKHOUSE_PASSWORD")
	viper.BindEnv("CLICKHOUSE_DATABASE")

	// Kafka
	viper.BindEnv("KAFKA_BROKERS")
	viper.BindEnv("KAFKA_TOPIC")

	// Threat Intel
	viper.BindEnv("VIRUSTOTAL_API_KEY")
	viper.BindEnv("VIRUSTOTAL_TIMEOUT")
	viper.BindEnv("VIRUSTOTAL_RATE_PER_MIN")
	viper.BindEnv("SHODAN_API_KEY")
	viper.BindEnv("SHODAN_TIMEOUT")
	viper.BindEnv("SHODAN_RATE_PER_MIN")
	viper.BindEnv("ABUSEIPDB_API_KEY")
	viper.BindEnv("ABUSEIPDB_TIMEOUT")
	viper.BindEnv("ABUSEIPDB_RATE_PER_MIN")
	viper.BindEnv("ABUSEIPDB_MAX_AGE_DAYS")
}

func setDefaults() {
	// App defaults
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("APP_PORT", 5000)
	viper.SetDefault("APP_HOST", "0.0.0.0")
	viper.SetDefault("APP_VERSION", "1.0.0")

	// HTTP defaults, 50 requests per 15 minutes per client
	viper.SetDefault("API_RATE_LIMIT", 50)
	viper.SetDefault("API_RATE_WINDOW", 15*time.Minute)

	// ClickHouse defaults
	viper.SetDefault("CLICKHOUSE_ENABLED", false)
	viper.SetDefault("CLICKHOUSE_HOST", "localhost")
	viper.SetDefault("CLICKHOUSE_PORT", 9000)
	viper.SetDefault("CLICKHOUSE_USER", "default")
	viper.SetDefault("CLICKHOUSE_DATABASE", "threat_intel")

	// Kafka defaults
	viper.SetDefault("KAFKA_TOPIC", "threat-lookups")

	// Threat Intel defaults (public API quotas)
	viper.SetDefault("VIRUSTOTAL_TIMEOUT", 15*time.Second)
	viper.SetDefault("VIRUSTOTAL_RATE_PER_MIN", 4)
	viper.SetDefault("SHODAN_TIMEOUT", 10*time.Second)
	viper.SetDefault("SHODAN_RATE_PER_MIN", 60)
	viper.SetDefault("ABUSEIPDB_TIMEOUT", 10*time.Second)
	viper.SetDefault("ABUSEIPDB_RATE_PER_MIN", 60)
	viper.SetDefault("ABUSEIPDB_MAX_AGE_DAYS", 90)
}

// Validate rejects settings the server cannot start with
func (c *Config) Validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("invalid APP_PORT %d", c.App.Port)
	}
	if c.HTTP.RateLimit <= 0 {
		return fmt.Errorf("API_RATE_LIMIT must be positive, got %d", c.HTTP.RateLimit)
	}
	if c.HTTP.RateLimitWindow <= 0 {
		return fmt.Errorf("API_RATE_WINDOW must be positive, got %s", c.HTTP.RateLimitWindow)
	}
	if c.ThreatIntel.AbuseIPDBMaxAgeDays < 1 || c.ThreatIntel.AbuseIPDBMaxAgeDays > 365 {
		return fmt.Errorf("ABUSEIPDB_MAX_AGE_DAYS must be within 1..365, got %d", c.ThreatIntel.AbuseIPDBMaxAgeDays)
	}
	return nil
}

// AllowedOrigins returns the CORS allow-list, FRONTEND_URL may hold several
// comma separated origins
func (c *Config) AllowedOrigins() []string {
	origins := append([]string{}, DefaultAllowedOrigins...)
	for _, o := range splitList(c.HTTP.FrontendURL) {
		origins = append(origins, strings.TrimSuffix(o, "/"))
	}
	return origins
}

// KafkaEnabled reports whether lookup events should be published
func (c *Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0 && c.Kafka.Topic != ""
}

func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

func SetupLogger(cfg *Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if cfg.IsDevelopment() {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
