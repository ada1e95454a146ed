package config

import (
	"time"

	"github.com/spf13/viper"
)

// APIConfig holds runtime configuration for the API service.
type APIConfig struct {
	Environment        string
	LogLevel           string
	Addr               string
	StoreDriver        string
	DatabaseURL        string
	SQLitePath         string
	MigrationsDir      string
	JWTSecret          string
	SecretKey          string
	AccessTokenTTL     time.Duration
	SchedulerTick      time.Duration
	ProbeTimeout       time.Duration
	WhoisTimeout       time.Duration
	WhoisTestTimeout   time.Duration
	NotifyTimeout      time.Duration
	CheckConcurrency   int
	RateLimitRedisAddr string
	RateLimitRedisPass string
	RateLimitRedisDB   int
	MetricsEnabled     bool
}

// LoadAPIConfig constructs an APIConfig from the environment.
func LoadAPIConfig() APIConfig {
	return FromViper(Load())
}

// FromViper maps a populated viper instance onto APIConfig.
func FromViper(v *viper.Viper) APIConfig {
	return APIConfig{
		Environment:        v.GetString("APP_ENV"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		Addr:               v.GetString("API_ADDR"),
		StoreDriver:        v.GetString("STORE_DRIVER"),
		DatabaseURL:        v.GetString("DATABASE_URL"),
		SQLitePath:         v.GetString("SQLITE_PATH"),
		MigrationsDir:      v.GetString("DB_MIGRATIONS_DIR"),
		JWTSecret:          v.GetString("JWT_SECRET"),
		SecretKey:          v.GetString("SECRET_KEY"),
		AccessTokenTTL:     time.Duration(v.GetInt("ACCESS_TOKEN_TTL_MIN")) * time.Minute,
		SchedulerTick:      seconds(v, "SCHEDULER_TICK_SECONDS"),
		ProbeTimeout:       seconds(v, "PROBE_TIMEOUT_SECONDS"),
		WhoisTimeout:       seconds(v, "WHOIS_TIMEOUT_SECONDS"),
		WhoisTestTimeout:   seconds(v, "WHOIS_TEST_TIMEOUT_SECONDS"),
		NotifyTimeout:      seconds(v, "NOTIFY_TIMEOUT_SECONDS"),
		CheckConcurrency:   v.GetInt("CHECK_CONCURRENCY"),
		RateLimitRedisAddr: v.GetString("RATE_LIMIT_REDIS_ADDR"),
		RateLimitRedisPass: v.GetString("RATE_LIMIT_REDIS_PASSWORD"),
		RateLimitRedisDB:   v.GetInt("RATE_LIMIT_REDIS_DB"),
		MetricsEnabled:     v.GetBool("METRICS_ENABLED"),
	}
}
