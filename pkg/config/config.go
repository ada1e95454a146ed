package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers understood by the API process.
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

// Load reads configuration from SERDO_-prefixed environment variables and an
// optional .env file in the working directory.
func Load() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("SERDO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	// a missing .env is fine
	_ = v.ReadInConfig()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("API_ADDR", ":4000")
	v.SetDefault("STORE_DRIVER", StorePostgres)
	v.SetDefault("DATABASE_URL", "postgres://serdo:serdo@db:5432/serdo?sslmode=disable")
	v.SetDefault("SQLITE_PATH", "serdo.db")
	v.SetDefault("DB_MIGRATIONS_DIR", "db/migrations")
	v.SetDefault("JWT_SECRET", "supersecuresecret")
	v.SetDefault("SECRET_KEY", "supersecuresecret")
	v.SetDefault("ACCESS_TOKEN_TTL_MIN", 60)
	v.SetDefault("SCHEDULER_TICK_SECONDS", 300)
	v.SetDefault("PROBE_TIMEOUT_SECONDS", 5)
	v.SetDefault("WHOIS_TIMEOUT_SECONDS", 15)
	v.SetDefault("WHOIS_TEST_TIMEOUT_SECONDS", 10)
	v.SetDefault("NOTIFY_TIMEOUT_SECONDS", 10)
	v.SetDefault("CHECK_CONCURRENCY", 8)
	v.SetDefault("RATE_LIMIT_REDIS_ADDR", "")
	v.SetDefault("RATE_LIMIT_REDIS_PASSWORD", "")
	v.SetDefault("RATE_LIMIT_REDIS_DB", 0)
	v.SetDefault("METRICS_ENABLED", true)
}

func seconds(v *viper.Viper, key string) time.Duration {
	return time.Duration(v.GetInt(key)) * time.Second
}
