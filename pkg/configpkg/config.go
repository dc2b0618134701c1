// Package configpkg provides parsing functionality for environment variables.
package configpkg

import (
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
//
// The values are read by viper fron a config file or environement variables.
type Config struct {
	DBDriver            string        `mapstructure:"DB_DRIVER"`
	DBSource            string        `mapstructure:"DB_SOURCE"`
	ServerAddress       string        `mapstructure:"SERVER_ADDRESS"`
	Environement        string        `mapstructure:"GO_ENV"`
	CORSAllowedOrigins  string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RateCacheDriver     string        `mapstructure:"RATE_CACHE_DRIVER"`
	RedisAddr           string        `mapstructure:"REDIS_ADDR"`
	RateProviders       string        `mapstructure:"RATE_PROVIDERS"`
	OpenERAPIURL        string        `mapstructure:"OPEN_ER_API_URL"`
	FrankfurterURL      string        `mapstructure:"FRANKFURTER_URL"`
	StaticRates         string        `mapstructure:"STATIC_RATES"`
	ProviderTimeout     time.Duration `mapstructure:"PROVIDER_TIMEOUT"`
	RateRetryAfter      time.Duration `mapstructure:"RATE_RETRY_AFTER"`
	RateMaxAge          time.Duration `mapstructure:"RATE_MAX_AGE"`
	DefaultBaseCurrency string        `mapstructure:"DEFAULT_BASE_CURRENCY"`
	GroupRecoveryWindow time.Duration `mapstructure:"GROUP_RECOVERY_WINDOW"`
}

// Defaults applied when neither the config file nor the environment sets a key.
const (
	DefaultRateCacheDriver     = "memory"
	DefaultRateProviders       = "open-er-api,frankfurter"
	DefaultOpenERAPIURL        = "https://open.er-api.com/v6/latest"
	DefaultFrankfurterURL      = "https://api.frankfurter.app"
	DefaultProviderTimeout     = 5 * time.Second
	DefaultRateRetryAfter      = time.Minute
	DefaultRateMaxAge          = 24 * time.Hour
	DefaultBaseCurrency        = "CAD"
	DefaultGroupRecoveryWindow = 7 * 24 * time.Hour
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_ADDRESS", "0.0.0.0:8080")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("RATE_CACHE_DRIVER", DefaultRateCacheDriver)
	v.SetDefault("RATE_PROVIDERS", DefaultRateProviders)
	v.SetDefault("OPEN_ER_API_URL", DefaultOpenERAPIURL)
	v.SetDefault("FRANKFURTER_URL", DefaultFrankfurterURL)
	v.SetDefault("PROVIDER_TIMEOUT", DefaultProviderTimeout)
	v.SetDefault("RATE_RETRY_AFTER", DefaultRateRetryAfter)
	v.SetDefault("RATE_MAX_AGE", DefaultRateMaxAge)
	v.SetDefault("DEFAULT_BASE_CURRENCY", DefaultBaseCurrency)
	v.SetDefault("GROUP_RECOVERY_WINDOW", DefaultGroupRecoveryWindow)
}

// Load read configuration from file or environment variables.
func Load(path string) (Config, error) {
	var c Config

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")

	v.AutomaticEnv()
	setDefaults(v)

	err := v.ReadInConfig()
	if err != nil {
		return c, err
	}

	err = v.Unmarshal(&c)
	if err != nil {
		return c, err
	}

	return c, nil
}
