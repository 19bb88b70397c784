package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	DBSource      string        `mapstructure:"DB_SOURCE"`
	ServerAddress string        `mapstructure:"SERVER_ADDRESS"`
	LogLevel      string        `mapstructure:"LOG_LEVEL"`
	LogFormat     string        `mapstructure:"LOG_FORMAT"`
	HTTPTimeout   time.Duration `mapstructure:"HTTP_TIMEOUT"`

	BreakerTimeout time.Duration `mapstructure:"UPSTREAM_BREAKER_TIMEOUT"`

	GoogleAPIKey          string        `mapstructure:"GOOGLE_API_KEY"`
	GoogleDefaultProvider string        `mapstructure:"GOOGLE_DEFAULT_PROVIDER"`
	GoogleRequestDelay    time.Duration `mapstructure:"GOOGLE_REQUEST_DELAY"`
	GoogleDirectionsURL   string        `mapstructure:"GOOGLE_DIRECTIONS_URL"`

	OCMAPIKey       string        `mapstructure:"OCM_API_KEY"`
	OCMCountryCode  string        `mapstructure:"OCM_COUNTRY_CODE"`
	OCMBatchSize    int           `mapstructure:"OCM_BATCH_SIZE"`
	OCMMaxOffset    int           `mapstructure:"OCM_MAX_OFFSET"`
	OCMRequestDelay time.Duration `mapstructure:"OCM_REQUEST_DELAY"`

	StatiqURL      string `mapstructure:"STATIQ_URL"`
	StatiqSelector string `mapstructure:"STATIQ_SELECTOR"`

	BEEURL          string        `mapstructure:"BEE_URL"`
	BEEFirstID      int           `mapstructure:"BEE_FIRST_ID"`
	BEELastID       int           `mapstructure:"BEE_LAST_ID"`
	BEERequestDelay time.Duration `mapstructure:"BEE_REQUEST_DELAY"`

	CacheTTL       time.Duration `mapstructure:"CACHE_TTL"`
	CacheSize      int           `mapstructure:"CACHE_SIZE"`
	TripCacheTTL   time.Duration `mapstructure:"TRIP_CACHE_TTL"`
	IngestInterval time.Duration `mapstructure:"INGEST_INTERVAL"`
}

var defaults = map[string]any{
	"DB_SOURCE":                "",
	"SERVER_ADDRESS":           "0.0.0.0:8000",
	"LOG_LEVEL":                "info",
	"LOG_FORMAT":               "json",
	"HTTP_TIMEOUT":             "30s",
	"UPSTREAM_BREAKER_TIMEOUT": "30s",
	"GOOGLE_API_KEY":           "",
	"GOOGLE_DEFAULT_PROVIDER":  "Ather Grid",
	"GOOGLE_REQUEST_DELAY":     "1s",
	"GOOGLE_DIRECTIONS_URL":    "https://maps.googleapis.com/maps/api/directions/json",
	"OCM_API_KEY":              "",
	"OCM_COUNTRY_CODE":         "IN",
	"OCM_BATCH_SIZE":           200,
	"OCM_MAX_OFFSET":           20000,
	"OCM_REQUEST_DELAY":        "1s",
	"STATIQ_URL":               "https://www.statiq.in/charging-stations-map",
	"STATIQ_SELECTOR":          ".station-card",
	"BEE_URL":                  "https://evyatra.beeindia.gov.in/bee-ev-backend/getPCSdetailsbystationid",
	"BEE_FIRST_ID":             26248,
	"BEE_LAST_ID":              26367,
	"BEE_REQUEST_DELAY":        "250ms",
	"CACHE_TTL":                "5m",
	"CACHE_SIZE":               1024,
	"TRIP_CACHE_TTL":           "10m",
	"INGEST_INTERVAL":          "24h",
}

// Older deployments export the secrets under these names.
var aliases = map[string][]string{
	"GOOGLE_API_KEY": {"GOOGLE"},
	"OCM_API_KEY":    {"openCharge"},
}

// LoadConfig reads configuration from an optional app.env file in path and from
// the environment. A .env file in the working directory is loaded first.
func LoadConfig(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("config: could not load .env")
	}

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for key, names := range aliases {
		if err := v.BindEnv(append([]string{key, key}, names...)...); err != nil {
			return Config{}, eris.Wrapf(err, "config: bind %s", key)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, eris.Wrap(err, "config: unmarshal")
	}
	cfg.StatiqSelector = strings.TrimSpace(cfg.StatiqSelector)

	return cfg, nil
}

// Validate reports settings every command needs.
func (c Config) Validate() error {
	if c.DBSource == "" {
		return eris.New("config: DB_SOURCE is required")
	}
	return nil
}

// InitLogger configures the global zerolog logger.
func InitLogger(level, format string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return eris.Wrapf(err, "config: parse log level %q", level)
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339

	if format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return nil
}
