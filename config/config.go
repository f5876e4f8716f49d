// Package config resolves the exporter configuration from defaults, a YAML
// file and environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"io/fs"
	"os"
	"reflect"
	"strings"
	"time"
	"ulascansenturk/weather-exporter/internal/units"
	"ulascansenturk/weather-exporter/internal/weather"
)

const DefaultConfigFile = "config.yaml"

// MinInterval keeps the poll rate within what the upstream API refreshes at.
const MinInterval = 60 * time.Second

// Environment variables that override file values. Locations are file-only.
var envBindings = map[string]string{
	"interval":            "INTERVAL",
	"loglevel":            "LOGLEVEL",
	"listen_port":         "LISTEN_PORT",
	"api_key":             "API_KEY",
	"units":               "UNITS",
	"timeout":             "TIMEOUT",
	"max_concurrency":     "MAX_CONCURRENCY",
	"requests_per_second": "REQUESTS_PER_SECOND",
	"shutdown_grace":      "SHUTDOWN_GRACE",
	"api_base_url":        "API_BASE_URL",
	"database_dsn":        "DATABASE_DSN",
	"service_name":        "SERVICE_NAME",
}

type Config struct {
	ServiceName string `mapstructure:"service_name" validate:"required"`

	Interval      time.Duration `mapstructure:"interval"`
	Timeout       time.Duration `mapstructure:"timeout" validate:"gt=0,ltefield=Interval"`
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace" validate:"min=0s"`

	LogLevel   string `mapstructure:"loglevel" validate:"oneof=trace debug info warn error fatal panic disabled"`
	ListenPort int    `mapstructure:"listen_port" validate:"min=1,max=65535"`

	APIKey            string     `mapstructure:"api_key" validate:"required"`
	APIBaseURL        string     `mapstructure:"api_base_url" validate:"required,url"`
	Units             units.Unit `mapstructure:"units" validate:"unit"`
	MaxConcurrency    int        `mapstructure:"max_concurrency" validate:"min=1"`
	RequestsPerSecond float64    `mapstructure:"requests_per_second" validate:"gt=0"`

	Locations []weather.Location `mapstructure:"locations" validate:"required,min=1,dive"`

	DatabaseDSN string `mapstructure:"database_dsn"`
}

// ConfigError lists every problem found in a configuration. It is fatal at
// startup.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// LoadConfig reads path (a missing file is not an error), applies environment
// overrides and validates the result. verbosity is the number of -v flags; it
// overrides the file's loglevel but not the LOGLEVEL variable.
func LoadConfig(path string, verbosity int) (*Config, error) {
	v := viper.New()

	v.SetDefault("service_name", "weather-exporter")
	v.SetDefault("interval", 600)
	v.SetDefault("loglevel", "INFO")
	v.SetDefault("listen_port", 9126)
	v.SetDefault("units", "C")
	v.SetDefault("timeout", 10)
	v.SetDefault("max_concurrency", 4)
	v.SetDefault("requests_per_second", 1)
	v.SetDefault("shutdown_grace", 10)
	v.SetDefault("api_base_url", "https://api.openweathermap.org/data/2.5")

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("error binding %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
				log.Warn().Str("file", path).Msg("No config file found, using defaults and environment variables only")
			} else {
				return nil, &ConfigError{Problems: []string{fmt.Sprintf("error reading config file %s: %v", path, err)}}
			}
		} else {
			log.Info().Str("file", v.ConfigFileUsed()).Msg("Config file loaded")
		}
	}

	var problems []string
	number := func(key string) float64 {
		value, err := cast.ToFloat64E(v.Get(key))
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: invalid value %q, expected a number", key, v.GetString(key)))
		}
		return value
	}
	integer := func(key string) int {
		value, err := cast.ToIntE(v.Get(key))
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: invalid value %q, expected an integer", key, v.GetString(key)))
		}
		return value
	}

	config := &Config{
		ServiceName:       strings.TrimSpace(v.GetString("service_name")),
		Interval:          seconds(number("interval")),
		Timeout:           seconds(number("timeout")),
		ShutdownGrace:     seconds(number("shutdown_grace")),
		LogLevel:          normalizeLevel(v.GetString("loglevel")),
		ListenPort:        integer("listen_port"),
		APIKey:            strings.TrimSpace(v.GetString("api_key")),
		APIBaseURL:        strings.TrimSpace(v.GetString("api_base_url")),
		MaxConcurrency:    integer("max_concurrency"),
		RequestsPerSecond: number("requests_per_second"),
		DatabaseDSN:       strings.TrimSpace(v.GetString("database_dsn")),
	}

	if len(problems) > 0 {
		return nil, &ConfigError{Problems: problems}
	}

	// An unparsable unit is left as given for Validate to report.
	rawUnit := strings.TrimSpace(v.GetString("units"))
	config.Units = units.Unit(rawUnit)
	if unit, err := units.ParseUnit(rawUnit); err == nil {
		config.Units = unit
	}

	if verbosity > 0 {
		if _, fromEnv := os.LookupEnv("LOGLEVEL"); !fromEnv {
			config.LogLevel = verbosityLevel(verbosity)
		}
	}

	if err := v.UnmarshalKey("locations", &config.Locations); err != nil {
		return nil, &ConfigError{Problems: []string{fmt.Sprintf("locations: %v", err)}}
	}
	for i := range config.Locations {
		config.Locations[i].Name = strings.TrimSpace(config.Locations[i].Name)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate returns a *ConfigError describing every violated constraint.
func (c *Config) Validate() error {
	var problems []string

	if err := newValidator().Struct(c); err != nil {
		var validationErrs validator.ValidationErrors
		if !errors.As(err, &validationErrs) {
			return &ConfigError{Problems: []string{err.Error()}}
		}
		for _, fe := range validationErrs {
			problems = append(problems, describe(fe))
		}
	}

	if c.Interval < MinInterval {
		problems = append(problems, fmt.Sprintf("interval must be at least %gs, got %s", MinInterval.Seconds(), c.Interval))
	}

	seen := make(map[string]int, len(c.Locations))
	for i, location := range c.Locations {
		if (location.Latitude == nil) != (location.Longitude == nil) {
			problems = append(problems, fmt.Sprintf("locations[%d] (%s): lat and lon must be set together", i, location.Name))
		}
		if location.Name == "" {
			continue
		}
		if first, dup := seen[location.Name]; dup {
			problems = append(problems, fmt.Sprintf("locations[%d]: name %q already used by locations[%d]", i, location.Name, first))
			continue
		}
		seen[location.Name] = i
	}

	if len(problems) > 0 {
		return &ConfigError{Problems: problems}
	}
	return nil
}

// ZerologLevel is the parsed form of LogLevel. Validate guarantees it parses.
func (c *Config) ZerologLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

func (c *Config) ListenAddress() string {
	return fmt.Sprintf(":%d", c.ListenPort)
}

func newValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())

	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})

	_ = validate.RegisterValidation("unit", func(fl validator.FieldLevel) bool {
		return units.Unit(fl.Field().String()).Valid()
	})

	return validate
}

func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	switch fe.Tag() {
	case "required":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s: at least one entry is required", field)
		}
		return fmt.Sprintf("%s is required", field)
	case "min", "gte":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s: at least %s entries are required", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s, got %v", field, fe.Param(), fe.Value())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s, got %v", field, fe.Param(), fe.Value())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "ltefield":
		return fmt.Sprintf("%s must not exceed %s", field, strings.ToLower(fe.Param()))
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value())
	case "unit":
		return fmt.Sprintf("%s: unsupported unit %q (expected C, F or K)", field, fe.Value())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func normalizeLevel(level string) string {
	level = strings.ToLower(strings.TrimSpace(level))
	switch level {
	case "warning":
		return "warn"
	case "critical":
		return "fatal"
	case "":
		return "info"
	}
	return level
}

func verbosityLevel(count int) string {
	switch {
	case count >= 3:
		return "debug"
	case count == 2:
		return "info"
	default:
		return "warn"
	}
}
