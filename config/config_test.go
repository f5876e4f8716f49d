package config_test

import (
	"errors"
	"github.com/stretchr/testify/suite"
	"gopkg.in/yaml.v3"
	"os"
	"path/filepath"
	"testing"
	"time"
	"ulascansenturk/weather-exporter/config"
	"ulascansenturk/weather-exporter/internal/units"
	"ulascansenturk/weather-exporter/internal/weather"
)

type fileLocation struct {
	Name string   `yaml:"name"`
	Lat  *float64 `yaml:"lat,omitempty"`
	Lon  *float64 `yaml:"lon,omitempty"`
}

type fileConfig struct {
	Interval  interface{}    `yaml:"interval,omitempty"`
	LogLevel  string         `yaml:"loglevel,omitempty"`
	Port      int            `yaml:"listen_port,omitempty"`
	APIKey    string         `yaml:"api_key,omitempty"`
	Units     string         `yaml:"units,omitempty"`
	Timeout   interface{}    `yaml:"timeout,omitempty"`
	Locations []fileLocation `yaml:"locations,omitempty"`
}

type ConfigTestSuite struct {
	suite.Suite
	dir string
}

func (s *ConfigTestSuite) SetupTest() {
	s.dir = s.T().TempDir()

	for _, env := range []string{
		"INTERVAL", "LOGLEVEL", "LISTEN_PORT", "API_KEY", "UNITS", "TIMEOUT", "MAX_CONCURRENCY",
		"REQUESTS_PER_SECOND", "SHUTDOWN_GRACE", "API_BASE_URL", "DATABASE_DSN", "SERVICE_NAME",
	} {
		s.T().Setenv(env, "")
		os.Unsetenv(env)
	}
}

func ptr(f float64) *float64 {
	return &f
}

func (s *ConfigTestSuite) berlin() fileConfig {
	return fileConfig{
		Interval:  600,
		APIKey:    "secret",
		Units:     "C",
		Locations: []fileLocation{{Name: "Berlin", Lat: ptr(52.52), Lon: ptr(13.40)}},
	}
}

func (s *ConfigTestSuite) write(cfg fileConfig) string {
	data, err := yaml.Marshal(cfg)
	s.Require().NoError(err)

	path := filepath.Join(s.dir, "config.yaml")
	s.Require().NoError(os.WriteFile(path, data, 0o600))
	return path
}

func (s *ConfigTestSuite) problems(err error) []string {
	var configErr *config.ConfigError
	s.Require().True(errors.As(err, &configErr), "expected ConfigError, got %v", err)
	return configErr.Problems
}

func (s *ConfigTestSuite) TestLoadConfig_FileWithDefaults() {
	cfg, err := config.LoadConfig(s.write(s.berlin()), 0)
	s.Require().NoError(err)

	s.Equal(600*time.Second, cfg.Interval)
	s.Equal(10*time.Second, cfg.Timeout)
	s.Equal(10*time.Second, cfg.ShutdownGrace)
	s.Equal("info", cfg.LogLevel)
	s.Equal(9126, cfg.ListenPort)
	s.Equal(":9126", cfg.ListenAddress())
	s.Equal(units.Celsius, cfg.Units)
	s.Equal(4, cfg.MaxConcurrency)
	s.Equal(1.0, cfg.RequestsPerSecond)
	s.Equal("https://api.openweathermap.org/data/2.5", cfg.APIBaseURL)
	s.Equal("weather-exporter", cfg.ServiceName)
	s.Empty(cfg.DatabaseDSN)

	s.Require().Len(cfg.Locations, 1)
	s.Equal("Berlin", cfg.Locations[0].Name)
	s.InDelta(52.52, *cfg.Locations[0].Latitude, 1e-9)
	s.InDelta(13.40, *cfg.Locations[0].Longitude, 1e-9)
}

func (s *ConfigTestSuite) TestLoadConfig_EnvOverridesFile() {
	path := s.write(s.berlin())

	s.T().Setenv("INTERVAL", "120")
	s.T().Setenv("LOGLEVEL", "DEBUG")
	s.T().Setenv("LISTEN_PORT", "9100")
	s.T().Setenv("API_KEY", "from-env")
	s.T().Setenv("UNITS", "f")

	cfg, err := config.LoadConfig(path, 0)
	s.Require().NoError(err)

	s.Equal(120*time.Second, cfg.Interval)
	s.Equal("debug", cfg.LogLevel)
	s.Equal(9100, cfg.ListenPort)
	s.Equal("from-env", cfg.APIKey)
	s.Equal(units.Fahrenheit, cfg.Units)
}

func (s *ConfigTestSuite) TestLoadConfig_UnparsableEnvValues() {
	path := s.write(s.berlin())

	s.T().Setenv("INTERVAL", "10m")
	s.T().Setenv("LISTEN_PORT", "http")

	_, err := config.LoadConfig(path, 0)

	problems := s.problems(err)
	s.ElementsMatch([]string{
		`interval: invalid value "10m", expected a number`,
		`listen_port: invalid value "http", expected an integer`,
	}, problems)
}

func (s *ConfigTestSuite) TestLoadConfig_LowerCaseUnit() {
	cfg := s.berlin()
	cfg.Units = " k "

	loaded, err := config.LoadConfig(s.write(cfg), 0)
	s.Require().NoError(err)

	s.Equal(units.Kelvin, loaded.Units)
}

func (s *ConfigTestSuite) TestLoadConfig_MissingFileUsesEnvironment() {
	s.T().Setenv("API_KEY", "secret")

	_, err := config.LoadConfig(filepath.Join(s.dir, "absent.yaml"), 0)

	problems := s.problems(err)
	s.Contains(problems, "locations: at least one entry is required")
}

func (s *ConfigTestSuite) TestLoadConfig_UnreadableFile() {
	path := filepath.Join(s.dir, "config.yaml")
	s.Require().NoError(os.WriteFile(path, []byte("locations: [unterminated"), 0o600))

	_, err := config.LoadConfig(path, 0)

	problems := s.problems(err)
	s.Require().Len(problems, 1)
	s.Contains(problems[0], "error reading config file")
}

func (s *ConfigTestSuite) TestLoadConfig_Verbosity() {
	cfg := s.berlin()
	cfg.LogLevel = "ERROR"
	path := s.write(cfg)

	tests := []struct {
		verbosity int
		want      string
	}{
		{0, "error"},
		{1, "warn"},
		{2, "info"},
		{3, "debug"},
		{5, "debug"},
	}

	for _, tt := range tests {
		loaded, err := config.LoadConfig(path, tt.verbosity)
		s.Require().NoError(err)
		s.Equal(tt.want, loaded.LogLevel, "verbosity %d", tt.verbosity)
	}
}

func (s *ConfigTestSuite) TestLoadConfig_LogLevelEnvBeatsVerbosity() {
	s.T().Setenv("LOGLEVEL", "warning")

	cfg, err := config.LoadConfig(s.write(s.berlin()), 3)
	s.Require().NoError(err)

	s.Equal("warn", cfg.LogLevel)
}

func (s *ConfigTestSuite) TestLoadConfig_LocationByName() {
	cfg := s.berlin()
	cfg.Locations = []fileLocation{{Name: " London "}}

	loaded, err := config.LoadConfig(s.write(cfg), 0)
	s.Require().NoError(err)

	s.Equal("London", loaded.Locations[0].Name)
	s.False(loaded.Locations[0].HasCoordinates())
}

func (s *ConfigTestSuite) TestLoadConfig_Invalid() {
	tests := []struct {
		name    string
		mutate  func(*fileConfig)
		problem string
	}{
		{
			name:    "zero locations",
			mutate:  func(c *fileConfig) { c.Locations = nil },
			problem: "locations: at least one entry is required",
		},
		{
			name:    "non-positive interval",
			mutate:  func(c *fileConfig) { c.Interval = -5 },
			problem: "interval must be at least 60s, got -5s",
		},
		{
			name:    "interval below minimum",
			mutate:  func(c *fileConfig) { c.Interval = 30 },
			problem: "interval must be at least 60s, got 30s",
		},
		{
			name:    "invalid unit",
			mutate:  func(c *fileConfig) { c.Units = "R" },
			problem: `units: unsupported unit "R" (expected C, F or K)`,
		},
		{
			name:    "missing api key",
			mutate:  func(c *fileConfig) { c.APIKey = "" },
			problem: "api_key is required",
		},
		{
			name:    "port out of range",
			mutate:  func(c *fileConfig) { c.Port = 70000 },
			problem: "listen_port must be at most 65535, got 70000",
		},
		{
			name:    "timeout longer than interval",
			mutate:  func(c *fileConfig) { c.Timeout = 900 },
			problem: "timeout must not exceed interval",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *fileConfig) { c.LogLevel = "loud" },
			problem: `loglevel must be one of [trace debug info warn error fatal panic disabled], got "loud"`,
		},
		{
			name: "latitude out of range",
			mutate: func(c *fileConfig) {
				c.Locations = []fileLocation{{Name: "Nowhere", Lat: ptr(91), Lon: ptr(0)}}
			},
			problem: "locations[0].lat must be at most 90, got 91",
		},
		{
			name: "latitude without longitude",
			mutate: func(c *fileConfig) {
				c.Locations = []fileLocation{{Name: "Half", Lat: ptr(10)}}
			},
			problem: "locations[0] (Half): lat and lon must be set together",
		},
		{
			name: "empty location name",
			mutate: func(c *fileConfig) {
				c.Locations = []fileLocation{{Name: "  ", Lat: ptr(1), Lon: ptr(1)}}
			},
			problem: "locations[0].name is required",
		},
		{
			name: "duplicate location names",
			mutate: func(c *fileConfig) {
				c.Locations = append(c.Locations, fileLocation{Name: "Berlin"})
			},
			problem: `locations[1]: name "Berlin" already used by locations[0]`,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			cfg := s.berlin()
			tt.mutate(&cfg)

			_, err := config.LoadConfig(s.write(cfg), 0)

			s.Contains(s.problems(err), tt.problem)
			s.Contains(err.Error(), "invalid configuration: ")
		})
	}
}

func (s *ConfigTestSuite) TestValidate_CollectsEveryProblem() {
	cfg := &config.Config{
		ServiceName:       "weather-exporter",
		Interval:          0,
		Timeout:           time.Second,
		LogLevel:          "info",
		ListenPort:        9126,
		APIBaseURL:        "https://api.openweathermap.org/data/2.5",
		Units:             "X",
		MaxConcurrency:    1,
		RequestsPerSecond: 1,
	}

	problems := s.problems(cfg.Validate())

	s.Len(problems, 5)
	s.Contains(problems, "api_key is required")
	s.Contains(problems, "locations: at least one entry is required")
}

func (s *ConfigTestSuite) TestValidate_Valid() {
	cfg := &config.Config{
		ServiceName:       "weather-exporter",
		Interval:          time.Minute,
		Timeout:           time.Minute,
		LogLevel:          "info",
		ListenPort:        1,
		APIKey:            "secret",
		APIBaseURL:        "http://localhost:8080/data/2.5",
		Units:             units.Kelvin,
		MaxConcurrency:    1,
		RequestsPerSecond: 0.5,
		Locations:         []weather.Location{{Name: "London"}},
	}

	s.NoError(cfg.Validate())
}

func TestConfigTestSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}
