package metrics_test

import (
	"fmt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"strings"
	"sync"
	"testing"
	"time"
	"ulascansenturk/weather-exporter/internal/metrics"
	"ulascansenturk/weather-exporter/internal/weather"
)

type RegistryTestSuite struct {
	suite.Suite
	registry *metrics.Registry
}

func (s *RegistryTestSuite) SetupTest() {
	s.registry = metrics.NewRegistry()
}

func observation(temp float64) weather.Observation {
	return weather.Observation{
		Country:        "DE",
		Temperature:    temp,
		TemperatureMin: temp - 1,
		TemperatureMax: temp + 1,
		FeelsLike:      temp - 2,
		Humidity:       temp + 50,
		Pressure:       1000 + temp,
		WindSpeed:      temp / 10,
		WindDirection:  180,
		Cloudiness:     40,
		Sunrise:        time.Unix(1735716000, 0),
		Sunset:         time.Unix(1735744000, 0),
		ConditionCode:  800,
		Condition:      "clear sky",
		FetchedAt:      time.Now(),
	}
}

func (s *RegistryTestSuite) snapshot() string {
	text, err := s.registry.Snapshot()
	s.Require().NoError(err)
	return text
}

func (s *RegistryTestSuite) TestUpdateAppearsInSnapshot() {
	s.registry.Update("Berlin", observation(10.5))

	text := s.snapshot()
	s.Contains(text, `owm_temperature{country="DE",location="Berlin"} 10.5`)
	s.Contains(text, `owm_temperature_min{country="DE",location="Berlin"} 9.5`)
	s.Contains(text, `owm_humidity{country="DE",location="Berlin"} 60.5`)
	s.Contains(text, `owm_weather_condition{condition="clear sky",country="DE",location="Berlin"} 1`)
	s.Contains(text, `owm_weather_condition_code{country="DE",location="Berlin"} 800`)
	s.Contains(text, `owm_sunrise_time{country="DE",location="Berlin"} 1.735716e+09`)
	s.Contains(text, `owm_last_fetch_success{location="Berlin"} 1`)
	s.Contains(text, "# TYPE owm_temperature gauge")
	s.Contains(text, "owm_last_successful_fetch_timestamp_seconds")
}

func (s *RegistryTestSuite) TestUpdateOverwritesPreviousValues() {
	s.registry.Update("Berlin", observation(10))
	next := observation(20)
	next.Condition = "light rain"
	s.registry.Update("Berlin", next)

	text := s.snapshot()
	s.Contains(text, `owm_temperature{country="DE",location="Berlin"} 20`)
	s.NotContains(text, `owm_temperature{country="DE",location="Berlin"} 10`)
	s.Contains(text, `condition="light rain"`)
	s.NotContains(text, `condition="clear sky"`)
}

func (s *RegistryTestSuite) TestRecordFailureKeepsLastKnownGood() {
	s.registry.Update("Berlin", observation(10))
	s.registry.RecordFailure("Berlin", "timeout")

	text := s.snapshot()
	s.Contains(text, `owm_temperature{country="DE",location="Berlin"} 10`)
	s.Contains(text, `owm_fetch_errors_total{location="Berlin",reason="timeout"} 1`)
	s.Contains(text, `owm_last_fetch_success{location="Berlin"} 0`)
	s.Equal(1.0, s.registry.FailureCount("Berlin"))

	s.registry.RecordFailure("Berlin", "http-status")
	s.Equal(2.0, s.registry.FailureCount("Berlin"))
	obs, ok := s.registry.Observation("Berlin")
	s.True(ok)
	s.Equal(10.0, obs.Temperature)
}

func (s *RegistryTestSuite) TestFailureWithoutDataExposesOnlyMetaMetrics() {
	s.registry.RecordFailure("Oslo", "network-error")

	text := s.snapshot()
	s.NotContains(text, `owm_temperature{`)
	s.Contains(text, `owm_fetch_errors_total{location="Oslo",reason="network-error"} 1`)
	s.NotContains(text, `owm_last_fetch_success_timestamp_seconds{location="Oslo"}`)
	s.NotContains(text, "\nowm_last_successful_fetch_timestamp_seconds")
}

func (s *RegistryTestSuite) TestSuccessTimestamps() {
	fetched := time.Unix(1735689600, 0)
	obs := observation(5)
	obs.FetchedAt = fetched
	s.registry.Update("Berlin", obs)

	older := observation(6)
	older.FetchedAt = fetched.Add(-time.Hour)
	s.registry.Update("Paris", older)

	text := s.snapshot()
	s.Contains(text, "owm_last_successful_fetch_timestamp_seconds 1.7356896e+09")
	s.Contains(text, `owm_last_fetch_success_timestamp_seconds{location="Paris"} 1.735686e+09`)
}

func (s *RegistryTestSuite) TestRestoreKeepsLocationMarkedStale() {
	restored := observation(7)
	restored.FetchedAt = time.Unix(1735686000, 0)

	s.True(s.registry.Restore("Berlin", restored))

	text := s.snapshot()
	s.Contains(text, `owm_temperature{country="DE",location="Berlin"} 7`)
	s.Contains(text, `owm_last_fetch_success{location="Berlin"} 0`)
	s.Contains(text, `owm_last_fetch_success_timestamp_seconds{location="Berlin"} 1.735686e+09`)
	s.NotContains(text, "\nowm_last_successful_fetch_timestamp_seconds")

	s.registry.Update("Berlin", observation(12))
	s.False(s.registry.Restore("Berlin", restored))

	text = s.snapshot()
	s.Contains(text, `owm_temperature{country="DE",location="Berlin"} 12`)
	s.Contains(text, `owm_last_fetch_success{location="Berlin"} 1`)
}

func (s *RegistryTestSuite) TestRecordCycle() {
	s.registry.RecordCycle(1500 * time.Millisecond)
	s.registry.RecordCycle(2 * time.Second)

	text := s.snapshot()
	s.Contains(text, "owm_poll_cycles_total 2")
	s.Contains(text, "owm_poll_cycle_duration_seconds 2")
}

func (s *RegistryTestSuite) TestExtraCollectors() {
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "owm_test_total", Help: "test"})
	counter.Add(3)
	s.registry.MustRegister(counter)

	s.Contains(s.snapshot(), "owm_test_total 3")
}

func (s *RegistryTestSuite) TestSnapshotIsConsistentPerLocation() {
	var wg sync.WaitGroup
	stop := make(chan struct{})

	for _, location := range []string{"Berlin", "Paris", "Tokyo"} {
		wg.Add(1)
		go func(location string) {
			defer wg.Done()
			for i := 0; ; i++ {
				select {
				case <-stop:
					return
				default:
					s.registry.Update(location, observation(float64(i)))
				}
			}
		}(location)
	}

	for i := 0; i < 200; i++ {
		text := s.snapshot()
		for _, location := range []string{"Berlin", "Paris", "Tokyo"} {
			temp, ok := sampleValue(text, fmt.Sprintf(`owm_temperature{country="DE",location="%s"}`, location))
			if !ok {
				continue
			}
			max, ok := sampleValue(text, fmt.Sprintf(`owm_temperature_max{country="DE",location="%s"}`, location))
			s.Require().True(ok)
			s.Require().Equal(temp+1, max, "mixed observations for %s", location)
		}
	}

	close(stop)
	wg.Wait()
}

func sampleValue(text, series string) (float64, bool) {
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, series+" ") {
			var v float64
			if _, err := fmt.Sscanf(strings.TrimPrefix(line, series+" "), "%g", &v); err == nil {
				return v, true
			}
		}
	}
	return 0, false
}

func TestRegistryTestSuite(t *testing.T) {
	suite.Run(t, new(RegistryTestSuite))
}
