package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
	"strconv"
	"strings"
	"time"
	"ulascansenturk/weather-exporter/internal/weather"
)

const DefaultBaseURL = "https://api.openweathermap.org/data/2.5"

type WeatherClient interface {
	Fetch(ctx context.Context, location weather.Location) (weather.Observation, error)
}

type Options struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration

	// RequestsPerSecond may be fractional. Burst defaults to 1.
	RequestsPerSecond float64
	Burst             int

	// The breaker opens after BreakerFailures consecutive failures and
	// lets a probe through after BreakerCooldown.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

type OpenWeatherClient struct {
	http    *resty.Client
	apiKey  string
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	now     func() time.Time
}

func NewOpenWeatherClient(opts Options) *OpenWeatherClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 1
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = time.Minute
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json").
		SetLogger(restyLogger{})

	failures := opts.BreakerFailures
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "openweathermap",
		Timeout: opts.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})

	return &OpenWeatherClient{
		http:    httpClient,
		apiKey:  opts.APIKey,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		breaker: breaker,
		now:     time.Now,
	}
}

// Fetch performs exactly one upstream call for location. All failures are
// returned as *FetchError; nothing is retried here.
func (c *OpenWeatherClient) Fetch(ctx context.Context, location weather.Location) (weather.Observation, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		reason := ReasonRateLimited
		if ctx.Err() != nil {
			reason = transportReason(ctx.Err())
		}
		return weather.Observation{}, &FetchError{Location: location.Name, Reason: reason, Err: err}
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.currentWeather(ctx, location)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return weather.Observation{}, &FetchError{Location: location.Name, Reason: ReasonCircuitOpen, Err: err}
		}
		return weather.Observation{}, err
	}

	return result.(weather.Observation), nil
}

func (c *OpenWeatherClient) currentWeather(ctx context.Context, location weather.Location) (weather.Observation, error) {
	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("appid", c.apiKey)

	if location.HasCoordinates() {
		req.SetQueryParam("lat", strconv.FormatFloat(*location.Latitude, 'f', -1, 64))
		req.SetQueryParam("lon", strconv.FormatFloat(*location.Longitude, 'f', -1, 64))
	} else {
		req.SetQueryParam("q", location.Name)
	}

	resp, err := req.Get("/weather")
	if err != nil {
		return weather.Observation{}, &FetchError{Location: location.Name, Reason: transportReason(err), Err: err}
	}

	if !resp.IsSuccess() {
		return weather.Observation{}, &FetchError{
			Location:   location.Name,
			Reason:     ReasonHTTPStatus,
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("upstream returned %s: %s", resp.Status(), upstreamMessage(resp.Body())),
		}
	}

	obs, err := decodeCurrentWeather(resp.Body())
	if err != nil {
		return weather.Observation{}, &FetchError{Location: location.Name, Reason: ReasonParseError, Err: err}
	}

	obs.Location = location.Name
	obs.FetchedAt = c.now()

	return obs, nil
}

type currentWeatherResponse struct {
	Dt   int64  `json:"dt"`
	Name string `json:"name"`
	Main *struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		TempMin   float64 `json:"temp_min"`
		TempMax   float64 `json:"temp_max"`
		Pressure  float64 `json:"pressure"`
		Humidity  float64 `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
		Deg   float64 `json:"deg"`
	} `json:"wind"`
	Clouds struct {
		All float64 `json:"all"`
	} `json:"clouds"`
	Weather []struct {
		ID          int    `json:"id"`
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Sys struct {
		Country string `json:"country"`
		Sunrise int64  `json:"sunrise"`
		Sunset  int64  `json:"sunset"`
	} `json:"sys"`
}

func decodeCurrentWeather(body []byte) (weather.Observation, error) {
	var payload currentWeatherResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return weather.Observation{}, fmt.Errorf("malformed JSON: %w", err)
	}

	if payload.Main == nil {
		return weather.Observation{}, errors.New("response has no main section")
	}

	obs := weather.Observation{
		Country:        payload.Sys.Country,
		Temperature:    payload.Main.Temp,
		TemperatureMin: payload.Main.TempMin,
		TemperatureMax: payload.Main.TempMax,
		FeelsLike:      payload.Main.FeelsLike,
		Humidity:       payload.Main.Humidity,
		Pressure:       payload.Main.Pressure,
		WindSpeed:      payload.Wind.Speed,
		WindDirection:  payload.Wind.Deg,
		Cloudiness:     payload.Clouds.All,
		Condition:      "unknown",
	}
	if obs.Country == "" {
		obs.Country = "unknown"
	}
	if len(payload.Weather) > 0 {
		obs.ConditionCode = payload.Weather[0].ID
		if payload.Weather[0].Description != "" {
			obs.Condition = payload.Weather[0].Description
		}
	}
	if payload.Sys.Sunrise > 0 {
		obs.Sunrise = time.Unix(payload.Sys.Sunrise, 0).UTC()
	}
	if payload.Sys.Sunset > 0 {
		obs.Sunset = time.Unix(payload.Sys.Sunset, 0).UTC()
	}
	if payload.Dt > 0 {
		obs.ObservedAt = time.Unix(payload.Dt, 0).UTC()
	}

	return obs, nil
}

// upstreamMessage extracts OpenWeatherMap's {"cod":..., "message":...} error text.
func upstreamMessage(body []byte) string {
	var apiErr struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		return apiErr.Message
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return strings.TrimSpace(string(body))
}

type restyLogger struct{}

func (restyLogger) Errorf(format string, v ...interface{}) {
	log.Error().Str("component", "resty").Msgf(format, v...)
}

func (restyLogger) Warnf(format string, v ...interface{}) {
	log.Warn().Str("component", "resty").Msgf(format, v...)
}

func (restyLogger) Debugf(format string, v ...interface{}) {
	log.Debug().Str("component", "resty").Msgf(format, v...)
}
