package weather

import (
	"fmt"
	"strings"
	"time"
)

// Location is a configured place to poll. Name is unique and doubles as the
// metric label. Coordinates are optional; without them the upstream lookup is
// done by name.
type Location struct {
	Name      string   `mapstructure:"name" yaml:"name" validate:"required"`
	Latitude  *float64 `mapstructure:"lat" yaml:"lat,omitempty" validate:"omitempty,min=-90,max=90"`
	Longitude *float64 `mapstructure:"lon" yaml:"lon,omitempty" validate:"omitempty,min=-180,max=180"`
}

func (l Location) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// Key identifies the upstream request a location maps to. Two locations with
// the same key share one upstream call per poll cycle.
func (l Location) Key() string {
	if l.HasCoordinates() {
		return fmt.Sprintf("coord:%.4f,%.4f", *l.Latitude, *l.Longitude)
	}
	return "name:" + strings.ToLower(strings.TrimSpace(l.Name))
}

// Observation is a single current-weather reading for one location.
// Temperatures are in provider units (Kelvin) as returned by the client and in
// the configured unit once converted by the poller.
type Observation struct {
	Location string
	Country  string

	Temperature    float64
	TemperatureMin float64
	TemperatureMax float64
	FeelsLike      float64

	Humidity      float64
	Pressure      float64
	WindSpeed     float64
	WindDirection float64
	Cloudiness    float64

	Sunrise time.Time
	Sunset  time.Time

	ConditionCode int
	Condition     string

	ObservedAt time.Time
	FetchedAt  time.Time
}
