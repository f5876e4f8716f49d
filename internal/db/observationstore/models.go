package observationstore

import (
	"time"
	"ulascansenturk/weather-exporter/internal/weather"
)

// LocationObservation is the last successful raw observation for a location.
// Temperatures are stored in Kelvin so a unit change between restarts is harmless.
type LocationObservation struct {
	Location       string    `json:"location" gorm:"primaryKey"`
	Country        string    `json:"country"`
	Temperature    float64   `json:"temperature"`
	TemperatureMin float64   `json:"temperature_min"`
	TemperatureMax float64   `json:"temperature_max"`
	FeelsLike      float64   `json:"feels_like"`
	Humidity       float64   `json:"humidity"`
	Pressure       float64   `json:"pressure"`
	WindSpeed      float64   `json:"wind_speed"`
	WindDirection  float64   `json:"wind_direction"`
	Cloudiness     float64   `json:"cloudiness"`
	Sunrise        time.Time `json:"sunrise"`
	Sunset         time.Time `json:"sunset"`
	ConditionCode  int       `json:"condition_code"`
	Condition      string    `json:"condition"`
	ObservedAt     time.Time `json:"observed_at"`
	FetchedAt      time.Time `json:"fetched_at" gorm:"index:idx_fetched_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (LocationObservation) TableName() string {
	return "location_observations"
}

func fromObservation(obs weather.Observation) LocationObservation {
	return LocationObservation{
		Location:       obs.Location,
		Country:        obs.Country,
		Temperature:    obs.Temperature,
		TemperatureMin: obs.TemperatureMin,
		TemperatureMax: obs.TemperatureMax,
		FeelsLike:      obs.FeelsLike,
		Humidity:       obs.Humidity,
		Pressure:       obs.Pressure,
		WindSpeed:      obs.WindSpeed,
		WindDirection:  obs.WindDirection,
		Cloudiness:     obs.Cloudiness,
		Sunrise:        obs.Sunrise,
		Sunset:         obs.Sunset,
		ConditionCode:  obs.ConditionCode,
		Condition:      obs.Condition,
		ObservedAt:     obs.ObservedAt,
		FetchedAt:      obs.FetchedAt,
	}
}

func (m LocationObservation) toObservation() weather.Observation {
	return weather.Observation{
		Location:       m.Location,
		Country:        m.Country,
		Temperature:    m.Temperature,
		TemperatureMin: m.TemperatureMin,
		TemperatureMax: m.TemperatureMax,
		FeelsLike:      m.FeelsLike,
		Humidity:       m.Humidity,
		Pressure:       m.Pressure,
		WindSpeed:      m.WindSpeed,
		WindDirection:  m.WindDirection,
		Cloudiness:     m.Cloudiness,
		Sunrise:        m.Sunrise,
		Sunset:         m.Sunset,
		ConditionCode:  m.ConditionCode,
		Condition:      m.Condition,
		ObservedAt:     m.ObservedAt,
		FetchedAt:      m.FetchedAt,
	}
}
