package observationstore

import (
	"context"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"ulascansenturk/weather-exporter/internal/weather"
)

type Repository interface {
	SaveObservation(ctx context.Context, obs weather.Observation) error
	LatestObservations(ctx context.Context) ([]weather.Observation, error)
}

type ObservationSQLRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &ObservationSQLRepository{db: db}
}

// SaveObservation keeps one row per location, replacing the previous one.
func (r *ObservationSQLRepository) SaveObservation(ctx context.Context, obs weather.Observation) error {
	row := fromObservation(obs)

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "location"}},
			UpdateAll: true,
		}).
		Create(&row).Error
}

func (r *ObservationSQLRepository) LatestObservations(ctx context.Context) ([]weather.Observation, error) {
	var rows []LocationObservation
	if err := r.db.WithContext(ctx).Order("location").Find(&rows).Error; err != nil {
		return nil, err
	}

	observations := make([]weather.Observation, 0, len(rows))
	for _, row := range rows {
		observations = append(observations, row.toObservation())
	}
	return observations, nil
}
