// Package poller refreshes the metrics registry from the weather API on a
// fixed interval.
package poller

import (
	"context"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"sync/atomic"
	"time"
	"ulascansenturk/weather-exporter/internal/db/observationstore"
	"ulascansenturk/weather-exporter/internal/inmemorycache"
	"ulascansenturk/weather-exporter/internal/providers"
	"ulascansenturk/weather-exporter/internal/units"
	"ulascansenturk/weather-exporter/internal/weather"
)

const (
	reasonInternal   = "internal-error"
	reasonConversion = "conversion-error"
)

// Recorder receives the outcome of every fetch. *metrics.Registry implements it.
type Recorder interface {
	Update(location string, obs weather.Observation)
	Restore(location string, obs weather.Observation) bool
	RecordFailure(location, reason string)
	RecordCycle(duration time.Duration)
}

type Options struct {
	Locations []weather.Location
	Unit      units.Unit
	Interval  time.Duration

	// MaxInFlight bounds concurrent upstream calls within a cycle.
	MaxInFlight int

	// GracePeriod is how long in-flight fetches may run after shutdown is
	// requested. Zero abandons them immediately.
	GracePeriod time.Duration
}

type CycleResult struct {
	ID        string
	Succeeded int
	Failed    int
	Aborted   int
	Duration  time.Duration
}

type outcome int

const (
	outcomeSucceeded outcome = iota
	outcomeFailed
	outcomeAborted
)

type Poller struct {
	client   providers.WeatherClient
	recorder Recorder
	cache    inmemorycache.Cache
	store    observationstore.Repository
	opts     Options
	flights  singleflight.Group
}

// New builds a poller. cache and store may be nil.
func New(
	client providers.WeatherClient,
	recorder Recorder,
	cache inmemorycache.Cache,
	store observationstore.Repository,
	opts Options,
) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Minute
	}
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = 1
	}
	if opts.GracePeriod < 0 {
		opts.GracePeriod = 0
	}
	if opts.Unit == "" {
		opts.Unit = units.Celsius
	}

	return &Poller{
		client:   client,
		recorder: recorder,
		cache:    cache,
		store:    store,
		opts:     opts,
	}
}

// GracePeriod is how long shutdown may wait for in-flight fetches.
func (p *Poller) GracePeriod() time.Duration {
	return p.opts.GracePeriod
}

// Run polls until ctx is cancelled. The next cycle is scheduled Interval after
// the previous one completed, so cycles never overlap.
func (p *Poller) Run(ctx context.Context) error {
	log.Info().
		Int("locations", len(p.opts.Locations)).
		Dur("interval", p.opts.Interval).
		Int("max_in_flight", p.opts.MaxInFlight).
		Msg("poller started")
	defer log.Info().Msg("poller stopped")

	p.Restore(ctx)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		if ctx.Err() != nil {
			return nil
		}

		p.RunCycle(ctx)
		timer.Reset(p.opts.Interval)
	}
}

// RunCycle fetches every location once. Failures are recorded per location and
// never stop the cycle. After ctx is cancelled no new fetch starts and running
// ones are abandoned once GracePeriod has passed.
func (p *Poller) RunCycle(ctx context.Context) CycleResult {
	started := time.Now()
	result := CycleResult{ID: newCycleID()}
	logger := log.With().Str("cycle_id", result.ID).Logger()

	workCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	stopGrace := context.AfterFunc(ctx, func() {
		if p.opts.GracePeriod == 0 {
			logger.Warn().Msg("shutdown requested, abandoning in-flight fetches")
			cancel()
			return
		}
		logger.Warn().Dur("grace_period", p.opts.GracePeriod).Msg("shutdown requested, waiting for in-flight fetches")
		time.AfterFunc(p.opts.GracePeriod, cancel)
	})
	defer stopGrace()

	var succeeded, failed, aborted atomic.Int32

	var g errgroup.Group
	g.SetLimit(p.opts.MaxInFlight)

	for _, location := range p.opts.Locations {
		if ctx.Err() != nil {
			aborted.Add(1)
			continue
		}

		location := location
		g.Go(func() error {
			switch p.process(ctx, workCtx, logger, location) {
			case outcomeSucceeded:
				succeeded.Add(1)
			case outcomeFailed:
				failed.Add(1)
			default:
				aborted.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	result.Succeeded = int(succeeded.Load())
	result.Failed = int(failed.Load())
	result.Aborted = int(aborted.Load())
	result.Duration = time.Since(started)

	p.recorder.RecordCycle(result.Duration)

	logger.Info().
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Int("aborted", result.Aborted).
		Dur("duration", result.Duration).
		Msg("poll cycle completed")

	return result
}

func (p *Poller) process(ctx, workCtx context.Context, logger zerolog.Logger, location weather.Location) (result outcome) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Str("location", location.Name).Interface("panic", r).Msg("recovered while polling location")
			p.recorder.RecordFailure(location.Name, reasonInternal)
			result = outcomeFailed
		}
	}()

	if ctx.Err() != nil {
		return outcomeAborted
	}

	raw, err := p.fetch(workCtx, location)
	if err != nil {
		if workCtx.Err() != nil {
			logger.Debug().Err(err).Str("location", location.Name).Msg("fetch abandoned during shutdown")
			return outcomeAborted
		}

		reason := providers.ReasonOf(err)
		p.recorder.RecordFailure(location.Name, string(reason))
		logger.Warn().Err(err).Str("location", location.Name).Str("reason", string(reason)).Msg("failed to fetch weather")
		return outcomeFailed
	}

	converted, err := convertObservation(raw, p.opts.Unit)
	if err != nil {
		p.recorder.RecordFailure(location.Name, reasonConversion)
		logger.Error().Err(err).Str("location", location.Name).Msg("failed to convert observation")
		return outcomeFailed
	}

	p.recorder.Update(location.Name, converted)
	logger.Debug().
		Str("location", location.Name).
		Str("country", converted.Country).
		Float64("temperature", converted.Temperature).
		Msg("updated metrics")

	p.persist(workCtx, raw)

	return outcomeSucceeded
}

// fetch makes at most one upstream call per location key and cycle.
func (p *Poller) fetch(ctx context.Context, location weather.Location) (weather.Observation, error) {
	key := location.Key()

	v, err, _ := p.flights.Do(key, func() (interface{}, error) {
		if p.cache != nil {
			if obs, ok := p.cache.Get(key); ok {
				return obs, nil
			}
		}

		obs, err := p.client.Fetch(ctx, location)
		if err != nil {
			return nil, err
		}

		if p.cache != nil {
			p.cache.Set(key, obs, p.opts.Interval/2)
		}
		return obs, nil
	})
	if err != nil {
		return weather.Observation{}, err
	}

	obs := v.(weather.Observation)
	obs.Location = location.Name
	return obs, nil
}

func (p *Poller) persist(ctx context.Context, raw weather.Observation) {
	if p.store == nil {
		return
	}

	if err := p.store.SaveObservation(ctx, raw); err != nil {
		log.Warn().Err(err).Str("location", raw.Location).Msg("failed to persist observation")
	}
}

// Restore seeds the recorder with the last stored observation of every
// configured location so values survive a restart. Restored locations still
// report their latest fetch as failed until this process fetches them.
func (p *Poller) Restore(ctx context.Context) int {
	if p.store == nil {
		return 0
	}

	stored, err := p.store.LatestObservations(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to restore last known observations")
		return 0
	}

	configured := make(map[string]bool, len(p.opts.Locations))
	for _, location := range p.opts.Locations {
		configured[location.Name] = true
	}

	restored := 0
	for _, obs := range stored {
		if !configured[obs.Location] {
			continue
		}

		converted, err := convertObservation(obs, p.opts.Unit)
		if err != nil {
			log.Warn().Err(err).Str("location", obs.Location).Msg("skipping stored observation")
			continue
		}

		if p.recorder.Restore(obs.Location, converted) {
			restored++
		}
	}

	log.Info().Int("restored", restored).Int("stored", len(stored)).Msg("restored last known observations")
	return restored
}

func convertObservation(obs weather.Observation, unit units.Unit) (weather.Observation, error) {
	for _, value := range []*float64{&obs.Temperature, &obs.TemperatureMin, &obs.TemperatureMax, &obs.FeelsLike} {
		converted, err := units.Convert(*value, unit)
		if err != nil {
			return weather.Observation{}, err
		}
		*value = converted
	}
	return obs, nil
}

func newCycleID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
