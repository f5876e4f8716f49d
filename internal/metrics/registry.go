// Package metrics holds the latest weather values per location and renders
// them in the Prometheus text exposition format.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"ulascansenturk/weather-exporter/internal/weather"
)

const namespace = "owm"

// ContentType is the exposition format served by Snapshot.
const ContentType = "text/plain; version=0.0.4; charset=utf-8"

type locationState struct {
	mu          sync.RWMutex
	obs         weather.Observation
	hasData     bool
	lastOK      bool
	lastSuccess time.Time
	failures    map[string]float64
}

// Registry is safe for concurrent use. Writers lock a single location, so a
// scrape only ever waits on one location's update.
type Registry struct {
	locations  map[string]*locationState
	locationMu sync.RWMutex

	lastSuccess   atomic.Int64
	cycles        atomic.Int64
	cycleDuration atomic.Int64

	prom *prometheus.Registry
}

func NewRegistry() *Registry {
	r := &Registry{
		locations: make(map[string]*locationState),
		prom:      prometheus.NewRegistry(),
	}
	r.prom.MustRegister(r)
	return r
}

// MustRegister adds extra collectors to the exposition output.
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	r.prom.MustRegister(cs...)
}

func (r *Registry) Registerer() prometheus.Registerer {
	return r.prom
}

func (r *Registry) state(location string) *locationState {
	r.locationMu.RLock()
	st, exists := r.locations[location]
	r.locationMu.RUnlock()

	if exists {
		return st
	}

	r.locationMu.Lock()
	defer r.locationMu.Unlock()

	st, exists = r.locations[location]
	if !exists {
		st = &locationState{failures: make(map[string]float64)}
		r.locations[location] = st
	}
	return st
}

// Update replaces every value for location with obs.
func (r *Registry) Update(location string, obs weather.Observation) {
	obs.Location = location
	if obs.FetchedAt.IsZero() {
		obs.FetchedAt = time.Now()
	}
	st := r.state(location)

	st.mu.Lock()
	st.obs = obs
	st.hasData = true
	st.lastOK = true
	st.lastSuccess = obs.FetchedAt
	st.mu.Unlock()

	fetched := obs.FetchedAt.UnixNano()
	for {
		current := r.lastSuccess.Load()
		if fetched <= current || r.lastSuccess.CompareAndSwap(current, fetched) {
			return
		}
	}
}

// Restore loads a previously stored observation without marking the location's
// latest fetch as successful. It is a no-op once the location has data.
func (r *Registry) Restore(location string, obs weather.Observation) bool {
	obs.Location = location
	st := r.state(location)

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.hasData {
		return false
	}
	st.obs = obs
	st.hasData = true
	st.lastSuccess = obs.FetchedAt
	return true
}

// RecordFailure counts a failed fetch. Previously stored values stay in place.
func (r *Registry) RecordFailure(location, reason string) {
	st := r.state(location)

	st.mu.Lock()
	st.failures[reason]++
	st.lastOK = false
	st.mu.Unlock()
}

func (r *Registry) RecordCycle(duration time.Duration) {
	r.cycles.Add(1)
	r.cycleDuration.Store(int64(duration))
}

// FailureCount returns the number of failures recorded for location across all reasons.
func (r *Registry) FailureCount(location string) float64 {
	r.locationMu.RLock()
	st, exists := r.locations[location]
	r.locationMu.RUnlock()
	if !exists {
		return 0
	}

	st.mu.RLock()
	defer st.mu.RUnlock()

	var total float64
	for _, n := range st.failures {
		total += n
	}
	return total
}

// Observation returns the last stored observation for location.
func (r *Registry) Observation(location string) (weather.Observation, bool) {
	r.locationMu.RLock()
	st, exists := r.locations[location]
	r.locationMu.RUnlock()
	if !exists {
		return weather.Observation{}, false
	}

	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.obs, st.hasData
}

// Snapshot renders everything registered in the text exposition format.
func (r *Registry) Snapshot() (string, error) {
	families, err := r.prom.Gather()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&sb, mf); err != nil {
			return "", err
		}
	}
	return sb.String(), nil
}

type locationView struct {
	name        string
	obs         weather.Observation
	hasData     bool
	lastOK      bool
	lastSuccess time.Time
	failures    map[string]float64
}

// views copies each location's state under its own read lock.
func (r *Registry) views() []locationView {
	r.locationMu.RLock()
	names := make([]string, 0, len(r.locations))
	states := make(map[string]*locationState, len(r.locations))
	for name, st := range r.locations {
		names = append(names, name)
		states[name] = st
	}
	r.locationMu.RUnlock()

	sort.Strings(names)

	views := make([]locationView, 0, len(names))
	for _, name := range names {
		st := states[name]

		st.mu.RLock()
		v := locationView{
			name:        name,
			obs:         st.obs,
			hasData:     st.hasData,
			lastOK:      st.lastOK,
			lastSuccess: st.lastSuccess,
			failures:    make(map[string]float64, len(st.failures)),
		}
		for reason, n := range st.failures {
			v.failures[reason] = n
		}
		st.mu.RUnlock()

		views = append(views, v)
	}
	return views
}
