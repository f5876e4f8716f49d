package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"time"
)

var weatherLabels = []string{"location", "country"}

var (
	temperatureDesc    = newDesc("temperature", "The current temperature in the configured unit.", weatherLabels)
	temperatureMinDesc = newDesc("temperature_min", "Minimum temperature at the moment (within large megalopolises and urban areas).", weatherLabels)
	temperatureMaxDesc = newDesc("temperature_max", "Maximum temperature at the moment (within large megalopolises and urban areas).", weatherLabels)
	feelsLikeDesc      = newDesc("temperature_feel", "Temperature accounting for the human perception of weather.", weatherLabels)
	humidityDesc       = newDesc("humidity", "Humidity, %.", weatherLabels)
	pressureDesc       = newDesc("pressure", "Atmospheric pressure on the sea level, hPa.", weatherLabels)
	windDirectionDesc  = newDesc("wind_direction", "Wind direction, degrees (meteorological).", weatherLabels)
	windSpeedDesc      = newDesc("wind_speed", "Wind speed, m/s.", weatherLabels)
	cloudinessDesc     = newDesc("cloudiness", "Cloudiness, %.", weatherLabels)
	sunriseDesc        = newDesc("sunrise_time", "Sunrise time, unix seconds.", weatherLabels)
	sunsetDesc         = newDesc("sunset_time", "Sunset time, unix seconds.", weatherLabels)
	conditionDesc      = newDesc("weather_condition", "Current weather condition, always 1.", []string{"location", "country", "condition"})
	conditionCodeDesc  = newDesc("weather_condition_code", "Current weather condition id.", weatherLabels)

	lastFetchOKDesc       = newDesc("last_fetch_success", "Whether the latest fetch for the location succeeded (1) or failed (0).", []string{"location"})
	lastFetchSuccessDesc  = newDesc("last_fetch_success_timestamp_seconds", "Unix time of the latest successful fetch for the location.", []string{"location"})
	fetchErrorsDesc       = newDesc("fetch_errors_total", "Failed fetches by location and reason.", []string{"location", "reason"})
	lastSuccessGlobalDesc = newDesc("last_successful_fetch_timestamp_seconds", "Unix time of the latest successful fetch for any location.", nil)
	cyclesDesc            = newDesc("poll_cycles_total", "Completed poll cycles.", nil)
	cycleDurationDesc     = newDesc("poll_cycle_duration_seconds", "Duration of the latest poll cycle.", nil)
)

func newDesc(name, help string, labels []string) *prometheus.Desc {
	return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
}

func (r *Registry) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		temperatureDesc, temperatureMinDesc, temperatureMaxDesc, feelsLikeDesc,
		humidityDesc, pressureDesc, windDirectionDesc, windSpeedDesc, cloudinessDesc,
		sunriseDesc, sunsetDesc, conditionDesc, conditionCodeDesc,
		lastFetchOKDesc, lastFetchSuccessDesc, fetchErrorsDesc,
		lastSuccessGlobalDesc, cyclesDesc, cycleDurationDesc,
	} {
		ch <- d
	}
}

func (r *Registry) Collect(ch chan<- prometheus.Metric) {
	for _, v := range r.views() {
		if v.hasData {
			collectObservation(ch, v)
		}

		ch <- prometheus.MustNewConstMetric(lastFetchOKDesc, prometheus.GaugeValue, boolValue(v.lastOK), v.name)
		if !v.lastSuccess.IsZero() {
			ch <- prometheus.MustNewConstMetric(lastFetchSuccessDesc, prometheus.GaugeValue, unixSeconds(v.lastSuccess), v.name)
		}
		for reason, n := range v.failures {
			ch <- prometheus.MustNewConstMetric(fetchErrorsDesc, prometheus.CounterValue, n, v.name, reason)
		}
	}

	if last := r.lastSuccess.Load(); last > 0 {
		ch <- prometheus.MustNewConstMetric(lastSuccessGlobalDesc, prometheus.GaugeValue, unixSeconds(time.Unix(0, last)))
	}
	ch <- prometheus.MustNewConstMetric(cyclesDesc, prometheus.CounterValue, float64(r.cycles.Load()))
	ch <- prometheus.MustNewConstMetric(cycleDurationDesc, prometheus.GaugeValue, time.Duration(r.cycleDuration.Load()).Seconds())
}

func collectObservation(ch chan<- prometheus.Metric, v locationView) {
	obs := v.obs
	gauge := func(desc *prometheus.Desc, value float64) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, value, v.name, obs.Country)
	}

	gauge(temperatureDesc, obs.Temperature)
	gauge(temperatureMinDesc, obs.TemperatureMin)
	gauge(temperatureMaxDesc, obs.TemperatureMax)
	gauge(feelsLikeDesc, obs.FeelsLike)
	gauge(humidityDesc, obs.Humidity)
	gauge(pressureDesc, obs.Pressure)
	gauge(windDirectionDesc, obs.WindDirection)
	gauge(windSpeedDesc, obs.WindSpeed)
	gauge(cloudinessDesc, obs.Cloudiness)
	gauge(conditionCodeDesc, float64(obs.ConditionCode))
	if !obs.Sunrise.IsZero() {
		gauge(sunriseDesc, float64(obs.Sunrise.Unix()))
	}
	if !obs.Sunset.IsZero() {
		gauge(sunsetDesc, float64(obs.Sunset.Unix()))
	}

	ch <- prometheus.MustNewConstMetric(conditionDesc, prometheus.GaugeValue, 1, v.name, obs.Country, obs.Condition)
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
