package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricPrefix = "solar_"

	ResultOK          = "ok"
	ResultUnreachable = "unreachable"
	ResultError       = "error"
)

var (
	registerOnce sync.Once

	devicePolls       *prometheus.CounterVec
	devicePollLatency *prometheus.HistogramVec
	decodeErrors      *prometheus.CounterVec
	priceFetches      *prometheus.CounterVec
	pointsUploaded    *prometheus.CounterVec
)

// Init registers the metrics with the default Prometheus registry. Until it is called the Observe/Inc helpers are
// no-ops.
func Init() {
	registerOnce.Do(func() {
		devicePolls = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "device_polls_total",
				Help: "Total device polls by result",
			},
			[]string{"device", "result"},
		)
		devicePollLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "device_poll_seconds",
				Help:    "Device poll duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"device"},
		)
		decodeErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "decode_errors_total",
				Help: "Total values a device reported in an unexpected encoding",
			},
			[]string{"device"},
		)
		priceFetches = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "price_fetches_total",
				Help: "Total day-ahead price fetches by result",
			},
			[]string{"result"},
		)
		pointsUploaded = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "points_uploaded_total",
				Help: "Total points sent to the data platform by result",
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			devicePolls,
			devicePollLatency,
			decodeErrors,
			priceFetches,
			pointsUploaded,
		)
	})
}

// Handler serves the registered metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDevicePoll records the outcome and duration of one device poll.
func ObserveDevicePoll(device, result string, duration time.Duration) {
	if devicePolls != nil {
		devicePolls.WithLabelValues(device, result).Inc()
	}
	if devicePollLatency != nil {
		devicePollLatency.WithLabelValues(device).Observe(duration.Seconds())
	}
}

func AddDecodeErrors(device string, count int) {
	if decodeErrors != nil && count > 0 {
		decodeErrors.WithLabelValues(device).Add(float64(count))
	}
}

func IncPriceFetch(result string) {
	if priceFetches != nil {
		priceFetches.WithLabelValues(result).Inc()
	}
}

// ObservePointsUploaded counts points sent upstream.
func ObservePointsUploaded(result string, count int) {
	if pointsUploaded != nil && count > 0 {
		pointsUploaded.WithLabelValues(result).Add(float64(count))
	}
}
