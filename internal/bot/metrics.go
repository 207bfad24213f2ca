package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Исходы скачивания для метрики downloads_total
const (
	outcomeDelivered   = "delivered"
	outcomeFailed      = "download_failed"
	outcomeTooLarge    = "too_large"
	outcomeSendFailed  = "send_failed"
	outcomeInline      = "inline_delivered"
	outcomeInlineError = "inline_failed"
)

// Metrics структура для метрик Prometheus
type Metrics struct {
	UpdatesTotal         *prometheus.CounterVec
	DownloadsTotal       *prometheus.CounterVec
	DownloadDuration     prometheus.Histogram
	ErrorsTotal          prometheus.Counter
	PendingConfirmations prometheus.Gauge
	UpdateProcessingTime prometheus.Histogram
}

// NewMetrics регистрирует метрики бота в reg. Имя бота добавляется
// постоянной меткой, поэтому оба бота процесса могут делить реестр.
func NewMetrics(reg prometheus.Registerer, botName string) *Metrics {
	factory := promauto.With(prometheus.WrapRegistererWith(prometheus.Labels{"bot": botName}, reg))

	return &Metrics{
		UpdatesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "telegram_bot_updates_total",
			Help: "Total number of updates received, by kind",
		}, []string{"kind"}),

		DownloadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "telegram_bot_downloads_total",
			Help: "Total number of download requests, by outcome",
		}, []string{"outcome"}),

		DownloadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "telegram_bot_download_duration_seconds",
			Help:    "Time spent downloading and delivering a video",
			Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80, 160, 320},
		}),

		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "telegram_bot_errors_total",
			Help: "Total number of recovered handler panics",
		}),

		PendingConfirmations: factory.NewGauge(prometheus.GaugeOpts{
			Name: "telegram_bot_pending_confirmations",
			Help: "Group download prompts waiting for an answer",
		}),

		UpdateProcessingTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "telegram_bot_update_processing_time_seconds",
			Help:    "Time spent processing updates",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) countUpdate(kind string) {
	if m == nil {
		return
	}
	m.UpdatesTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) countDownload(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.DownloadsTotal.WithLabelValues(outcome).Inc()
	m.DownloadDuration.Observe(seconds)
}

func (m *Metrics) pending(delta float64) {
	if m == nil {
		return
	}
	m.PendingConfirmations.Add(delta)
}
