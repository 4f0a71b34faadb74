package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
	log "github.com/sirupsen/logrus"

	"hyperliquid-alert-bot/internal/database"
)

var (
	AlertsFired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hyperliquid",
		Subsystem: "alert_bot",
		Name:      "alerts_fired",
		Help:      "The total number of price alerts fired",
	})

	CronAlertsFired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hyperliquid",
		Subsystem: "alert_bot",
		Name:      "cron_alerts_fired",
		Help:      "The total number of cron alerts fired",
	})

	CooldownsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hyperliquid",
		Subsystem: "alert_bot",
		Name:      "cooldowns_expired",
		Help:      "The total number of alert cooldowns cleared by the sweeper",
	})

	PriceUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hyperliquid",
		Subsystem: "alert_bot",
		Name:      "price_updates",
		Help:      "The total number of mark price updates consumed",
	})

	DeliveryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hyperliquid",
		Subsystem: "alert_bot",
		Name:      "delivery_failures",
		Help:      "The total number of failed notification deliveries",
	})

	CommandsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hyperliquid",
		Subsystem: "alert_bot",
		Name:      "commands_processed",
		Help:      "The total number of processed commands",
	})

	MessagesHandled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hyperliquid",
		Subsystem: "alert_bot",
		Name:      "messages_handled",
		Help:      "The total number of handled messages",
	})

	SubscribedTokens = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "hyperliquid",
		Subsystem: "alert_bot",
		Name:      "subscribed_tokens",
		Help:      "The current number of tokens with a live feed subscription",
	})
)

var persistedCounters = map[string]prometheus.Counter{
	"alerts_fired":       AlertsFired,
	"cron_alerts_fired":  CronAlertsFired,
	"cooldowns_expired":  CooldownsExpired,
	"price_updates":      PriceUpdates,
	"delivery_failures":  DeliveryFailures,
	"commands_processed": CommandsProcessed,
	"messages_handled":   MessagesHandled,
}

// LoadFromStore restores counter values persisted by a previous run.
func LoadFromStore(store *database.Store) {
	for name, counter := range persistedCounters {
		value, err := store.GetMetric(name)
		if err != nil {
			log.Errorf("failed to load metric %s: %v", name, err)
			continue
		}
		counter.Add(value)
	}
	log.Debug("metrics loaded from database")
}

// SaveToStore persists the current counter values.
func SaveToStore(store *database.Store) {
	for name, counter := range persistedCounters {
		if err := store.SaveMetric(name, "", "", CounterValue(counter)); err != nil {
			log.Errorf("failed to save metric %s: %v", name, err)
		}
	}
	log.Debug("metrics saved to database")
}

// CounterValue reads the current value out of a prometheus counter.
func CounterValue(metric prometheus.Collector) float64 {
	metricChan := make(chan prometheus.Metric, 1)
	metric.Collect(metricChan)
	close(metricChan)

	metricProto := &dto.Metric{}
	if err := (<-metricChan).Write(metricProto); err != nil {
		log.Errorf("failed to read metric value: %v", err)
		return 0
	}

	if metricProto.Counter != nil {
		return metricProto.Counter.GetValue()
	}
	if metricProto.Gauge != nil {
		return metricProto.Gauge.GetValue()
	}
	return 0
}
