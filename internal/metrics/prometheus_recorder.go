package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	cycleOutcomes      *prom.CounterVec
	triggerDeliveries  *prom.CounterVec
	userActions        *prom.CounterVec
	scheduling         *prom.CounterVec
	streak             prom.Gauge
	step               prom.Gauge
	remaining          prom.Gauge
	transitionDuration *prom.HistogramVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics on reg.
func NewPrometheusRecorder(reg prom.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		cycleOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "bedshift",
			Name:      "cycle_outcomes_total",
			Help:      "Resolved cycles by outcome",
		}, []string{"outcome"}),
		triggerDeliveries: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "bedshift",
			Name:      "trigger_deliveries_total",
			Help:      "Trigger deliveries by kind and whether they matched the current cycle",
		}, []string{"kind", "result"}),
		userActions: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "bedshift",
			Name:      "user_actions_total",
			Help:      "Confirm/skip actions by result",
		}, []string{"action", "result"}),
		scheduling: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "bedshift",
			Name:      "scheduling_attempts_total",
			Help:      "Trigger triple registrations by delivery mode and result",
		}, []string{"mode", "result"}),
		streak: prom.NewGauge(prom.GaugeOpts{
			Namespace: "bedshift",
			Name:      "consecutive_success_days",
			Help:      "Current success streak",
		}),
		step: prom.NewGauge(prom.GaugeOpts{
			Namespace: "bedshift",
			Name:      "step_minutes",
			Help:      "Current nightly shift in minutes",
		}),
		remaining: prom.NewGauge(prom.GaugeOpts{
			Namespace: "bedshift",
			Name:      "remaining_minutes",
			Help:      "Minutes between progress bedtime and target bedtime",
		}),
		transitionDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "bedshift",
			Name:      "transition_duration_seconds",
			Help:      "Duration of state machine transitions including persistence and registration",
			Buckets:   prom.DefBuckets,
		}, []string{"event"}),
	}
	reg.MustRegister(pr.cycleOutcomes, pr.triggerDeliveries, pr.userActions, pr.scheduling,
		pr.streak, pr.step, pr.remaining, pr.transitionDuration)
	return pr
}

func (p *PrometheusRecorder) IncCycleOutcome(outcome string) {
	if p == nil {
		return
	}
	p.cycleOutcomes.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) IncTriggerDelivery(kind string, result ResultLabel) {
	if p == nil {
		return
	}
	p.triggerDeliveries.WithLabelValues(kind, string(result)).Inc()
}

func (p *PrometheusRecorder) IncUserAction(action string, result ResultLabel) {
	if p == nil {
		return
	}
	p.userActions.WithLabelValues(action, string(result)).Inc()
}

func (p *PrometheusRecorder) IncScheduling(mode string, result ResultLabel) {
	if p == nil {
		return
	}
	p.scheduling.WithLabelValues(mode, string(result)).Inc()
}

func (p *PrometheusRecorder) SetStreak(days int) {
	if p == nil {
		return
	}
	p.streak.Set(float64(days))
}

func (p *PrometheusRecorder) SetStepMinutes(minutes int) {
	if p == nil {
		return
	}
	p.step.Set(float64(minutes))
}

func (p *PrometheusRecorder) SetRemainingMinutes(minutes int) {
	if p == nil {
		return
	}
	p.remaining.Set(float64(minutes))
}

func (p *PrometheusRecorder) ObserveTransitionDuration(event string, d time.Duration) {
	if p == nil {
		return
	}
	p.transitionDuration.WithLabelValues(event).Observe(d.Seconds())
}
