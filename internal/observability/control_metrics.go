package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func (c *Collector) registerControlMetrics(reg prometheus.Registerer) error {
	var err error
	if c.Procedures, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "procedures_total",
		Help: "Finished procedure runs, labeled by procedure and outcome.",
	}, []string{"procedure", "outcome"}), "procedures_total"); err != nil {
		return err
	}
	if c.ProcedureDurations, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "procedure_duration_seconds",
		Help:    "Wall time from procedure start to completion.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"procedure"}), "procedure_duration_seconds"); err != nil {
		return err
	}
	if c.TasksPending, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ue_tasks_pending",
		Help: "Tasks waiting in UE control loops.",
	}), "ue_tasks_pending"); err != nil {
		return err
	}
	if c.TasksCompleted, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ue_tasks_completed_total",
		Help: "Tasks that left a UE control loop, labeled by final state.",
	}, []string{"state"}), "ue_tasks_completed_total"); err != nil {
		return err
	}
	if c.QueueFull, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ue_task_queue_full_total",
		Help: "Tasks rejected because the UE control loop was full.",
	}), "ue_task_queue_full_total"); err != nil {
		return err
	}
	if c.TimersArmed, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "timers_armed",
		Help: "Timers currently armed.",
	}), "timers_armed"); err != nil {
		return err
	}
	if c.TimersExpired, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timers_expired_total",
		Help: "Timer expirations whose callback was dispatched.",
	}), "timers_expired_total"); err != nil {
		return err
	}
	if c.CorrelationMiss, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "correlation_misses_total",
		Help: "Responses that matched no outstanding transaction, labeled by protocol.",
	}, []string{"protocol"}), "correlation_misses_total"); err != nil {
		return err
	}
	return nil
}

// ObserveProcedure records a finished procedure run.
func (c *Collector) ObserveProcedure(name, outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	if c.Procedures != nil {
		c.Procedures.WithLabelValues(name, outcome).Inc()
	}
	if c.ProcedureDurations != nil {
		c.ProcedureDurations.WithLabelValues(name).Observe(elapsed.Seconds())
	}
}

// SetTasksPending updates the pending task gauge.
func (c *Collector) SetTasksPending(n int) {
	if c == nil || c.TasksPending == nil {
		return
	}
	c.TasksPending.Set(float64(n))
}

func (c *Collector) IncQueueFull() {
	if c == nil || c.QueueFull == nil {
		return
	}
	c.QueueFull.Inc()
}

func (c *Collector) IncTaskCompleted(outcome string) {
	if c == nil || c.TasksCompleted == nil {
		return
	}
	c.TasksCompleted.WithLabelValues(outcome).Inc()
}

func (c *Collector) SetTimersArmed(n int) {
	if c == nil || c.TimersArmed == nil {
		return
	}
	c.TimersArmed.Set(float64(n))
}

func (c *Collector) IncTimerExpired() {
	if c == nil || c.TimersExpired == nil {
		return
	}
	c.TimersExpired.Inc()
}

// IncCorrelationMiss counts a response no transaction was waiting for.
func (c *Collector) IncCorrelationMiss(protocol string) {
	if c == nil || c.CorrelationMiss == nil {
		return
	}
	c.CorrelationMiss.WithLabelValues(protocol).Inc()
}
