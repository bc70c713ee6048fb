// Package metrics holds the Prometheus collectors of the risk engine.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fraud"

// Collectors groups every metric the service exports. A nil *Collectors is
// valid and records nothing.
type Collectors struct {
	evaluations     *prometheus.CounterVec
	evaluationTime  *prometheus.HistogramVec
	scores          prometheus.Histogram
	statuses        *prometheus.CounterVec
	rulesFired      *prometheus.CounterVec
	scoreDelta      *prometheus.CounterVec
	writeConflicts  *prometheus.CounterVec
	publishFailures prometheus.Counter
	httpRequests    *prometheus.CounterVec
	httpRequestTime *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg
func New(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Evidence evaluations by stage and whether they changed the transaction.",
		}, []string{"stage", "applied"}),
		evaluationTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Time spent in read, evaluate, fold and persist per stage.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"stage"}),
		scores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "risk_score",
			Help:      "Risk score after each applied evaluation.",
			Buckets:   []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),
		statuses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resulting_status_total",
			Help:      "Status of transactions after each applied evaluation.",
		}, []string{"status"}),
		rulesFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rules_fired_total",
			Help:      "Rule results recorded, by rule.",
		}, []string{"rule"}),
		scoreDelta: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_score_change_total",
			Help:      "Sum of absolute score changes by rule and direction.",
		}, []string{"rule", "direction"}),
		writeConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_conflicts_total",
			Help:      "Optimistic version conflicts by stage.",
		}, []string{"stage"}),
		publishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_failures_total",
			Help:      "Risk event batches that could not be published.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		httpRequestTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	for _, col := range []prometheus.Collector{
		c.evaluations, c.evaluationTime, c.scores, c.statuses, c.rulesFired,
		c.scoreDelta, c.writeConflicts, c.publishFailures, c.httpRequests, c.httpRequestTime,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ObserveEvaluation records one evidence submission
func (c *Collectors) ObserveEvaluation(stage string, applied bool, status string, score int, d time.Duration) {
	if c == nil {
		return
	}
	c.evaluations.WithLabelValues(stage, strconv.FormatBool(applied)).Inc()
	c.evaluationTime.WithLabelValues(stage).Observe(d.Seconds())
	if applied {
		c.scores.Observe(float64(score))
		c.statuses.WithLabelValues(status).Inc()
	}
}

// RuleFired records one rule result
func (c *Collectors) RuleFired(rule string, scoreChange int) {
	if c == nil {
		return
	}
	c.rulesFired.WithLabelValues(rule).Inc()
	switch {
	case scoreChange > 0:
		c.scoreDelta.WithLabelValues(rule, "up").Add(float64(scoreChange))
	case scoreChange < 0:
		c.scoreDelta.WithLabelValues(rule, "down").Add(float64(-scoreChange))
	}
}

func (c *Collectors) WriteConflict(stage string) {
	if c == nil {
		return
	}
	c.writeConflicts.WithLabelValues(stage).Inc()
}

func (c *Collectors) PublishFailed() {
	if c == nil {
		return
	}
	c.publishFailures.Inc()
}

// ObserveHTTP records one served request
func (c *Collectors) ObserveHTTP(method, route string, code int, d time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	c.httpRequestTime.WithLabelValues(method, route).Observe(d.Seconds())
}
