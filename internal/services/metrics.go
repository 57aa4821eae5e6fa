package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricSessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "arena",
		Name:      "sessions_created_total",
		Help:      "Arena sessions created.",
	})
	metricRoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "arena",
		Name:      "rooms_active",
		Help:      "Arena rooms currently held in memory.",
	})
	metricPrompts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arena",
		Name:      "prompts_total",
		Help:      "Prompts submitted, by model type.",
	}, []string{"mode"})
	metricVotes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arena",
		Name:      "votes_total",
		Help:      "Declared winners, by model type and winner.",
	}, []string{"mode", "winner"})
	metricFeedback = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "arena",
		Name:      "feedback_total",
		Help:      "Feedback submissions.",
	})
	metricTTFT = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "arena",
		Name:      "time_to_first_token_ms",
		Help:      "Time to first token per provider in milliseconds.",
		Buckets:   prometheus.ExponentialBuckets(25, 2, 10),
	}, []string{"provider"})
	metricLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "arena",
		Name:      "final_latency_ms",
		Help:      "Full reply latency per provider in milliseconds.",
		Buckets:   prometheus.ExponentialBuckets(100, 2, 10),
	}, []string{"provider"})
	metricStreamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arena",
		Name:      "stream_errors_total",
		Help:      "Streams that ended with an error, by provider.",
	}, []string{"provider"})
)
