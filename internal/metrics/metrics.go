// Package metrics exposes the Prometheus counters and gauges of the dispatch core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	updatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taxibot",
		Name:      "updates_total",
		Help:      "Inbound updates by front-end role and routing decision",
	}, []string{"role", "decision"}) // role=main|customer

	updatesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taxibot",
		Name:      "updates_dropped_total",
		Help:      "Updates that never reached a handler",
	}, []string{"reason"}) // reason=queue_full|closed|rate_limited

	ordersFinalized = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "taxibot",
		Name:      "orders_finalized_total",
		Help:      "Orders created by confirmed booking dialogs",
	})

	ordersPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taxibot",
		Name:      "orders_published_total",
		Help:      "Order announcements by target and result",
	}, []string{"target", "result"}) // target=topic|default result=ok|fail

	claimsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taxibot",
		Name:      "claims_total",
		Help:      "Claim attempts by outcome",
	}, []string{"outcome"})

	deliveryErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taxibot",
		Name:      "delivery_errors_total",
		Help:      "Outbound send/edit/answer failures",
	}, []string{"op"})

	loopRestarts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "taxibot",
		Name:      "loop_restarts_total",
		Help:      "Front-end poll loops restarted after an error or panic",
	})

	frontendsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "taxibot",
		Name:      "frontends_skipped_total",
		Help:      "Front-ends that failed to connect and were skipped",
	})

	frontendsRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "taxibot",
		Name:      "frontends_running",
		Help:      "Poll loops currently supervised",
	})

	conversationsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "taxibot",
		Name:      "conversations_active",
		Help:      "Booking dialogs in progress",
	})
)

func IncUpdate(role, decision string) { updatesTotal.WithLabelValues(role, decision).Inc() }
func IncDropped(reason string)        { updatesDropped.WithLabelValues(reason).Inc() }
func IncOrderFinalized()              { ordersFinalized.Inc() }
func IncClaim(outcome string)         { claimsTotal.WithLabelValues(outcome).Inc() }
func IncDeliveryError(op string)      { deliveryErrors.WithLabelValues(op).Inc() }
func IncLoopRestart()                 { loopRestarts.Inc() }
func IncFrontEndSkipped()             { frontendsSkipped.Inc() }

// RecordPublish counts one announcement attempt.
func RecordPublish(topic bool, err error) {
	target := "default"
	if topic {
		target = "topic"
	}
	result := "ok"
	if err != nil {
		result = "fail"
	}
	ordersPublished.WithLabelValues(target, result).Inc()
}

// SetFrontEndsRunning records the number of live poll loops.
func SetFrontEndsRunning(n int) { frontendsRunning.Set(float64(n)) }

// SetConversationsActive records the number of stored dialogs.
func SetConversationsActive(n int) { conversationsActive.Set(float64(n)) }
