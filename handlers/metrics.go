package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ordersAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courier_orders_accepted_total",
		Help: "The total number of orders accepted by this courier",
	})

	acceptFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_accept_failures_total",
		Help: "Failed acceptance attempts by reason",
	}, []string{"reason"})

	deliveriesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courier_deliveries_completed_total",
		Help: "The total number of verified deliveries",
	})

	activeOrdersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "courier_active_orders",
		Help: "The number of currently active orders",
	})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "courier_request_duration_seconds",
		Help:    "Time spent handling local API requests",
		Buckets: prometheus.DefBuckets,
	})
)

func (s *Server) metricsMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		requestDuration.Observe(time.Since(start).Seconds())
		return err
	}
}
