package metrics

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faithcal_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "faithcal_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	webhookDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faithcal_webhook_deliveries_total",
			Help: "Payment provider webhook deliveries by event type and outcome",
		},
		[]string{"event_type", "outcome"},
	)

	entitlementTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faithcal_entitlement_transitions_total",
			Help: "Entitlement state changes applied by the billing reconciler",
		},
		[]string{"transition"},
	)

	checkoutSessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faithcal_checkout_sessions_total",
			Help: "Checkout sessions requested from the payment provider",
		},
		[]string{"kind", "status"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(webhookDeliveriesTotal)
	prometheus.MustRegister(entitlementTransitionsTotal)
	prometheus.MustRegister(checkoutSessionsTotal)
}

// unmatchedRoute labels requests no route handled, so arbitrary paths cannot
// grow the series count.
const unmatchedRoute = "unmatched"

// Middleware records request count and latency per matched route.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		own := c.Route()
		err := c.Next()

		route := unmatchedRoute
		if r := c.Route(); r != own && r.Path != "" && !isRouterNotFound(err) {
			route = r.Path
		}
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		httpRequestsTotal.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}

// isRouterNotFound reports the 404 fiber returns when the stack has no
// handler for the path.
func isRouterNotFound(err error) bool {
	var fe *fiber.Error
	return errors.As(err, &fe) && fe.Code == fiber.StatusNotFound && strings.HasPrefix(fe.Message, "Cannot ")
}

// Handler exposes the default registry in the Prometheus text format.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

// ObserveWebhook counts one processed webhook delivery.
func ObserveWebhook(eventType, outcome string) {
	webhookDeliveriesTotal.WithLabelValues(eventType, outcome).Inc()
}

// ObserveEntitlement counts one applied entitlement transition.
func ObserveEntitlement(transition string) {
	entitlementTransitionsTotal.WithLabelValues(transition).Inc()
}

// ObserveCheckout counts one checkout session request.
func ObserveCheckout(kind, status string) {
	checkoutSessionsTotal.WithLabelValues(kind, status).Inc()
}
