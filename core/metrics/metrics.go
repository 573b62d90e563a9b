// Package metrics exposes process-wide Prometheus instrumentation for the bot.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"payoutbot/core/logger"
)

var (
	// UpdatesTotal counts processed Telegram updates by kind.
	UpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payoutbot_updates_total",
		Help: "Processed Telegram updates by kind.",
	}, []string{"kind"})

	// HandlerResults counts handler completions by handler name and outcome.
	HandlerResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payoutbot_handler_results_total",
		Help: "Handler completions by handler name and outcome.",
	}, []string{"handler", "outcome"})

	// APIRequests counts payout platform API calls by endpoint and status class.
	APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payoutbot_api_requests_total",
		Help: "Payout platform API calls by endpoint and result.",
	}, []string{"endpoint", "result"})

	// APIDuration observes payout platform API call latency.
	APIDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payoutbot_api_request_seconds",
		Help:    "Payout platform API call latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	// DepositEvents counts deposit notifications delivered to chats.
	DepositEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payoutbot_deposit_events_total",
		Help: "Deposit notifications forwarded to chats.",
	})

	// Subscriptions tracks active push-channel subscriptions.
	Subscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "payoutbot_push_subscriptions",
		Help: "Active push-channel subscriptions.",
	})
)

// Serve runs the Prometheus HTTP endpoint until ctx is done.
// An empty listen address disables the endpoint.
func Serve(ctx context.Context, listen string) {
	if listen == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: listen, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		logger.L.Info("metrics listening",
			slog.String("component", "metrics"),
			slog.String("event", "listen"),
			slog.String("addr", listen),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L.Error("metrics server failed",
				slog.String("component", "metrics"),
				slog.String("event", "fail"),
				slog.String("err", err.Error()),
			)
		}
	}()
}
