package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/telco-platform/agent-deployer/pkg/schemas"
)

// WebhookPayload is the body of a /webhook request through which pipeline
// tasks can be triggered remotely, e.g. by the CI pipeline that registered a
// new model version.
type WebhookPayload struct {
	// Action selects the task to schedule: "deploy", "retention-cleanup" or
	// "smoke-test".
	Action string `json:"action"`
}

// HealthCheckHandler creates and returns a health check handler for the
// controller.
func (c *Controller) HealthCheckHandler(ctx context.Context) (h healthcheck.Handler) {
	h = healthcheck.NewHandler()

	if c.Config.Platform.EnableHealthCheck {
		h.AddReadinessCheck("platform-reachable", c.Platform.ReadinessCheck(ctx))
	} else {
		log.WithContext(ctx).
			Warn("platform health check has been disabled. Readiness checks won't be operated.")
	}

	return
}

// MetricsHandler serves the /metrics HTTP endpoint to expose Prometheus
// metrics.
func (c *Controller) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	span := trace.SpanFromContext(ctx)

	defer span.End()

	registry := NewRegistry(ctx)

	if err := registry.ExportInternalMetrics(ctx, c.Platform, c.Store); err != nil {
		log.WithContext(ctx).
			WithError(err).
			Warn()
	}

	deployments, err := c.Store.Deployments(ctx)
	if err != nil {
		log.WithContext(ctx).
			WithError(err).
			Error("retrieving deployments from the store")
	}

	registry.ExportDeployments(deployments)

	smokeTestReports, err := c.Store.SmokeTestReports(ctx)
	if err != nil {
		log.WithContext(ctx).
			WithError(err).
			Error("retrieving smoke-test reports from the store")
	}

	registry.ExportSmokeTestReports(smokeTestReports)

	cleanupReports, err := c.Store.CleanupReports(ctx)
	if err != nil {
		log.WithContext(ctx).
			WithError(err).
			Error("retrieving cleanup reports from the store")
	}

	registry.ExportCleanupReports(cleanupReports)

	otelhttp.NewHandler(
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{
			Registry:          registry,
			EnableOpenMetrics: c.Config.Server.Metrics.EnableOpenmetricsEncoding,
		}),
		"/metrics",
	).ServeHTTP(w, r)
}

// WebhookHandler handles incoming webhook HTTP requests and schedules the
// requested pipeline task.
func (c *Controller) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	span := trace.SpanFromContext(r.Context())
	defer span.End()

	// Use a background context carrying the span instead of the request
	// context, which gets canceled as soon as the response is written.
	ctx := trace.ContextWithSpan(context.Background(), span)

	logger := log.
		WithContext(ctx).
		WithFields(log.Fields{
			"ip-address": r.RemoteAddr,
			"user-agent": r.UserAgent(),
		})

	logger.Debug("webhook request received")

	if r.Header.Get("X-Deployer-Token") != c.Config.Server.Webhook.SecretToken {
		logger.Debug("invalid token provided for webhook request")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, "{\"error\": \"invalid token\"}")

		return
	}

	if r.Body == http.NoBody {
		logger.
			WithError(fmt.Errorf("empty request body")).
			Warn("unable to read body of a received webhook")
		w.WriteHeader(http.StatusBadRequest)

		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		logger.
			WithError(err).
			Warn("unable to read body of a received webhook")
		w.WriteHeader(http.StatusBadRequest)

		return
	}

	var event WebhookPayload
	if err = json.Unmarshal(payload, &event); err != nil {
		logger.
			WithError(err).
			Warn("unable to parse webhook payload")
		w.WriteHeader(http.StatusBadRequest)

		return
	}

	switch event.Action {
	case "deploy":
		go c.ScheduleTask(ctx, schemas.TaskTypeDeployAgent, "_")
	case "retention-cleanup":
		go c.ScheduleTask(ctx, schemas.TaskTypeRetentionCleanup, "_")
	case "smoke-test":
		go c.ScheduleTask(ctx, schemas.TaskTypeSmokeTestEndpoint, "_")
	default:
		logger.
			WithField("action", event.Action).
			Warn("received unsupported webhook action")
		w.WriteHeader(http.StatusUnprocessableEntity)

		return
	}

	w.WriteHeader(http.StatusAccepted)
}
