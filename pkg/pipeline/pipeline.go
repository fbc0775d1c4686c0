package pipeline

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/vmihailenco/taskq/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.7.0"
	"google.golang.org/grpc"

	"github.com/telco-platform/agent-deployer/pkg/config"
	"github.com/telco-platform/agent-deployer/pkg/platform"
	"github.com/telco-platform/agent-deployer/pkg/ratelimit"
	"github.com/telco-platform/agent-deployer/pkg/schemas"
	"github.com/telco-platform/agent-deployer/pkg/store"
)

const tracerName = "agent-deployer"

// Controller holds the necessary clients and components to run the deployment
// pipeline and handle its operations. It includes configuration, connections
// to Redis and the serving platform, the storage interface and task
// management. The UUID field uniquely identifies this controller instance,
// useful in clustered serve-mode deployments where multiple replicas share
// Redis.
type Controller struct {
	Config         config.Config    // Application configuration settings
	Redis          *redis.Client    // Redis client for coordination between replicas
	Platform       *platform.Client // Serving platform API client
	Store          store.Store      // Storage interface to persist deployments and reports
	TaskController TaskController   // Manages background tasks and job queues

	// UUID uniquely identifies this controller instance among others when
	// running in clustered mode, facilitating coordination via Redis.
	UUID uuid.UUID
}

// New creates and initializes a new Controller instance. It sets up tracing,
// the Redis connection, the task controller, storage and the platform client,
// and starts the serve-mode schedulers.
func New(ctx context.Context, cfg config.Config, version string) (c Controller, err error) {
	c.Config = cfg
	c.UUID = uuid.New()

	if err = configureTracing(ctx, cfg.OpenTelemetry.GRPCEndpoint); err != nil {
		return
	}

	if err = c.configureRedis(ctx, cfg.Redis.URL); err != nil {
		return
	}

	c.TaskController = NewTaskController(ctx, c.Redis, cfg.Platform.MaximumJobsQueueSize)
	c.registerTasks()

	c.Store = store.New(ctx, c.Redis)

	if err = c.configurePlatform(cfg.Platform, version); err != nil {
		return
	}

	c.Schedule(ctx, cfg.Schedule)

	return
}

// registerTasks registers all task handlers with the TaskController's task
// map. Each task type is registered with a retry limit of 1, failures are
// handled by the task bodies themselves.
func (c *Controller) registerTasks() {
	for n, h := range map[schemas.TaskType]interface{}{
		schemas.TaskTypeDeployAgent:       c.TaskHandlerDeployAgent,
		schemas.TaskTypeRetentionCleanup:  c.TaskHandlerRetentionCleanup,
		schemas.TaskTypeSmokeTestEndpoint: c.TaskHandlerSmokeTestEndpoint,
	} {
		_, _ = c.TaskController.TaskMap.Register(string(n), &taskq.TaskConfig{
			Handler:    h,
			RetryLimit: 1,
		})
	}
}

// unqueueTask attempts to remove a task identified by its type and unique ID
// from the task queue in the store. If the operation fails, it logs a warning
// with the task details and the error encountered.
func (c *Controller) unqueueTask(ctx context.Context, tt schemas.TaskType, uniqueID string) {
	if err := c.Store.UnqueueTask(ctx, tt, uniqueID); err != nil {
		log.WithContext(ctx).
			WithFields(log.Fields{
				"task_type":      tt,
				"task_unique_id": uniqueID,
			}).
			WithError(err).
			Warn("unqueuing task")
	}
}

// configureTracing sets up OpenTelemetry tracing via a gRPC endpoint.
// If no endpoint is provided, tracing support is skipped.
func configureTracing(ctx context.Context, grpcEndpoint string) error {
	if len(grpcEndpoint) == 0 {
		log.Debug("open-telemetry.grpc_endpoint is not configured, skipping open telemetry support")

		return nil
	}

	log.WithFields(log.Fields{
		"open-telemetry_grpc_endpoint": grpcEndpoint,
	}).Info("open-telemetry gRPC endpoint provided, initializing connection..")

	traceClient := otlptracegrpc.NewClient(
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithEndpoint(grpcEndpoint),
		otlptracegrpc.WithDialOption(grpc.WithBlock()), // nolint: staticcheck
	)

	traceExp, err := otlptrace.New(ctx, traceClient)
	if err != nil {
		return err
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String("agent-deployer"),
		),
	)
	if err != nil {
		return err
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExp)

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp),
	)

	otel.SetTracerProvider(tracerProvider)

	return nil
}

// configurePlatform initializes the platform client with the given
// configuration and version. It sets up a rate limiter using Redis if
// available, otherwise uses a local rate limiter.
func (c *Controller) configurePlatform(cfg config.Platform, version string) (err error) {
	var rl ratelimit.Limiter

	if c.Redis != nil {
		rl = ratelimit.NewRedisLimiter(c.Redis, cfg.MaximumRequestsPerSecond)
	} else {
		rl = ratelimit.NewLocalLimiter(cfg.MaximumRequestsPerSecond, cfg.BurstableRequestsPerSecond)
	}

	c.Platform, err = platform.NewClient(platform.ClientConfig{
		URL:              cfg.URL,
		Token:            cfg.Token,
		DisableTLSVerify: !cfg.EnableTLSVerify,
		UserAgentVersion: version,
		RateLimiter:      rl,
		ReadinessURL:     cfg.HealthURL,
	})

	return
}

// configureRedis initializes the Redis client using the provided URL and sets
// up OpenTelemetry tracing instrumentation. It returns an error if any step
// of the configuration or connection fails.
func (c *Controller) configureRedis(ctx context.Context, url string) (err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline:configureRedis")
	defer span.End()

	if len(url) <= 0 {
		log.Debug("redis url is not configured, skipping configuration & using local driver")

		return
	}

	log.Info("redis url configured, initializing connection..")

	var opt *redis.Options

	if opt, err = redis.ParseURL(url); err != nil {
		return
	}

	c.Redis = redis.NewClient(opt)

	if err = redisotel.InstrumentTracing(c.Redis); err != nil {
		return
	}

	if _, err := c.Redis.Ping(ctx).Result(); err != nil {
		return errors.Wrap(err, "connecting to redis")
	}

	log.Info("connected to redis")

	return
}
