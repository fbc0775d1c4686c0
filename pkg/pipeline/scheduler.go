package pipeline

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/vmihailenco/taskq/memqueue/v4"
	"github.com/vmihailenco/taskq/redisq/v4"
	"github.com/vmihailenco/taskq/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/telco-platform/agent-deployer/pkg/config"
	"github.com/telco-platform/agent-deployer/pkg/monitor"
	"github.com/telco-platform/agent-deployer/pkg/schemas"
	"github.com/telco-platform/agent-deployer/pkg/store"
)

// TaskController holds the components needed to manage task queues and
// scheduling.
type TaskController struct {
	Factory                  taskq.Factory                                      // Factory creates task queues and manages their lifecycle.
	Queue                    taskq.Queue                                        // Queue is the actual task queue instance where tasks are enqueued and consumed.
	TaskMap                  *taskq.TaskMap                                     // TaskMap holds the mapping of task types to their handlers for processing.
	TaskSchedulingMonitoring map[schemas.TaskType]*monitor.TaskSchedulingStatus // TaskSchedulingMonitoring holds monitoring status per task type to track scheduling health.
}

// NewTaskController initializes and returns a new TaskController. It sets up
// the task queue backed either by Redis (if provided) or an in-memory queue.
// maximumJobsQueueSize controls the queue buffer size.
func NewTaskController(ctx context.Context, r *redis.Client, maximumJobsQueueSize int) (t TaskController) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline:NewTaskController")
	defer span.End()

	t.TaskMap = &taskq.TaskMap{}

	queueOptions := &taskq.QueueConfig{
		Name:                 "default",
		PauseErrorsThreshold: 3,
		Handler:              t.TaskMap,
		BufferSize:           maximumJobsQueueSize,
	}

	if r != nil {
		t.Factory = redisq.NewFactory()
		queueOptions.Redis = r
	} else {
		t.Factory = memqueue.NewFactory()
	}

	t.Queue = t.Factory.RegisterQueue(queueOptions)

	// Purge the queue to start fresh - caution advised if running in HA setups
	if err := t.Queue.Purge(ctx); err != nil {
		log.WithContext(ctx).
			WithError(err).
			Error("purging the task queue")
	}

	if r != nil {
		if err := t.Factory.StartConsumers(context.TODO()); err != nil {
			log.WithContext(ctx).
				WithError(err).
				Fatal("starting consuming the task queue")
		}
	}

	t.TaskSchedulingMonitoring = make(map[schemas.TaskType]*monitor.TaskSchedulingStatus)

	return
}

// TaskHandlerDeployAgent handles a task to run the full deployment pipeline,
// typically triggered through the webhook endpoint. It ensures the task is
// unqueued after processing regardless of success or failure.
func (c *Controller) TaskHandlerDeployAgent(ctx context.Context) error {
	defer c.unqueueTask(ctx, schemas.TaskTypeDeployAgent, "_")
	defer c.TaskController.monitorLastTaskScheduling(schemas.TaskTypeDeployAgent)

	_, err := c.Run(ctx)

	return err
}

// TaskHandlerRetentionCleanup handles the periodic retention cleanup task. It
// resolves the currently deployed version first so that the retention window
// always anchors on what is actually serving traffic.
func (c *Controller) TaskHandlerRetentionCleanup(ctx context.Context) error {
	defer c.unqueueTask(ctx, schemas.TaskTypeRetentionCleanup, "_")
	defer c.TaskController.monitorLastTaskScheduling(schemas.TaskTypeRetentionCleanup)

	mv, err := ResolveVersion(ctx, c.Platform, c.Config.Model.FullName(), c.Config.Model.Version)
	if err != nil {
		return err
	}

	report, err := CleanupOldVersions(
		ctx,
		c.Platform,
		c.Config.Cleanup,
		c.Config.Model.FullName(),
		c.Config.Deployment.EndpointName,
		mv.Version,
	)

	if storeErr := c.Store.SetCleanupReport(ctx, report); storeErr != nil {
		log.WithContext(ctx).
			WithError(storeErr).
			Warn("recording cleanup report in the store")
	}

	return err
}

// TaskHandlerSmokeTestEndpoint handles the periodic endpoint smoke-test task.
// Failures are logged but not returned, a transiently failing endpoint must
// not pause the task queue.
func (c *Controller) TaskHandlerSmokeTestEndpoint(ctx context.Context) {
	defer c.unqueueTask(ctx, schemas.TaskTypeSmokeTestEndpoint, "_")
	defer c.TaskController.monitorLastTaskScheduling(schemas.TaskTypeSmokeTestEndpoint)

	report := SmokeTestEndpoint(ctx, c.Platform, c.Config.Deployment.EndpointName, c.Config.SmokeTest.Cases)

	if err := c.Store.SetSmokeTestReport(ctx, report); err != nil {
		log.WithContext(ctx).
			WithError(err).
			Warn("recording smoke-test report in the store")
	}

	if failed := report.FailedCount(); failed > 0 {
		log.WithContext(ctx).
			WithFields(log.Fields{
				"endpoint-name": report.EndpointName,
				"failed-cases":  failed,
			}).
			Warn("scheduled smoke test reported failing cases")
	}
}

// Schedule initializes and schedules the serve-mode periodic tasks based on
// configuration. For each task type, the task runs once at startup when
// OnInit is set and repeatedly at the configured interval when Scheduled is
// set. If a Redis client is configured, a keepalive for this process UUID is
// maintained as well.
func (c *Controller) Schedule(ctx context.Context, schedule config.Schedule) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline:Schedule")
	defer span.End()

	for tt, cfg := range map[schemas.TaskType]config.SchedulerConfig{
		schemas.TaskTypeRetentionCleanup:  schedule.RetentionCleanup,
		schemas.TaskTypeSmokeTestEndpoint: schedule.SmokeTest,
	} {
		if tt == schemas.TaskTypeRetentionCleanup && !c.Config.Cleanup.Enabled {
			log.WithField("task", tt).Debug("retention cleanup disabled, not scheduling")

			continue
		}

		if tt == schemas.TaskTypeSmokeTestEndpoint && !c.Config.SmokeTest.Enabled {
			log.WithField("task", tt).Debug("smoke testing disabled, not scheduling")

			continue
		}

		if cfg.OnInit {
			c.ScheduleTask(ctx, tt, "_")
		}

		if cfg.Scheduled {
			c.ScheduleTaskWithTicker(ctx, tt, cfg.IntervalSeconds)
		}
	}

	if c.Redis != nil {
		c.ScheduleRedisSetKeepalive(ctx)
	}
}

// ScheduleRedisSetKeepalive periodically updates a Redis key to signal that
// this instance of the process is alive and actively processing tasks.
func (c *Controller) ScheduleRedisSetKeepalive(ctx context.Context) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline:ScheduleRedisSetKeepalive")
	defer span.End()

	go func(ctx context.Context) {
		ticker := time.NewTicker(time.Duration(1) * time.Second)

		for {
			select {
			case <-ctx.Done():
				log.Info("stopped redis keepalive")

				return
			case <-ticker.C:
				if _, err := c.Store.(*store.Redis).SetKeepalive(ctx, c.UUID.String(), time.Duration(10)*time.Second); err != nil {
					log.WithContext(ctx).
						WithError(err).
						Fatal("setting keepalive")
				}
			}
		}
	}(ctx)
}

// ScheduleTask schedules a new task of type `tt` with a unique identifier
// `uniqueID` and optional arguments. Tasks are only scheduled when the queue
// has capacity and the task is not already enqueued, preventing duplicate
// work and managing system load.
func (c *Controller) ScheduleTask(ctx context.Context, tt schemas.TaskType, uniqueID string, args ...interface{}) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline:ScheduleTask")
	defer span.End()

	span.SetAttributes(attribute.String("task_type", string(tt)))
	span.SetAttributes(attribute.String("task_unique_id", uniqueID))

	logFields := log.Fields{
		"task_type":      tt,
		"task_unique_id": uniqueID,
	}
	task := c.TaskController.TaskMap.Get(string(tt))
	msg := task.NewJob(args...)

	qlen, err := c.TaskController.Queue.Len(ctx)
	if err != nil {
		log.WithContext(ctx).
			WithFields(logFields).
			Warn("unable to read task queue length, skipping scheduling of task..")

		return
	}

	if qlen >= c.TaskController.Queue.Options().BufferSize {
		log.WithContext(ctx).
			WithFields(logFields).
			Warn("queue buffer size exhausted, skipping scheduling of task..")

		return
	}

	queued, err := c.Store.QueueTask(ctx, tt, uniqueID, c.UUID.String())
	if err != nil {
		log.WithContext(ctx).
			WithFields(logFields).
			Warn("unable to declare the queueing, skipping scheduling of task..")

		return
	}

	if !queued {
		log.WithFields(logFields).
			Debug("task already queued, skipping scheduling of task..")

		return
	}

	go func(job *taskq.Job) {
		if err := c.TaskController.Queue.AddJob(ctx, job); err != nil {
			log.WithContext(ctx).
				WithError(err).
				Warn("scheduling task")
		}
	}(msg)
}

// ScheduleTaskWithTicker repeatedly schedules a task of the specified type
// `tt` at fixed intervals defined by `intervalSeconds`.
func (c *Controller) ScheduleTaskWithTicker(ctx context.Context, tt schemas.TaskType, intervalSeconds int) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline:ScheduleTaskWithTicker")
	defer span.End()
	span.SetAttributes(attribute.String("task_type", string(tt)))
	span.SetAttributes(attribute.Int("interval_seconds", intervalSeconds))

	if intervalSeconds <= 0 {
		log.WithContext(ctx).
			WithField("task", tt).
			Warn("task scheduling misconfigured, currently disabled")

		return
	}

	log.WithFields(log.Fields{
		"task":             tt,
		"interval_seconds": intervalSeconds,
	}).Debug("task scheduled")

	c.TaskController.monitorNextTaskScheduling(tt, intervalSeconds)

	go func(ctx context.Context) {
		ticker := time.NewTicker(time.Duration(intervalSeconds) * time.Second)

		for {
			select {
			case <-ctx.Done():
				log.WithField("task", tt).Info("scheduling of task stopped")

				return
			case <-ticker.C:
				c.ScheduleTask(ctx, tt, "_")
				c.TaskController.monitorNextTaskScheduling(tt, intervalSeconds)
			}
		}
	}(ctx)
}

// monitorNextTaskScheduling updates the monitoring status of the next
// expected execution time for the given task type `tt`.
func (tc *TaskController) monitorNextTaskScheduling(tt schemas.TaskType, duration int) {
	if _, ok := tc.TaskSchedulingMonitoring[tt]; !ok {
		tc.TaskSchedulingMonitoring[tt] = &monitor.TaskSchedulingStatus{}
	}

	tc.TaskSchedulingMonitoring[tt].Next = time.Now().Add(time.Duration(duration) * time.Second)
}

// monitorLastTaskScheduling updates the monitoring status to record the last
// execution time of the given task type `tt`.
func (tc *TaskController) monitorLastTaskScheduling(tt schemas.TaskType) {
	if _, ok := tc.TaskSchedulingMonitoring[tt]; !ok {
		tc.TaskSchedulingMonitoring[tt] = &monitor.TaskSchedulingStatus{}
	}

	tc.TaskSchedulingMonitoring[tt].Last = time.Now()
}
