package store

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/telco-platform/agent-deployer/pkg/schemas"
)

// Store is an interface that defines methods for interacting with storage.
// It keeps track of deployments, cleanup runs and smoke-test runs, and of the
// tasks currently queued by the serve-mode schedulers.
type Store interface {
	// Methods for manipulating deployments
	SetDeployment(ctx context.Context, d schemas.DeploymentResult) error         // SetDeployment stores a deployment
	DelDeployment(ctx context.Context, dk schemas.DeploymentKey) error           // DelDeployment deletes a deployment
	GetDeployment(ctx context.Context, d *schemas.DeploymentResult) error        // GetDeployment retrieves a deployment
	DeploymentExists(ctx context.Context, dk schemas.DeploymentKey) (bool, error) // DeploymentExists checks the existence of a deployment
	Deployments(ctx context.Context) (schemas.Deployments, error)                // Deployments retrieves all deployments
	DeploymentsCount(ctx context.Context) (int64, error)                         // DeploymentsCount counts the number of deployments

	// Methods for manipulating cleanup reports
	SetCleanupReport(ctx context.Context, cr schemas.CleanupReport) error // SetCleanupReport stores a cleanup report
	CleanupReports(ctx context.Context) (schemas.CleanupReports, error)   // CleanupReports retrieves all cleanup reports
	CleanupReportsCount(ctx context.Context) (int64, error)               // CleanupReportsCount counts the number of cleanup reports

	// Methods for manipulating smoke-test reports
	SetSmokeTestReport(ctx context.Context, str schemas.SmokeTestReport) error // SetSmokeTestReport stores a smoke-test report
	SmokeTestReports(ctx context.Context) (schemas.SmokeTestReports, error)    // SmokeTestReports retrieves all smoke-test reports
	SmokeTestReportsCount(ctx context.Context) (int64, error)                  // SmokeTestReportsCount counts the number of smoke-test reports

	// Helpers to keep track of currently queued tasks and avoid scheduling them
	// twice at the risk of ending up with loads of dangling goroutines being locked
	QueueTask(ctx context.Context, tt schemas.TaskType, taskUUID, processUUID string) (bool, error) // QueueTask adds a task to the queue
	UnqueueTask(ctx context.Context, tt schemas.TaskType, taskUUID string) error                    // UnqueueTask removes a task from the queue
	CurrentlyQueuedTasksCount(ctx context.Context) (uint64, error)                                  // CurrentlyQueuedTasksCount counts the number of currently queued tasks
	ExecutedTasksCount(ctx context.Context) (uint64, error)                                         // ExecutedTasksCount counts the number of executed tasks
}

// NewLocalStore creates a new instance of local storage.
func NewLocalStore() Store {
	return &Local{
		deployments:      make(schemas.Deployments),
		cleanupReports:   make(schemas.CleanupReports),
		smokeTestReports: make(schemas.SmokeTestReports),
	}
}

// NewRedisStore creates a new instance of storage using Redis.
func NewRedisStore(client *redis.Client) Store {
	return &Redis{
		Client: client,
	}
}

// New creates a new store, backed by Redis when a client is provided and by
// process-local memory otherwise.
func New(ctx context.Context, r *redis.Client) (s Store) {
	_, span := otel.Tracer("agent-deployer").Start(ctx, "store:New")
	defer span.End()

	if r != nil {
		s = NewRedisStore(r)
	} else {
		s = NewLocalStore()
	}

	return s
}
