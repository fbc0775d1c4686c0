package schemas

// TaskType represents the type of a scheduled task as a string.
type TaskType string

const (
	// TaskTypeDeployAgent represents a task type for running the full
	// deployment pipeline, typically triggered through the webhook endpoint.
	TaskTypeDeployAgent TaskType = "DeployAgent"

	// TaskTypeRetentionCleanup represents a task type for running the
	// retention cleanup engine against the configured model.
	TaskTypeRetentionCleanup TaskType = "RetentionCleanup"

	// TaskTypeSmokeTestEndpoint represents a task type for re-running the
	// smoke-test cases against the live endpoint.
	TaskTypeSmokeTestEndpoint TaskType = "SmokeTestEndpoint"
)

// Tasks is a map structure used to keep track of queued tasks.
// It maps a TaskType to another map, which associates task identifiers with
// empty interfaces.
type Tasks map[TaskType]map[string]interface{}
