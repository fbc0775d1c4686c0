package monitor

import "time"

// TaskSchedulingStatus represents the scheduling status of a task.
// It includes information about the last and next scheduled times.
type TaskSchedulingStatus struct {
	Last time.Time `json:"last"` // The last time the task was scheduled or executed
	Next time.Time `json:"next"` // The next time the task is scheduled to be executed
}

// Entity carries the telemetry of one tracked collection: how many items the
// store holds and when the related task last ran and runs next.
type Entity struct {
	Count   int64     `json:"count"`
	LastRun time.Time `json:"last_run"`
	NextRun time.Time `json:"next_run"`
}

// Telemetry is a snapshot of the deployer's internal state, served by the
// internal monitoring endpoint and rendered by the monitor TUI.
type Telemetry struct {
	PlatformAPIUsage         float64 `json:"platform_api_usage"`          // Fraction of the configured platform API rate currently used
	PlatformAPIRequestsCount uint64  `json:"platform_api_requests_count"` // Total platform API requests sent
	TasksBufferUsage         float64 `json:"tasks_buffer_usage"`          // Fraction of the task queue buffer currently used
	TasksExecutedCount       uint64  `json:"tasks_executed_count"`        // Total tasks executed

	Deployments   Entity `json:"deployments"`     // Recorded deployments
	CleanupRuns   Entity `json:"cleanup_runs"`    // Recorded retention cleanup runs
	SmokeTestRuns Entity `json:"smoke_test_runs"` // Recorded smoke-test runs
}
