package pipeline

import "github.com/prometheus/client_golang/prometheus"

// Commonly used label sets for Prometheus metrics in this application.
var (
	// deploymentLabels identifies one deployed model version on one endpoint.
	deploymentLabels = []string{"endpoint", "model", "version", "environment", "git_commit"}

	// endpointLabels identifies one serving endpoint.
	endpointLabels = []string{"endpoint"}

	// modelLabels identifies one registered model.
	modelLabels = []string{"model"}
)

// NewInternalCollectorCurrentlyQueuedTasksCount creates a gauge tracking the
// number of currently queued tasks.
func NewInternalCollectorCurrentlyQueuedTasksCount() prometheus.Collector {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "adpl_currently_queued_tasks_count",
			Help: "Number of tasks in the queue",
		},
		[]string{},
	)
}

// NewInternalCollectorExecutedTasksCount creates a gauge tracking the total
// number of executed tasks.
func NewInternalCollectorExecutedTasksCount() prometheus.Collector {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "adpl_executed_tasks_count",
			Help: "Number of tasks executed",
		},
		[]string{},
	)
}

// NewInternalCollectorDeploymentsCount creates a gauge tracking the number of
// deployments recorded in the store.
func NewInternalCollectorDeploymentsCount() prometheus.Collector {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "adpl_deployments_count",
			Help: "Number of recorded deployments",
		},
		[]string{},
	)
}

// NewInternalCollectorCleanupReportsCount creates a gauge tracking the number
// of cleanup reports recorded in the store.
func NewInternalCollectorCleanupReportsCount() prometheus.Collector {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "adpl_cleanup_reports_count",
			Help: "Number of recorded retention cleanup runs",
		},
		[]string{},
	)
}

// NewInternalCollectorSmokeTestReportsCount creates a gauge tracking the
// number of smoke-test reports recorded in the store.
func NewInternalCollectorSmokeTestReportsCount() prometheus.Collector {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "adpl_smoke_test_reports_count",
			Help: "Number of recorded smoke-test runs",
		},
		[]string{},
	)
}

// NewInternalCollectorPlatformAPIRequestsCount creates a gauge tracking the
// total number of requests sent to the platform API.
func NewInternalCollectorPlatformAPIRequestsCount() prometheus.Collector {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "adpl_platform_api_requests_count",
			Help: "Number of requests sent against the platform API",
		},
		[]string{},
	)
}

// NewCollectorDeploymentInfo creates a gauge carrying the identity of the
// currently recorded deployments, value is always 1.
func NewCollectorDeploymentInfo() prometheus.Collector {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "adpl_deployment_info",
			Help: "Identity of a recorded deployment",
		},
		deploymentLabels,
	)
}

// NewCollectorDeploymentTimestamp creates a gauge with the unix timestamp of
// the recorded deployments.
func NewCollectorDeploymentTimestamp() prometheus.Collector {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "adpl_deployment_timestamp",
			Help: "Unix timestamp of a recorded deployment",
		},
		deploymentLabels,
	)
}

// NewCollectorSmokeTestCasesPassed creates a gauge with the number of passed
// cases of the latest smoke-test run per endpoint.
func NewCollectorSmokeTestCasesPassed() prometheus.Collector {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "adpl_smoke_test_cases_passed",
			Help: "Number of passed cases of the latest smoke-test run",
		},
		endpointLabels,
	)
}

// NewCollectorSmokeTestCasesFailed creates a gauge with the number of failed
// cases of the latest smoke-test run per endpoint.
func NewCollectorSmokeTestCasesFailed() prometheus.Collector {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "adpl_smoke_test_cases_failed",
			Help: "Number of failed cases of the latest smoke-test run",
		},
		endpointLabels,
	)
}

// NewCollectorCleanupVersionsDeleted creates a gauge with the number of
// versions deleted by the latest cleanup run per model.
func NewCollectorCleanupVersionsDeleted() prometheus.Collector {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "adpl_cleanup_versions_deleted",
			Help: "Number of versions deleted by the latest retention cleanup run",
		},
		modelLabels,
	)
}

// NewCollectorCleanupVersionsFailed creates a gauge with the number of
// versions whose deletion failed in the latest cleanup run per model.
func NewCollectorCleanupVersionsFailed() prometheus.Collector {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "adpl_cleanup_versions_failed",
			Help: "Number of versions whose deletion failed in the latest retention cleanup run",
		},
		modelLabels,
	)
}

// NewCollectorCleanupVersionsKept creates a gauge with the number of versions
// retained by the latest cleanup run per model.
func NewCollectorCleanupVersionsKept() prometheus.Collector {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "adpl_cleanup_versions_kept",
			Help: "Number of versions retained by the latest retention cleanup run",
		},
		modelLabels,
	)
}
