package pipeline

import (
	"context"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/telco-platform/agent-deployer/pkg/platform"
	"github.com/telco-platform/agent-deployer/pkg/schemas"
	"github.com/telco-platform/agent-deployer/pkg/store"
)

// Registry wraps a pointer to prometheus.Registry and manages metric
// collectors.
type Registry struct {
	*prometheus.Registry

	// InternalCollectors holds internal application metrics (queue and store
	// statistics, platform API usage).
	InternalCollectors struct {
		CurrentlyQueuedTasksCount prometheus.Collector
		ExecutedTasksCount        prometheus.Collector
		DeploymentsCount          prometheus.Collector
		CleanupReportsCount       prometheus.Collector
		SmokeTestReportsCount     prometheus.Collector
		PlatformAPIRequestsCount  prometheus.Collector
	}

	// Collectors holds the domain metrics derived from the recorded
	// deployments and reports.
	Collectors struct {
		DeploymentInfo         prometheus.Collector
		DeploymentTimestamp    prometheus.Collector
		SmokeTestCasesPassed   prometheus.Collector
		SmokeTestCasesFailed   prometheus.Collector
		CleanupVersionsDeleted prometheus.Collector
		CleanupVersionsFailed  prometheus.Collector
		CleanupVersionsKept    prometheus.Collector
	}
}

// NewRegistry initializes and returns a new Registry instance with all the
// necessary collectors registered.
func NewRegistry(ctx context.Context) *Registry {
	r := &Registry{
		Registry: prometheus.NewRegistry(),
	}

	r.Collectors.DeploymentInfo = NewCollectorDeploymentInfo()
	r.Collectors.DeploymentTimestamp = NewCollectorDeploymentTimestamp()
	r.Collectors.SmokeTestCasesPassed = NewCollectorSmokeTestCasesPassed()
	r.Collectors.SmokeTestCasesFailed = NewCollectorSmokeTestCasesFailed()
	r.Collectors.CleanupVersionsDeleted = NewCollectorCleanupVersionsDeleted()
	r.Collectors.CleanupVersionsFailed = NewCollectorCleanupVersionsFailed()
	r.Collectors.CleanupVersionsKept = NewCollectorCleanupVersionsKept()

	r.RegisterInternalCollectors()

	if err := r.RegisterCollectors(); err != nil {
		log.WithContext(ctx).
			Fatal(err)
	}

	return r
}

// RegisterInternalCollectors declares and registers internal application
// metrics to the Prometheus registry.
func (r *Registry) RegisterInternalCollectors() {
	r.InternalCollectors.CurrentlyQueuedTasksCount = NewInternalCollectorCurrentlyQueuedTasksCount()
	r.InternalCollectors.ExecutedTasksCount = NewInternalCollectorExecutedTasksCount()
	r.InternalCollectors.DeploymentsCount = NewInternalCollectorDeploymentsCount()
	r.InternalCollectors.CleanupReportsCount = NewInternalCollectorCleanupReportsCount()
	r.InternalCollectors.SmokeTestReportsCount = NewInternalCollectorSmokeTestReportsCount()
	r.InternalCollectors.PlatformAPIRequestsCount = NewInternalCollectorPlatformAPIRequestsCount()

	_ = r.Register(r.InternalCollectors.CurrentlyQueuedTasksCount)
	_ = r.Register(r.InternalCollectors.ExecutedTasksCount)
	_ = r.Register(r.InternalCollectors.DeploymentsCount)
	_ = r.Register(r.InternalCollectors.CleanupReportsCount)
	_ = r.Register(r.InternalCollectors.SmokeTestReportsCount)
	_ = r.Register(r.InternalCollectors.PlatformAPIRequestsCount)
}

// RegisterCollectors adds all domain metric collectors to the Prometheus
// registry.
func (r *Registry) RegisterCollectors() error {
	for _, c := range []prometheus.Collector{
		r.Collectors.DeploymentInfo,
		r.Collectors.DeploymentTimestamp,
		r.Collectors.SmokeTestCasesPassed,
		r.Collectors.SmokeTestCasesFailed,
		r.Collectors.CleanupVersionsDeleted,
		r.Collectors.CleanupVersionsFailed,
		r.Collectors.CleanupVersionsKept,
	} {
		if err := r.Register(c); err != nil {
			return fmt.Errorf("could not add provided collector '%v' to the Prometheus registry: %v", c, err)
		}
	}

	return nil
}

// ExportInternalMetrics gathers internal statistics from the store and the
// platform client, then sets the values for the corresponding Prometheus
// internal collectors.
func (r *Registry) ExportInternalMetrics(ctx context.Context, p *platform.Client, s store.Store) (err error) {
	var (
		currentlyQueuedTasks  uint64
		executedTasksCount    uint64
		deploymentsCount      int64
		cleanupReportsCount   int64
		smokeTestReportsCount int64
	)

	currentlyQueuedTasks, err = s.CurrentlyQueuedTasksCount(ctx)
	if err != nil {
		return
	}

	executedTasksCount, err = s.ExecutedTasksCount(ctx)
	if err != nil {
		return
	}

	deploymentsCount, err = s.DeploymentsCount(ctx)
	if err != nil {
		return
	}

	cleanupReportsCount, err = s.CleanupReportsCount(ctx)
	if err != nil {
		return
	}

	smokeTestReportsCount, err = s.SmokeTestReportsCount(ctx)
	if err != nil {
		return
	}

	r.InternalCollectors.CurrentlyQueuedTasksCount.(*prometheus.GaugeVec).With(prometheus.Labels{}).Set(float64(currentlyQueuedTasks))
	r.InternalCollectors.ExecutedTasksCount.(*prometheus.GaugeVec).With(prometheus.Labels{}).Set(float64(executedTasksCount))
	r.InternalCollectors.DeploymentsCount.(*prometheus.GaugeVec).With(prometheus.Labels{}).Set(float64(deploymentsCount))
	r.InternalCollectors.CleanupReportsCount.(*prometheus.GaugeVec).With(prometheus.Labels{}).Set(float64(cleanupReportsCount))
	r.InternalCollectors.SmokeTestReportsCount.(*prometheus.GaugeVec).With(prometheus.Labels{}).Set(float64(smokeTestReportsCount))
	r.InternalCollectors.PlatformAPIRequestsCount.(*prometheus.GaugeVec).With(prometheus.Labels{}).Set(float64(p.RequestsCounter.Load()))

	return
}

// deploymentMetricLabels renders the Prometheus labels of one deployment.
func deploymentMetricLabels(d schemas.DeploymentResult) prometheus.Labels {
	return prometheus.Labels{
		"endpoint":    d.EndpointName,
		"model":       d.ModelName,
		"version":     strconv.Itoa(d.ModelVersion),
		"environment": d.Environment,
		"git_commit":  d.GitCommit,
	}
}

// ExportDeployments updates the deployment collectors with the recorded
// deployments.
func (r *Registry) ExportDeployments(deployments schemas.Deployments) {
	for _, d := range deployments {
		labels := deploymentMetricLabels(d)

		r.Collectors.DeploymentInfo.(*prometheus.GaugeVec).With(labels).Set(1)
		r.Collectors.DeploymentTimestamp.(*prometheus.GaugeVec).With(labels).Set(float64(d.DeployedAt.Unix()))
	}
}

// ExportSmokeTestReports updates the smoke-test collectors with the latest
// recorded run per endpoint.
func (r *Registry) ExportSmokeTestReports(reports schemas.SmokeTestReports) {
	latest := make(map[string]schemas.SmokeTestReport)

	for _, report := range reports {
		if prev, ok := latest[report.EndpointName]; !ok || report.RanAt.After(prev.RanAt) {
			latest[report.EndpointName] = report
		}
	}

	for _, report := range latest {
		labels := prometheus.Labels{"endpoint": report.EndpointName}

		r.Collectors.SmokeTestCasesPassed.(*prometheus.GaugeVec).With(labels).Set(float64(report.PassedCount()))
		r.Collectors.SmokeTestCasesFailed.(*prometheus.GaugeVec).With(labels).Set(float64(report.FailedCount()))
	}
}

// ExportCleanupReports updates the cleanup collectors with the latest
// recorded run per model.
func (r *Registry) ExportCleanupReports(reports schemas.CleanupReports) {
	latest := make(map[string]schemas.CleanupReport)

	for _, report := range reports {
		if prev, ok := latest[report.ModelName]; !ok || report.CompletedAt.After(prev.CompletedAt) {
			latest[report.ModelName] = report
		}
	}

	for _, report := range latest {
		labels := prometheus.Labels{"model": report.ModelName}

		r.Collectors.CleanupVersionsDeleted.(*prometheus.GaugeVec).With(labels).Set(float64(len(report.Deleted)))
		r.Collectors.CleanupVersionsFailed.(*prometheus.GaugeVec).With(labels).Set(float64(len(report.Failed)))
		r.Collectors.CleanupVersionsKept.(*prometheus.GaugeVec).With(labels).Set(float64(len(report.Kept)))
	}
}
