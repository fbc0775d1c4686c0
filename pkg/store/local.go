package store

import (
	"context"
	"sync"

	"github.com/telco-platform/agent-deployer/pkg/schemas"
)

// Local represents an in-memory storage implementation for managing
// deployments, cleanup reports and smoke-test reports.
type Local struct {
	deployments      schemas.Deployments
	deploymentsMutex sync.RWMutex

	cleanupReports      schemas.CleanupReports
	cleanupReportsMutex sync.RWMutex

	smokeTestReports      schemas.SmokeTestReports
	smokeTestReportsMutex sync.RWMutex

	tasks              schemas.Tasks
	tasksMutex         sync.RWMutex
	executedTasksCount uint64
}

// SetDeployment stores a deployment in the local storage.
func (l *Local) SetDeployment(_ context.Context, d schemas.DeploymentResult) error {
	l.deploymentsMutex.Lock()
	defer l.deploymentsMutex.Unlock()

	l.deployments[d.Key()] = d

	return nil
}

// DelDeployment deletes a deployment from the local storage.
func (l *Local) DelDeployment(_ context.Context, k schemas.DeploymentKey) error {
	l.deploymentsMutex.Lock()
	defer l.deploymentsMutex.Unlock()

	delete(l.deployments, k)

	return nil
}

// GetDeployment retrieves a deployment from the local storage.
func (l *Local) GetDeployment(ctx context.Context, d *schemas.DeploymentResult) error {
	exists, _ := l.DeploymentExists(ctx, d.Key())

	if exists {
		l.deploymentsMutex.RLock()
		*d = l.deployments[d.Key()]
		l.deploymentsMutex.RUnlock()
	}

	return nil
}

// DeploymentExists checks if a deployment exists in the local storage.
func (l *Local) DeploymentExists(_ context.Context, k schemas.DeploymentKey) (bool, error) {
	l.deploymentsMutex.RLock()
	defer l.deploymentsMutex.RUnlock()

	_, ok := l.deployments[k]

	return ok, nil
}

// Deployments retrieves all deployments from the local storage.
func (l *Local) Deployments(_ context.Context) (deployments schemas.Deployments, err error) {
	deployments = make(schemas.Deployments)

	l.deploymentsMutex.RLock()
	defer l.deploymentsMutex.RUnlock()

	for k, v := range l.deployments {
		deployments[k] = v
	}

	return
}

// DeploymentsCount returns the count of deployments in the local storage.
func (l *Local) DeploymentsCount(_ context.Context) (int64, error) {
	l.deploymentsMutex.RLock()
	defer l.deploymentsMutex.RUnlock()

	return int64(len(l.deployments)), nil
}

// SetCleanupReport stores a cleanup report in the local storage.
func (l *Local) SetCleanupReport(_ context.Context, cr schemas.CleanupReport) error {
	l.cleanupReportsMutex.Lock()
	defer l.cleanupReportsMutex.Unlock()

	l.cleanupReports[cr.Key()] = cr

	return nil
}

// CleanupReports retrieves all cleanup reports from the local storage.
func (l *Local) CleanupReports(_ context.Context) (reports schemas.CleanupReports, err error) {
	reports = make(schemas.CleanupReports)

	l.cleanupReportsMutex.RLock()
	defer l.cleanupReportsMutex.RUnlock()

	for k, v := range l.cleanupReports {
		reports[k] = v
	}

	return
}

// CleanupReportsCount returns the count of cleanup reports in the local storage.
func (l *Local) CleanupReportsCount(_ context.Context) (int64, error) {
	l.cleanupReportsMutex.RLock()
	defer l.cleanupReportsMutex.RUnlock()

	return int64(len(l.cleanupReports)), nil
}

// SetSmokeTestReport stores a smoke-test report in the local storage.
func (l *Local) SetSmokeTestReport(_ context.Context, str schemas.SmokeTestReport) error {
	l.smokeTestReportsMutex.Lock()
	defer l.smokeTestReportsMutex.Unlock()

	l.smokeTestReports[str.Key()] = str

	return nil
}

// SmokeTestReports retrieves all smoke-test reports from the local storage.
func (l *Local) SmokeTestReports(_ context.Context) (reports schemas.SmokeTestReports, err error) {
	reports = make(schemas.SmokeTestReports)

	l.smokeTestReportsMutex.RLock()
	defer l.smokeTestReportsMutex.RUnlock()

	for k, v := range l.smokeTestReports {
		reports[k] = v
	}

	return
}

// SmokeTestReportsCount returns the count of smoke-test reports in the local storage.
func (l *Local) SmokeTestReportsCount(_ context.Context) (int64, error) {
	l.smokeTestReportsMutex.RLock()
	defer l.smokeTestReportsMutex.RUnlock()

	return int64(len(l.smokeTestReports)), nil
}

// isTaskAlreadyQueued assesses if a task is already queued or not.
func (l *Local) isTaskAlreadyQueued(tt schemas.TaskType, uniqueID string) bool {
	l.tasksMutex.Lock()
	defer l.tasksMutex.Unlock()

	if l.tasks == nil {
		l.tasks = make(schemas.Tasks)
	}

	taskTypeQueue, ok := l.tasks[tt]
	if !ok {
		l.tasks[tt] = make(map[string]interface{})

		return false
	}

	if _, alreadyQueued := taskTypeQueue[uniqueID]; alreadyQueued {
		return true
	}

	return false
}

// QueueTask registers that we are queueing the task.
// It returns true if it managed to schedule it, false if it was already scheduled.
func (l *Local) QueueTask(_ context.Context, tt schemas.TaskType, uniqueID, _ string) (bool, error) {
	if !l.isTaskAlreadyQueued(tt, uniqueID) {
		l.tasksMutex.Lock()
		defer l.tasksMutex.Unlock()

		l.tasks[tt][uniqueID] = nil

		return true, nil
	}

	return false, nil
}

// UnqueueTask removes the task from the tracker.
func (l *Local) UnqueueTask(_ context.Context, tt schemas.TaskType, uniqueID string) error {
	if l.isTaskAlreadyQueued(tt, uniqueID) {
		l.tasksMutex.Lock()
		defer l.tasksMutex.Unlock()

		delete(l.tasks[tt], uniqueID)

		l.executedTasksCount++
	}

	return nil
}

// CurrentlyQueuedTasksCount returns the count of currently queued tasks.
func (l *Local) CurrentlyQueuedTasksCount(_ context.Context) (count uint64, err error) {
	l.tasksMutex.RLock()
	defer l.tasksMutex.RUnlock()

	for _, t := range l.tasks {
		count += uint64(len(t))
	}

	return
}

// ExecutedTasksCount returns the count of executed tasks.
func (l *Local) ExecutedTasksCount(_ context.Context) (uint64, error) {
	l.tasksMutex.RLock()
	defer l.tasksMutex.RUnlock()

	return l.executedTasksCount, nil
}
