package server

import (
	"encoding/json"
	"net"
	"net/http"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/telco-platform/agent-deployer/pkg/config"
	"github.com/telco-platform/agent-deployer/pkg/monitor"
	"github.com/telco-platform/agent-deployer/pkg/platform"
	"github.com/telco-platform/agent-deployer/pkg/schemas"
	"github.com/telco-platform/agent-deployer/pkg/store"
)

// Server exposes the internal monitoring endpoint consumed by the monitor
// TUI. It serves JSON telemetry snapshots and the redacted configuration over
// HTTP, on a unix socket or a TCP listener.
type Server struct {
	platformClient           *platform.Client
	cfg                      config.Config
	store                    store.Store
	taskSchedulingMonitoring map[schemas.TaskType]*monitor.TaskSchedulingStatus
}

// NewServer creates a new Server instance.
func NewServer(
	platformClient *platform.Client,
	c config.Config,
	st store.Store,
	tsm map[schemas.TaskType]*monitor.TaskSchedulingStatus,
) (s *Server) {
	s = &Server{
		platformClient:           platformClient,
		cfg:                      c,
		store:                    st,
		taskSchedulingMonitoring: tsm,
	}

	return
}

// Serve starts the monitoring HTTP server and blocks until it exits.
func (s *Server) Serve() {
	if s.cfg.Global.InternalMonitoringListenerAddress == nil {
		log.Info("internal monitoring listener address not set")

		return
	}

	log.WithFields(log.Fields{
		"scheme": s.cfg.Global.InternalMonitoringListenerAddress.Scheme,
		"host":   s.cfg.Global.InternalMonitoringListenerAddress.Host,
		"path":   s.cfg.Global.InternalMonitoringListenerAddress.Path,
	}).Info("internal monitoring listener set")

	mux := http.NewServeMux()
	mux.HandleFunc("/telemetry", s.TelemetryHandler)
	mux.HandleFunc("/config", s.ConfigHandler)

	var (
		l   net.Listener
		err error
	)

	switch s.cfg.Global.InternalMonitoringListenerAddress.Scheme {
	case "unix":
		unixAddr, err := net.ResolveUnixAddr("unix", s.cfg.Global.InternalMonitoringListenerAddress.Path)
		if err != nil {
			log.WithError(err).Fatal()
		}

		// Remove the socket file if it already exists
		if _, err := os.Stat(s.cfg.Global.InternalMonitoringListenerAddress.Path); err == nil {
			if err := os.Remove(s.cfg.Global.InternalMonitoringListenerAddress.Path); err != nil {
				log.WithError(err).Fatal()
			}
		}

		defer func(path string) {
			if err := os.Remove(path); err != nil {
				log.WithError(err).Fatal()
			}
		}(s.cfg.Global.InternalMonitoringListenerAddress.Path)

		if l, err = net.ListenUnix("unix", unixAddr); err != nil {
			log.WithError(err).Fatal()
		}

	default:
		if l, err = net.Listen(s.cfg.Global.InternalMonitoringListenerAddress.Scheme, s.cfg.Global.InternalMonitoringListenerAddress.Host); err != nil {
			log.WithError(err).Fatal()
		}
	}

	defer l.Close() // nolint: errcheck

	if err = (&http.Server{Handler: mux}).Serve(l); err != nil {
		log.WithError(err).Fatal()
	}
}

// ConfigHandler serves the currently loaded configuration, with credentials
// masked, as YAML.
func (s *Server) ConfigHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")

	_, _ = w.Write([]byte(s.cfg.ToYAML()))
}

// TelemetryHandler serves one telemetry snapshot as JSON.
func (s *Server) TelemetryHandler(w http.ResponseWriter, r *http.Request) {
	telemetry, err := s.buildTelemetry(r)
	if err != nil {
		log.WithError(err).Error("building telemetry snapshot")
		w.WriteHeader(http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(telemetry); err != nil {
		log.WithError(err).Error("encoding telemetry snapshot")
	}
}

// buildTelemetry assembles one snapshot of the deployer's internal state.
func (s *Server) buildTelemetry(r *http.Request) (t monitor.Telemetry, err error) {
	ctx := r.Context()

	t.PlatformAPIUsage = float64(s.platformClient.RateCounter.Rate()) / float64(s.cfg.Platform.MaximumRequestsPerSecond)
	if t.PlatformAPIUsage > 1 {
		t.PlatformAPIUsage = 1
	}

	t.PlatformAPIRequestsCount = s.platformClient.RequestsCounter.Load()

	var queuedTasks uint64

	queuedTasks, err = s.store.CurrentlyQueuedTasksCount(ctx)
	if err != nil {
		return
	}

	t.TasksBufferUsage = float64(queuedTasks) / float64(s.cfg.Platform.MaximumJobsQueueSize)
	if t.TasksBufferUsage > 1 {
		t.TasksBufferUsage = 1
	}

	t.TasksExecutedCount, err = s.store.ExecutedTasksCount(ctx)
	if err != nil {
		return
	}

	t.Deployments.Count, err = s.store.DeploymentsCount(ctx)
	if err != nil {
		return
	}

	t.CleanupRuns.Count, err = s.store.CleanupReportsCount(ctx)
	if err != nil {
		return
	}

	t.SmokeTestRuns.Count, err = s.store.SmokeTestReportsCount(ctx)
	if err != nil {
		return
	}

	if status, ok := s.taskSchedulingMonitoring[schemas.TaskTypeDeployAgent]; ok {
		t.Deployments.LastRun = status.Last
		t.Deployments.NextRun = status.Next
	}

	if status, ok := s.taskSchedulingMonitoring[schemas.TaskTypeRetentionCleanup]; ok {
		t.CleanupRuns.LastRun = status.Last
		t.CleanupRuns.NextRun = status.Next
	}

	if status, ok := s.taskSchedulingMonitoring[schemas.TaskTypeSmokeTestEndpoint]; ok {
		t.SmokeTestRuns.LastRun = status.Last
		t.SmokeTestRuns.NextRun = status.Next
	}

	return
}
