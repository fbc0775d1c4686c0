package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telco-platform/agent-deployer/pkg/config"
	"github.com/telco-platform/agent-deployer/pkg/platform"
	"github.com/telco-platform/agent-deployer/pkg/ratelimit"
	"github.com/telco-platform/agent-deployer/pkg/schemas"
	"github.com/telco-platform/agent-deployer/pkg/store"
)

// pipelineController wires a Controller against a test HTTP platform and a
// local store, with no serve-mode schedules. Monitoring and cleanup start
// disabled, tests enable what they exercise.
func pipelineController(t *testing.T) (*http.ServeMux, *Controller) {
	t.Helper()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := config.New()
	cfg.Platform.URL = srv.URL
	cfg.Platform.Token = "test-token"
	cfg.Model.Name = "m"
	cfg.Model.ExperimentPath = "/Shared/m/dev/dev_m"
	cfg.Deployment.EndpointName = "support-agent-dev"
	cfg.Deployment.WaitForReady = false
	cfg.Validation.CanaryQueries = []schemas.AgentQuery{
		{Description: "plans", Input: []schemas.Message{{Role: "user", Content: "Which plans include roaming?"}}},
	}
	cfg.SmokeTest.Cases = []schemas.AgentQuery{
		{Description: "usage", Input: []schemas.Message{{Role: "user", Content: "How much data left?"}}},
	}
	cfg.Cleanup.KeepPreviousCount = 0
	cfg.Cleanup.MaxDeletionAttempts = 1
	cfg.Cleanup.WaitBetweenAttemptsSeconds = 0
	cfg.Cleanup.WaitAfterDeletionSeconds = 0

	p, err := platform.NewClient(platform.ClientConfig{
		URL:              srv.URL,
		Token:            "test-token",
		UserAgentVersion: "0.0.0",
		ReadinessURL:     srv.URL + "/api/2.0/serving-endpoints",
		RateLimiter:      ratelimit.NewLocalLimiter(100, 100),
	})
	require.NoError(t, err)

	return mux, &Controller{Config: cfg, Platform: p, Store: store.NewLocalStore()}
}

// handleModelRegistry serves a registry holding versions 2 and 1 of the test
// model.
func handleModelRegistry(mux *http.ServeMux) {
	mux.HandleFunc("/api/2.1/unity-catalog/models/workspace.agent.m/versions", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"model_versions": [{"model_name": "workspace.agent.m", "version": "2"}, {"model_name": "workspace.agent.m", "version": "1"}]}`)
	})
}

// handleEndpointRollout serves the endpoint create path (the endpoint never
// exists yet) and reports whether a create happened.
func handleEndpointRollout(mux *http.ServeMux, created *bool) {
	mux.HandleFunc("/api/2.0/serving-endpoints/support-agent-dev", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/api/2.0/serving-endpoints", func(_ http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			*created = true
		}
	})
}

func handlePredictOK(mux *http.ServeMux) {
	mux.HandleFunc("/api/2.0/mlflow/model-versions/predict", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"output": [{"role": "assistant", "content": [{"type": "output_text", "text": "Roam Plus and Global include roaming"}]}]}`)
	})
}

func TestRunEndToEnd(t *testing.T) {
	mux, c := pipelineController(t)
	c.Config.Cleanup.Enabled = true

	var (
		created bool
		deleted bool
	)

	handleModelRegistry(mux)
	handleEndpointRollout(mux, &created)
	handlePredictOK(mux)

	mux.HandleFunc("/api/2.1/unity-catalog/models/workspace.agent.m/versions/1", func(_ http.ResponseWriter, r *http.Request) {
		deleted = r.Method == http.MethodDelete
	})
	mux.HandleFunc("/serving-endpoints/support-agent-dev/invocations", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"output": [{"role": "assistant", "content": [{"type": "output_text", "text": "12GB left"}]}]}`)
	})

	ctx := context.Background()

	result, err := c.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, "support-agent-dev", result.EndpointName)
	assert.Equal(t, 2, result.ModelVersion)
	assert.True(t, created)
	assert.True(t, deleted)

	count, err := c.Store.DeploymentsCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	cleanups, err := c.Store.CleanupReports(ctx)
	require.NoError(t, err)
	require.Len(t, cleanups, 1)
	for _, cleanup := range cleanups {
		assert.Equal(t, []int{1}, cleanup.Deleted)
		assert.Empty(t, cleanup.Failed)
	}

	smokes, err := c.Store.SmokeTestReports(ctx)
	require.NoError(t, err)
	require.Len(t, smokes, 1)
	for _, smoke := range smokes {
		assert.Equal(t, 1, smoke.PassedCount())
		assert.Zero(t, smoke.FailedCount())
	}
}

func TestRunValidationFailureAbortsBeforeDeployment(t *testing.T) {
	mux, c := pipelineController(t)
	c.Config.Cleanup.Enabled = true

	var served bool

	handleModelRegistry(mux)

	mux.HandleFunc("/api/2.0/mlflow/model-versions/predict", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error_code": "INTERNAL_ERROR", "message": "model crashed on load"}`)
	})
	mux.HandleFunc("/api/2.0/serving-endpoints", func(_ http.ResponseWriter, _ *http.Request) {
		served = true
	})
	mux.HandleFunc("/api/2.0/serving-endpoints/", func(_ http.ResponseWriter, _ *http.Request) {
		served = true
	})

	ctx := context.Background()

	_, err := c.Run(ctx)
	require.Error(t, err)
	assert.ErrorAs(t, err, &schemas.ValidationError{})

	// No serving resource was touched.
	assert.False(t, served)

	count, err := c.Store.DeploymentsCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRunMonitoringFailureAbortsRunWhenFatal(t *testing.T) {
	mux, c := pipelineController(t)
	c.Config.Monitoring.Enabled = true
	c.Config.Monitoring.FailOnError = true
	c.Config.Monitoring.CustomScorers = []schemas.ScorerSpec{{Name: "safety", SampleRate: 0.5}}
	c.Config.Cleanup.Enabled = true

	var (
		created bool
		deleted int
		invoked int
	)

	handleModelRegistry(mux)
	handleEndpointRollout(mux, &created)
	handlePredictOK(mux)

	mux.HandleFunc("/api/2.0/mlflow/experiments/get-by-name", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"experiment": {"experiment_id": "exp-1", "name": "/Shared/m/dev/dev_m"}}`)
	})
	mux.HandleFunc("/api/2.0/mlflow/genai/scorers", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, `{"scorers": []}`)

			return
		}

		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error_code": "INTERNAL_ERROR", "message": "scorer backend down"}`)
	})
	mux.HandleFunc("/api/2.1/unity-catalog/models/workspace.agent.m/versions/1", func(_ http.ResponseWriter, _ *http.Request) {
		deleted++
	})
	mux.HandleFunc("/serving-endpoints/support-agent-dev/invocations", func(_ http.ResponseWriter, _ *http.Request) {
		invoked++
	})

	_, err := c.Run(context.Background())
	require.Error(t, err)
	assert.ErrorAs(t, err, &schemas.AgentMonitoringError{})

	// The endpoint was rolled out, but the run stopped before anything
	// destructive or post-deployment happened.
	assert.True(t, created)
	assert.Zero(t, deleted)
	assert.Zero(t, invoked)
}

func TestRunMonitoringSoftFailureContinues(t *testing.T) {
	mux, c := pipelineController(t)
	c.Config.Monitoring.Enabled = true
	c.Config.Monitoring.CustomScorers = []schemas.ScorerSpec{{Name: "safety", SampleRate: 0.5}}
	c.Config.Cleanup.Enabled = true

	var (
		created bool
		deleted int
		invoked int
	)

	handleModelRegistry(mux)
	handleEndpointRollout(mux, &created)
	handlePredictOK(mux)

	mux.HandleFunc("/api/2.0/mlflow/experiments/get-by-name", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error_code": "INTERNAL_ERROR", "message": "tracker down"}`)
	})
	mux.HandleFunc("/api/2.1/unity-catalog/models/workspace.agent.m/versions/1", func(_ http.ResponseWriter, _ *http.Request) {
		deleted++
	})
	mux.HandleFunc("/serving-endpoints/support-agent-dev/invocations", func(w http.ResponseWriter, _ *http.Request) {
		invoked++

		fmt.Fprint(w, `{"output": [{"role": "assistant", "content": [{"type": "output_text", "text": "12GB left"}]}]}`)
	})

	_, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, created)
	assert.Equal(t, 1, deleted)
	assert.Equal(t, 1, invoked)
}

func TestRunSmokeTestFailuresDoNotGateRelease(t *testing.T) {
	mux, c := pipelineController(t)

	var created bool

	handleModelRegistry(mux)
	handleEndpointRollout(mux, &created)
	handlePredictOK(mux)

	mux.HandleFunc("/serving-endpoints/support-agent-dev/invocations", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"output": []}`)
	})

	ctx := context.Background()

	_, err := c.Run(ctx)
	require.NoError(t, err)
	assert.True(t, created)

	// The failing cases are in the report, not in the run outcome.
	smokes, err := c.Store.SmokeTestReports(ctx)
	require.NoError(t, err)
	require.Len(t, smokes, 1)
	for _, smoke := range smokes {
		assert.Equal(t, 1, smoke.FailedCount())
	}
}
