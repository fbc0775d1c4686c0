package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telco-platform/agent-deployer/pkg/config"
	"github.com/telco-platform/agent-deployer/pkg/platform"
	"github.com/telco-platform/agent-deployer/pkg/schemas"
)

type fakeDeployer struct {
	spec         platform.EndpointSpec
	deployErr    error
	awaitErr     error
	grantErr     error
	awaitCalled  bool
	grantedNames [][]platform.AccessControlEntry
}

func (f *fakeDeployer) CreateOrUpdateServingEndpoint(_ context.Context, spec platform.EndpointSpec) error {
	f.spec = spec

	return f.deployErr
}

func (f *fakeDeployer) AwaitEndpointReady(_ context.Context, _ string, _, _ time.Duration) error {
	f.awaitCalled = true

	return f.awaitErr
}

func (f *fakeDeployer) GrantEndpointPermissions(_ context.Context, _ string, entries []platform.AccessControlEntry) error {
	f.grantedNames = append(f.grantedNames, entries)

	return f.grantErr
}

func (f *fakeDeployer) QueryEndpointURL(name string) string {
	return "https://platform.example.com/serving-endpoints/" + name + "/invocations"
}

func (f *fakeDeployer) ReviewAppURL(name string) string {
	return "https://platform.example.com/ml/review-app/" + name
}

func deploymentConfig() config.Config {
	cfg := config.New()
	cfg.Model.Name = "support-agent"
	cfg.Model.Env = "dev"
	cfg.Deployment.EndpointName = "support-agent-dev"
	cfg.Deployment.ReadyPollIntervalSeconds = 1
	cfg.Deployment.ReadyTimeoutSeconds = 1

	return cfg
}

func TestEndpointTags(t *testing.T) {
	assert.Equal(t, map[string]string{"environment": "dev"}, endpointTags("dev", ""))
	assert.Equal(t, map[string]string{
		"environment": "prod",
		"git_commit":  "abc1234",
	}, endpointTags("prod", "abc1234"))
}

func TestEndpointEnvironmentVars(t *testing.T) {
	vars, err := endpointEnvironmentVars("dev", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"ENV": "dev"}, vars)

	vars, err = endpointEnvironmentVars("prod", map[string]string{
		"LOG_LEVEL": "debug",
		"ENV":       "something-else",
	})
	require.NoError(t, err)
	// ENV always reflects the configured environment.
	assert.Equal(t, map[string]string{
		"ENV":       "prod",
		"LOG_LEVEL": "debug",
	}, vars)
}

func TestDeployAgent(t *testing.T) {
	cfg := deploymentConfig()
	cfg.Model.GitCommit = "abc1234"
	cfg.Deployment.EnvironmentVars = map[string]string{"LOG_LEVEL": "debug"}
	cfg.Deployment.Instructions = "Check tariff answers against the current plan catalog"
	cfg.Deployment.Permissions = []config.Permission{
		{Users: []string{"alice@example.com", "bob@example.com"}, PermissionLevel: "CAN_QUERY"},
	}

	deployer := &fakeDeployer{}
	mv := schemas.ModelVersion{Name: cfg.Model.FullName(), Version: 5}

	result, err := DeployAgent(context.Background(), deployer, cfg, mv)
	require.NoError(t, err)

	assert.Equal(t, "support-agent-dev", deployer.spec.Name)
	assert.Equal(t, mv, deployer.spec.ModelVersion)
	assert.Equal(t, "abc1234", deployer.spec.Tags["git_commit"])
	assert.Equal(t, "dev", deployer.spec.EnvironmentVars["ENV"])
	assert.True(t, deployer.awaitCalled)

	require.Len(t, deployer.grantedNames, 1)
	assert.Len(t, deployer.grantedNames[0], 2)
	assert.Equal(t, "CAN_QUERY", deployer.grantedNames[0][0].PermissionLevel)

	assert.Equal(t, "support-agent-dev", result.EndpointName)
	assert.Equal(t, 5, result.ModelVersion)
	assert.Equal(t, "https://platform.example.com/serving-endpoints/support-agent-dev/invocations", result.QueryEndpoint)
	assert.Equal(t, "https://platform.example.com/ml/review-app/support-agent-dev", result.ReviewAppURL)
	assert.Equal(t, "Check tariff answers against the current plan catalog", result.Instructions)
	assert.False(t, result.DeployedAt.IsZero())
}

func TestDeployAgentEchoesReviewMetadataBeforeDeploying(t *testing.T) {
	hook := logrustest.NewGlobal()
	defer hook.Reset()

	cfg := deploymentConfig()
	cfg.Deployment.Instructions = "Check tariff answers against the current plan catalog"
	cfg.Deployment.Permissions = []config.Permission{
		{Users: []string{"alice@example.com"}, PermissionLevel: "CAN_QUERY"},
	}

	deployer := &fakeDeployer{deployErr: fmt.Errorf("quota exceeded")}
	mv := schemas.ModelVersion{Name: cfg.Model.FullName(), Version: 5}

	_, err := DeployAgent(context.Background(), deployer, cfg, mv)
	require.Error(t, err)

	// The rollout failed, yet the instructions and planned grants were
	// already echoed.
	messages := make([]string, 0, len(hook.Entries))
	for _, e := range hook.Entries {
		messages = append(messages, e.Message)
	}

	assert.Contains(t, messages, "setting review instructions")
	assert.Contains(t, messages, "will grant endpoint permissions")
	assert.Empty(t, deployer.grantedNames)
}

func TestDeployAgentSkipsReadinessWaitWhenDisabled(t *testing.T) {
	cfg := deploymentConfig()
	cfg.Deployment.WaitForReady = false

	deployer := &fakeDeployer{}
	mv := schemas.ModelVersion{Name: cfg.Model.FullName(), Version: 5}

	_, err := DeployAgent(context.Background(), deployer, cfg, mv)
	require.NoError(t, err)
	assert.False(t, deployer.awaitCalled)
}

func TestDeployAgentWrapsFailures(t *testing.T) {
	mv := schemas.ModelVersion{Name: "workspace.agent.support-agent", Version: 5}

	for name, deployer := range map[string]*fakeDeployer{
		"endpoint creation": {deployErr: fmt.Errorf("quota exceeded")},
		"readiness wait":    {awaitErr: fmt.Errorf("timed out")},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DeployAgent(context.Background(), deployer, deploymentConfig(), mv)

			var derr schemas.AgentDeploymentError

			require.ErrorAs(t, err, &derr)
		})
	}
}
