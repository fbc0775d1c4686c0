package pipeline

import (
	"context"
	"time"

	"dario.cat/mergo"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/telco-platform/agent-deployer/pkg/config"
	"github.com/telco-platform/agent-deployer/pkg/platform"
	"github.com/telco-platform/agent-deployer/pkg/schemas"
)

// EndpointDeployer covers the serving endpoint operations the deployment
// executor needs.
type EndpointDeployer interface {
	CreateOrUpdateServingEndpoint(ctx context.Context, spec platform.EndpointSpec) error
	AwaitEndpointReady(ctx context.Context, name string, pollInterval, timeout time.Duration) error
	GrantEndpointPermissions(ctx context.Context, name string, entries []platform.AccessControlEntry) error
	QueryEndpointURL(name string) string
	ReviewAppURL(name string) string
}

// endpointTags builds the tags attached to the serving endpoint. The
// environment tag is always present; the git_commit tag only when a commit is
// known, so that endpoints deployed outside CI carry no misleading
// provenance.
func endpointTags(env, gitCommit string) map[string]string {
	tags := map[string]string{
		"environment": env,
	}

	if gitCommit != "" {
		tags["git_commit"] = gitCommit
	}

	return tags
}

// endpointEnvironmentVars merges the configured extra environment variables
// with the always-present ENV variable. ENV wins on conflict: the deployed
// agent must never believe it runs in a different environment than the one it
// was shipped to.
func endpointEnvironmentVars(env string, extra map[string]string) (vars map[string]string, err error) {
	vars = map[string]string{
		"ENV": env,
	}

	if err = mergo.Merge(&vars, extra); err != nil {
		return
	}

	return
}

// DeployAgent creates or updates the serving endpoint for the given model
// version, optionally waits for it to become ready, and applies the
// configured permissions. It returns the deployment summary recorded in the
// store. All failures are wrapped in a schemas.AgentDeploymentError.
func DeployAgent(ctx context.Context, deployer EndpointDeployer, cfg config.Config, mv schemas.ModelVersion) (result schemas.DeploymentResult, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline:DeployAgent", trace.WithAttributes(
		attribute.String("endpoint_name", cfg.Deployment.EndpointName),
		attribute.String("model_version", mv.String()),
	))
	defer span.End()

	envVars, err := endpointEnvironmentVars(cfg.Model.Env, cfg.Deployment.EnvironmentVars)
	if err != nil {
		return result, schemas.AgentDeploymentError{Op: "merging environment variables", Err: err}
	}

	spec := platform.EndpointSpec{
		Name:               cfg.Deployment.EndpointName,
		ModelVersion:       mv,
		WorkloadSize:       cfg.Deployment.WorkloadSize,
		ScaleToZeroEnabled: cfg.Deployment.ScaleToZeroEnabled,
		EnvironmentVars:    envVars,
		Tags:               endpointTags(cfg.Model.Env, cfg.Model.GitCommit),
		BudgetPolicyID:     cfg.Deployment.BudgetPolicyID,
	}

	log.WithFields(log.Fields{
		"endpoint-name": spec.Name,
		"model-version": mv.String(),
		"workload-size": spec.WorkloadSize,
	}).Info("deploying agent to serving endpoint")

	if cfg.Deployment.Instructions != "" {
		log.WithFields(log.Fields{
			"endpoint-name": spec.Name,
		}).Info("setting review instructions")
	}

	// The planned grants are echoed upfront, they are only applied once the
	// rollout succeeded.
	for _, p := range cfg.Deployment.Permissions {
		log.WithFields(log.Fields{
			"endpoint-name":    spec.Name,
			"users-count":      len(p.Users),
			"permission-level": p.PermissionLevel,
		}).Info("will grant endpoint permissions")
	}

	if err = deployer.CreateOrUpdateServingEndpoint(ctx, spec); err != nil {
		return result, schemas.AgentDeploymentError{Op: "creating or updating serving endpoint", Err: err}
	}

	if cfg.Deployment.WaitForReady {
		pollInterval := time.Duration(cfg.Deployment.ReadyPollIntervalSeconds) * time.Second
		timeout := time.Duration(cfg.Deployment.ReadyTimeoutSeconds) * time.Second

		log.WithFields(log.Fields{
			"endpoint-name": spec.Name,
			"timeout":       timeout.String(),
		}).Info("waiting for endpoint to become ready")

		if err = deployer.AwaitEndpointReady(ctx, spec.Name, pollInterval, timeout); err != nil {
			return result, schemas.AgentDeploymentError{Op: "waiting for endpoint readiness", Err: err}
		}
	}

	for _, p := range cfg.Deployment.Permissions {
		entries := make([]platform.AccessControlEntry, 0, len(p.Users))
		for _, u := range p.Users {
			entries = append(entries, platform.AccessControlEntry{
				UserName:        u,
				PermissionLevel: p.PermissionLevel,
			})
		}

		if err = deployer.GrantEndpointPermissions(ctx, spec.Name, entries); err != nil {
			return result, schemas.AgentDeploymentError{Op: "granting endpoint permissions", Err: err}
		}

		log.WithFields(log.Fields{
			"endpoint-name":    spec.Name,
			"users-count":      len(p.Users),
			"permission-level": p.PermissionLevel,
		}).Debug("granted endpoint permissions")
	}

	result = schemas.DeploymentResult{
		EndpointName:  spec.Name,
		ModelName:     mv.Name,
		ModelVersion:  mv.Version,
		QueryEndpoint: deployer.QueryEndpointURL(spec.Name),
		ReviewAppURL:  deployer.ReviewAppURL(spec.Name),
		Environment:   cfg.Model.Env,
		GitCommit:     cfg.Model.GitCommit,
		Instructions:  cfg.Deployment.Instructions,
		DeployedAt:    time.Now().UTC(),
	}

	log.WithFields(log.Fields{
		"endpoint-name":  result.EndpointName,
		"model-version":  mv.String(),
		"query-endpoint": result.QueryEndpoint,
		"review-app-url": result.ReviewAppURL,
	}).Info("agent deployed")

	return result, nil
}
