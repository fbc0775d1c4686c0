package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/telco-platform/agent-deployer/pkg/retry"
	"github.com/telco-platform/agent-deployer/pkg/schemas"
)

// ServedEntity describes one model version served by an endpoint.
type ServedEntity struct {
	EntityName         string            `json:"entity_name"`
	EntityVersion      string            `json:"entity_version"`
	WorkloadSize       string            `json:"workload_size,omitempty"`
	ScaleToZeroEnabled bool              `json:"scale_to_zero_enabled"`
	EnvironmentVars    map[string]string `json:"environment_vars,omitempty"`
}

// EndpointCoreConfig is the desired serving configuration of an endpoint.
type EndpointCoreConfig struct {
	ServedEntities []ServedEntity `json:"served_entities"`
}

// EndpointTag is one key/value tag attached to a serving endpoint.
type EndpointTag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// EndpointState reflects the platform-side lifecycle state of an endpoint.
type EndpointState struct {
	Ready        string `json:"ready"`         // READY or NOT_READY
	ConfigUpdate string `json:"config_update"` // NOT_UPDATING, IN_PROGRESS or UPDATE_FAILED
}

// ServingEndpoint is the wire representation of a serving endpoint.
type ServingEndpoint struct {
	Name           string             `json:"name"`
	Config         EndpointCoreConfig `json:"config"`
	Tags           []EndpointTag      `json:"tags,omitempty"`
	State          EndpointState      `json:"state,omitempty"`
	BudgetPolicyID string             `json:"budget_policy_id,omitempty"`
}

// IsReady reports whether the endpoint is serving traffic with no
// configuration update in flight.
func (e ServingEndpoint) IsReady() bool {
	return e.State.Ready == "READY" && e.State.ConfigUpdate != "IN_PROGRESS"
}

// EndpointSpec carries everything needed to create or update a serving
// endpoint for one model version.
type EndpointSpec struct {
	Name               string
	ModelVersion       schemas.ModelVersion
	WorkloadSize       string
	ScaleToZeroEnabled bool
	EnvironmentVars    map[string]string
	Tags               map[string]string
	BudgetPolicyID     string
}

// servedEntity renders the spec's model version as the single served entity
// of the endpoint.
func (s EndpointSpec) servedEntity() ServedEntity {
	return ServedEntity{
		EntityName:         s.ModelVersion.Name,
		EntityVersion:      strconv.Itoa(s.ModelVersion.Version),
		WorkloadSize:       s.WorkloadSize,
		ScaleToZeroEnabled: s.ScaleToZeroEnabled,
		EnvironmentVars:    s.EnvironmentVars,
	}
}

// tags renders the spec's tag map as a deterministic wire list.
func (s EndpointSpec) tags() (tags []EndpointTag) {
	for _, k := range sortedKeys(s.Tags) {
		tags = append(tags, EndpointTag{Key: k, Value: s.Tags[k]})
	}

	return
}

// GetServingEndpoint fetches the current state of a serving endpoint. A
// schemas.NotFoundError is returned when the endpoint does not exist.
func (c *Client) GetServingEndpoint(ctx context.Context, name string) (e ServingEndpoint, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "platform:GetServingEndpoint", trace.WithAttributes(attribute.String("endpoint_name", name)))
	defer span.End()

	if err = c.do(ctx, http.MethodGet, "/api/2.0/serving-endpoints/"+url.PathEscape(name), nil, &e); err != nil && IsNotFound(err) {
		err = schemas.NotFoundError{Model: name}
	}

	return
}

// CreateOrUpdateServingEndpoint ensures a serving endpoint exists and serves
// exactly the spec's model version. An existing endpoint gets its config
// updated in place, which the platform rolls out without downtime.
func (c *Client) CreateOrUpdateServingEndpoint(ctx context.Context, spec EndpointSpec) (err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "platform:CreateOrUpdateServingEndpoint", trace.WithAttributes(
		attribute.String("endpoint_name", spec.Name),
		attribute.String("model_version", spec.ModelVersion.String()),
	))
	defer span.End()

	_, err = c.GetServingEndpoint(ctx, spec.Name)

	if err != nil {
		if !errors.As(err, &schemas.NotFoundError{}) {
			return errors.Wrap(err, "looking up serving endpoint")
		}

		create := ServingEndpoint{
			Name:           spec.Name,
			Config:         EndpointCoreConfig{ServedEntities: []ServedEntity{spec.servedEntity()}},
			Tags:           spec.tags(),
			BudgetPolicyID: spec.BudgetPolicyID,
		}

		return c.do(ctx, http.MethodPost, "/api/2.0/serving-endpoints", create, nil)
	}

	update := EndpointCoreConfig{ServedEntities: []ServedEntity{spec.servedEntity()}}
	if err = c.do(ctx, http.MethodPut, "/api/2.0/serving-endpoints/"+url.PathEscape(spec.Name)+"/config", update, nil); err != nil {
		return
	}

	if len(spec.Tags) > 0 {
		tagsPatch := struct {
			AddTags []EndpointTag `json:"add_tags"`
		}{AddTags: spec.tags()}

		err = c.do(ctx, http.MethodPatch, "/api/2.0/serving-endpoints/"+url.PathEscape(spec.Name)+"/tags", tagsPatch, nil)
	}

	return
}

// AwaitEndpointReady polls the endpoint state until it reports ready or the
// timeout elapses. A failed config rollout aborts the wait immediately.
func (c *Client) AwaitEndpointReady(ctx context.Context, name string, pollInterval, timeout time.Duration) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "platform:AwaitEndpointReady", trace.WithAttributes(attribute.String("endpoint_name", name)))
	defer span.End()

	_, err := retry.Poll(ctx, func() (ServingEndpoint, error) {
		e, err := c.GetServingEndpoint(ctx, name)
		if err != nil {
			return e, err
		}

		if e.State.ConfigUpdate == "UPDATE_FAILED" {
			return e, retry.Permanent(fmt.Errorf("endpoint %s config update failed", name))
		}

		if !e.IsReady() {
			return e, fmt.Errorf("endpoint %s not ready (ready=%s, config_update=%s)", name, e.State.Ready, e.State.ConfigUpdate)
		}

		return e, nil
	}, pollInterval, timeout)

	return err
}

// AccessControlEntry grants one permission level to a principal on a serving
// endpoint.
type AccessControlEntry struct {
	UserName        string `json:"user_name,omitempty"`
	GroupName       string `json:"group_name,omitempty"`
	PermissionLevel string `json:"permission_level"`
}

// GrantEndpointPermissions adds access control entries on the endpoint
// without removing existing ones.
func (c *Client) GrantEndpointPermissions(ctx context.Context, name string, entries []AccessControlEntry) (err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "platform:GrantEndpointPermissions", trace.WithAttributes(attribute.String("endpoint_name", name)))
	defer span.End()

	payload := struct {
		AccessControlList []AccessControlEntry `json:"access_control_list"`
	}{AccessControlList: entries}

	return c.do(ctx, http.MethodPatch, "/api/2.0/permissions/serving-endpoints/"+url.PathEscape(name), payload, nil)
}

// QueryEndpoint issues one agent query against the live serving endpoint and
// returns its response.
func (c *Client) QueryEndpoint(ctx context.Context, name string, query schemas.AgentQuery) (resp schemas.AgentResponse, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "platform:QueryEndpoint", trace.WithAttributes(attribute.String("endpoint_name", name)))
	defer span.End()

	err = c.do(ctx, http.MethodPost, "/serving-endpoints/"+url.PathEscape(name)+"/invocations", query, &resp)

	return
}

// QueryEndpointURL returns the public invocation URL of an endpoint, recorded
// in the deployment summary.
func (c *Client) QueryEndpointURL(name string) string {
	return c.baseURL.String() + "/serving-endpoints/" + url.PathEscape(name) + "/invocations"
}

// ReviewAppURL returns the URL of the human review application attached to an
// endpoint, recorded in the deployment summary.
func (c *Client) ReviewAppURL(name string) string {
	return c.baseURL.String() + "/ml/review-app/" + url.PathEscape(name)
}
