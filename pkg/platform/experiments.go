package platform

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"go.openly.dev/pointy"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/telco-platform/agent-deployer/pkg/schemas"
)

// Experiment is the wire representation of a tracker experiment.
type Experiment struct {
	ExperimentID string `json:"experiment_id"`
	Name         string `json:"name"`
}

// EnsureExperiment returns the experiment registered under the given path,
// creating it when it does not exist yet. Monitoring scorers attach to this
// experiment.
func (c *Client) EnsureExperiment(ctx context.Context, path string) (exp Experiment, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "platform:EnsureExperiment", trace.WithAttributes(attribute.String("experiment_path", path)))
	defer span.End()

	var getResp struct {
		Experiment Experiment `json:"experiment"`
	}

	err = c.do(ctx, http.MethodGet, "/api/2.0/mlflow/experiments/get-by-name?experiment_name="+url.QueryEscape(path), nil, &getResp)
	if err == nil {
		return getResp.Experiment, nil
	}

	if !IsNotFound(err) {
		return exp, errors.Wrap(err, "looking up experiment")
	}

	createReq := struct {
		Name string `json:"name"`
	}{Name: path}

	var createResp struct {
		ExperimentID string `json:"experiment_id"`
	}

	if err = c.do(ctx, http.MethodPost, "/api/2.0/mlflow/experiments/create", createReq, &createResp); err != nil {
		return exp, errors.Wrap(err, "creating experiment")
	}

	return Experiment{ExperimentID: createResp.ExperimentID, Name: path}, nil
}

// scorerInfo is the wire representation of one registered scorer. SampleRate
// is a pointer so an absent rate, which makes the platform apply its own
// default, stays distinguishable from an explicit zero.
type scorerInfo struct {
	Name       string   `json:"name"`
	SampleRate *float64 `json:"sample_rate,omitempty"`
	BuiltIn    bool     `json:"built_in,omitempty"`
}

// ListScorers returns the scorers currently registered against an experiment.
func (c *Client) ListScorers(ctx context.Context, experimentID string) (schemas.ScorerSpecs, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "platform:ListScorers", trace.WithAttributes(attribute.String("experiment_id", experimentID)))
	defer span.End()

	var resp struct {
		Scorers []scorerInfo `json:"scorers"`
	}

	if err := c.do(ctx, http.MethodGet, "/api/2.0/mlflow/genai/scorers?experiment_id="+url.QueryEscape(experimentID), nil, &resp); err != nil {
		return nil, err
	}

	scorers := make(schemas.ScorerSpecs, len(resp.Scorers))
	for _, s := range resp.Scorers {
		scorers[s.Name] = schemas.ScorerSpec{
			Name:       s.Name,
			SampleRate: pointy.Float64Value(s.SampleRate, 1.0),
			BuiltIn:    s.BuiltIn,
		}
	}

	return scorers, nil
}

// RegisterScorer attaches one scorer to an experiment at the given sample
// rate. Registering an already present scorer updates its sample rate.
func (c *Client) RegisterScorer(ctx context.Context, experimentID string, scorer schemas.ScorerSpec) (err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "platform:RegisterScorer", trace.WithAttributes(
		attribute.String("experiment_id", experimentID),
		attribute.String("scorer", scorer.Name),
	))
	defer span.End()

	payload := struct {
		ExperimentID string     `json:"experiment_id"`
		Scorer       scorerInfo `json:"scorer"`
	}{
		ExperimentID: experimentID,
		Scorer: scorerInfo{
			Name:       scorer.Name,
			SampleRate: pointy.Float64(scorer.SampleRate),
			BuiltIn:    scorer.BuiltIn,
		},
	}

	return c.do(ctx, http.MethodPost, "/api/2.0/mlflow/genai/scorers", payload, nil)
}

// DeleteScorer detaches one scorer from an experiment.
func (c *Client) DeleteScorer(ctx context.Context, experimentID, scorerName string) (err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "platform:DeleteScorer", trace.WithAttributes(
		attribute.String("experiment_id", experimentID),
		attribute.String("scorer", scorerName),
	))
	defer span.End()

	path := "/api/2.0/mlflow/genai/scorers?experiment_id=" + url.QueryEscape(experimentID) + "&name=" + url.QueryEscape(scorerName)

	if err = c.do(ctx, http.MethodDelete, path, nil, nil); err != nil && IsNotFound(err) {
		// Deleting an absent scorer is a no-op.
		err = nil
	}

	return
}
