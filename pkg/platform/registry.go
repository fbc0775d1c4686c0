package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/telco-platform/agent-deployer/pkg/schemas"
)

// modelVersionInfo is the wire representation of one registered model version.
type modelVersionInfo struct {
	ModelName string `json:"model_name"`
	Version   int    `json:"version,string"`
	Status    string `json:"status,omitempty"`
}

// listModelVersionsResponse is the wire response of the version listing endpoint.
type listModelVersionsResponse struct {
	ModelVersions []modelVersionInfo `json:"model_versions"`
	NextPageToken string             `json:"next_page_token,omitempty"`
}

// ListModelVersions returns every registered version of the given model,
// following pagination. Versions are returned sorted by descending version
// number.
func (c *Client) ListModelVersions(ctx context.Context, modelName string) (versions schemas.ModelVersions, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "platform:ListModelVersions", trace.WithAttributes(attribute.String("model_name", modelName)))
	defer span.End()

	pageToken := ""

	for {
		path := fmt.Sprintf("/api/2.1/unity-catalog/models/%s/versions?max_results=100", url.PathEscape(modelName))
		if pageToken != "" {
			path += "&page_token=" + url.QueryEscape(pageToken)
		}

		var resp listModelVersionsResponse
		if err = c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
			if IsNotFound(err) {
				return nil, schemas.NotFoundError{Model: modelName}
			}

			return
		}

		for _, mv := range resp.ModelVersions {
			versions = append(versions, schemas.ModelVersion{
				Name:    modelName,
				Version: mv.Version,
			})
		}

		if resp.NextPageToken == "" {
			break
		}

		pageToken = resp.NextPageToken
	}

	versions.SortDescending()

	return
}

// GetLatestModelVersion returns the highest registered version of the given
// model. A schemas.NotFoundError is returned when the model has no versions
// at all.
func (c *Client) GetLatestModelVersion(ctx context.Context, modelName string) (schemas.ModelVersion, error) {
	versions, err := c.ListModelVersions(ctx, modelName)
	if err != nil {
		return schemas.ModelVersion{}, err
	}

	latest, found := versions.Latest()
	if !found {
		return schemas.ModelVersion{}, schemas.NotFoundError{Model: modelName}
	}

	return latest, nil
}

// DeleteModelVersion removes one registered version of a model from the
// registry. Deleting an already absent version returns a
// schemas.NotFoundError.
func (c *Client) DeleteModelVersion(ctx context.Context, mv schemas.ModelVersion) (err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "platform:DeleteModelVersion", trace.WithAttributes(
		attribute.String("model_name", mv.Name),
		attribute.Int("model_version", mv.Version),
	))
	defer span.End()

	path := fmt.Sprintf("/api/2.1/unity-catalog/models/%s/versions/%d", url.PathEscape(mv.Name), mv.Version)

	if err = c.do(ctx, http.MethodDelete, path, nil, nil); err != nil && IsNotFound(err) {
		return schemas.NotFoundError{Model: mv.String()}
	}

	return
}
