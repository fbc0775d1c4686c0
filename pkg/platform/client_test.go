package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telco-platform/agent-deployer/pkg/ratelimit"
	"github.com/telco-platform/agent-deployer/pkg/schemas"
)

// getMockedClient returns a client pointed at a test HTTP server together
// with the mux requests can be registered on.
func getMockedClient(t *testing.T) (*http.ServeMux, *Client) {
	t.Helper()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := NewClient(ClientConfig{
		URL:              srv.URL,
		Token:            "test-token",
		UserAgentVersion: "0.0.0",
		ReadinessURL:     srv.URL + "/api/2.0/serving-endpoints",
		RateLimiter:      ratelimit.NewLocalLimiter(100, 100),
	})
	require.NoError(t, err)

	return mux, c
}

func TestDoSendsAuthAndUserAgent(t *testing.T) {
	mux, c := getMockedClient(t)

	mux.HandleFunc("/api/2.0/serving-endpoints/foo", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "agent-deployer-0.0.0", r.Header.Get("User-Agent"))
		fmt.Fprint(w, `{"name": "foo", "state": {"ready": "READY", "config_update": "NOT_UPDATING"}}`)
	})

	e, err := c.GetServingEndpoint(context.Background(), "foo")
	require.NoError(t, err)
	assert.Equal(t, "foo", e.Name)
	assert.True(t, e.IsReady())
	assert.Equal(t, uint64(1), c.RequestsCounter.Load())
}

func TestDoReturnsAPIError(t *testing.T) {
	mux, c := getMockedClient(t)

	mux.HandleFunc("/api/2.0/serving-endpoints/foo", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error_code": "REQUEST_LIMIT_EXCEEDED", "message": "slow down"}`)
	})

	err := c.do(context.Background(), http.MethodGet, "/api/2.0/serving-endpoints/foo", nil, nil)

	var apiErr APIError

	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "REQUEST_LIMIT_EXCEEDED", apiErr.ErrorCode)
	assert.Equal(t, "slow down", apiErr.Message)
	assert.False(t, IsNotFound(err))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(APIError{StatusCode: http.StatusNotFound}))
	assert.True(t, IsNotFound(APIError{StatusCode: http.StatusBadRequest, ErrorCode: "RESOURCE_DOES_NOT_EXIST"}))
	assert.False(t, IsNotFound(APIError{StatusCode: http.StatusInternalServerError}))
	assert.False(t, IsNotFound(fmt.Errorf("plain error")))
}

func TestListModelVersionsFollowsPagination(t *testing.T) {
	mux, c := getMockedClient(t)

	mux.HandleFunc("/api/2.1/unity-catalog/models/m/versions", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page_token") {
		case "":
			fmt.Fprint(w, `{"model_versions": [{"model_name": "m", "version": "1"}, {"model_name": "m", "version": "2"}], "next_page_token": "p2"}`)
		case "p2":
			fmt.Fprint(w, `{"model_versions": [{"model_name": "m", "version": "3"}]}`)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})

	versions, err := c.ListModelVersions(context.Background(), "m")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2, 1}, versions.VersionNumbers())
}

func TestListModelVersionsUnknownModel(t *testing.T) {
	mux, c := getMockedClient(t)

	mux.HandleFunc("/api/2.1/unity-catalog/models/m/versions", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error_code": "RESOURCE_DOES_NOT_EXIST", "message": "model not found"}`)
	})

	_, err := c.ListModelVersions(context.Background(), "m")
	assert.ErrorAs(t, err, &schemas.NotFoundError{})
}

func TestDeleteModelVersionAbsent(t *testing.T) {
	mux, c := getMockedClient(t)

	mux.HandleFunc("/api/2.1/unity-catalog/models/m/versions/4", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	err := c.DeleteModelVersion(context.Background(), schemas.ModelVersion{Name: "m", Version: 4})
	assert.ErrorAs(t, err, &schemas.NotFoundError{})
}

func TestCreateOrUpdateServingEndpointCreatesWhenAbsent(t *testing.T) {
	mux, c := getMockedClient(t)

	var created ServingEndpoint

	mux.HandleFunc("/api/2.0/serving-endpoints/foo", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/api/2.0/serving-endpoints", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
	})

	err := c.CreateOrUpdateServingEndpoint(context.Background(), EndpointSpec{
		Name:         "foo",
		ModelVersion: schemas.ModelVersion{Name: "m", Version: 5},
		WorkloadSize: "Small",
		Tags:         map[string]string{"environment": "dev", "git_commit": "abc"},
	})
	require.NoError(t, err)

	assert.Equal(t, "foo", created.Name)
	require.Len(t, created.Config.ServedEntities, 1)
	assert.Equal(t, "m", created.Config.ServedEntities[0].EntityName)
	assert.Equal(t, "5", created.Config.ServedEntities[0].EntityVersion)
	// Tags come out sorted by key.
	assert.Equal(t, []EndpointTag{
		{Key: "environment", Value: "dev"},
		{Key: "git_commit", Value: "abc"},
	}, created.Tags)
}

func TestCreateOrUpdateServingEndpointUpdatesInPlace(t *testing.T) {
	mux, c := getMockedClient(t)

	var (
		updatedConfig bool
		patchedTags   bool
	)

	mux.HandleFunc("/api/2.0/serving-endpoints/foo", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"name": "foo"}`)
	})
	mux.HandleFunc("/api/2.0/serving-endpoints/foo/config", func(_ http.ResponseWriter, r *http.Request) {
		updatedConfig = r.Method == http.MethodPut
	})
	mux.HandleFunc("/api/2.0/serving-endpoints/foo/tags", func(_ http.ResponseWriter, r *http.Request) {
		patchedTags = r.Method == http.MethodPatch
	})

	err := c.CreateOrUpdateServingEndpoint(context.Background(), EndpointSpec{
		Name:         "foo",
		ModelVersion: schemas.ModelVersion{Name: "m", Version: 6},
		Tags:         map[string]string{"environment": "dev"},
	})
	require.NoError(t, err)
	assert.True(t, updatedConfig)
	assert.True(t, patchedTags)
}

func TestQueryEndpoint(t *testing.T) {
	mux, c := getMockedClient(t)

	mux.HandleFunc("/serving-endpoints/foo/invocations", func(w http.ResponseWriter, r *http.Request) {
		var q schemas.AgentQuery

		require.NoError(t, json.NewDecoder(r.Body).Decode(&q))
		assert.Equal(t, "CUS-10001", q.CustomInputs["customer"])

		fmt.Fprint(w, `{"output": [{"role": "assistant", "content": [{"type": "output_text", "text": "12GB left"}]}]}`)
	})

	resp, err := c.QueryEndpoint(context.Background(), "foo", schemas.AgentQuery{
		Input:        []schemas.Message{{Role: "user", Content: "How much data left?"}},
		CustomInputs: map[string]string{"customer": "CUS-10001"},
	})
	require.NoError(t, err)
	assert.Equal(t, "12GB left", resp.FirstText())
}
