package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telco-platform/agent-deployer/pkg/schemas"
)

type fakeVersionLister struct {
	versions schemas.ModelVersions
	err      error
	calls    int
}

func (f *fakeVersionLister) ListModelVersions(_ context.Context, _ string) (schemas.ModelVersions, error) {
	f.calls++

	return f.versions, f.err
}

func TestResolveVersionLatest(t *testing.T) {
	lister := &fakeVersionLister{versions: schemas.ModelVersions{
		{Name: "workspace.agent.support-agent", Version: 3},
		{Name: "workspace.agent.support-agent", Version: 7},
		{Name: "workspace.agent.support-agent", Version: 5},
	}}

	mv, err := ResolveVersion(context.Background(), lister, "workspace.agent.support-agent", 0)
	require.NoError(t, err)
	assert.Equal(t, 7, mv.Version)
}

func TestResolveVersionPinnedBypassesRegistry(t *testing.T) {
	// A pinned version passes through untouched, even with an unreachable
	// registry: its existence is checked when the validation stage loads it.
	lister := &fakeVersionLister{err: fmt.Errorf("registry unreachable")}

	mv, err := ResolveVersion(context.Background(), lister, "workspace.agent.support-agent", 3)
	require.NoError(t, err)
	assert.Equal(t, "workspace.agent.support-agent", mv.Name)
	assert.Equal(t, 3, mv.Version)
	assert.Zero(t, lister.calls)
}

func TestResolveVersionNoVersions(t *testing.T) {
	_, err := ResolveVersion(context.Background(), &fakeVersionLister{}, "workspace.agent.support-agent", 0)
	require.Error(t, err)
	assert.ErrorAs(t, err, &schemas.NotFoundError{})
}

func TestResolveVersionListingError(t *testing.T) {
	lister := &fakeVersionLister{err: fmt.Errorf("registry unreachable")}

	_, err := ResolveVersion(context.Background(), lister, "workspace.agent.support-agent", 0)
	assert.EqualError(t, err, "registry unreachable")
}
