package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telco-platform/agent-deployer/pkg/config"
	"github.com/telco-platform/agent-deployer/pkg/schemas"
)

type fakeVersionRegistry struct {
	versions   schemas.ModelVersions
	listErr    error
	deleteErrs map[int]error
	deleted    []int
	attempts   map[int]int
}

func (f *fakeVersionRegistry) ListModelVersions(_ context.Context, _ string) (schemas.ModelVersions, error) {
	return f.versions, f.listErr
}

func (f *fakeVersionRegistry) DeleteModelVersion(_ context.Context, mv schemas.ModelVersion) error {
	if f.attempts == nil {
		f.attempts = make(map[int]int)
	}

	f.attempts[mv.Version]++

	if err, ok := f.deleteErrs[mv.Version]; ok {
		return err
	}

	f.deleted = append(f.deleted, mv.Version)

	return nil
}

func modelVersions(name string, numbers ...int) (mvs schemas.ModelVersions) {
	for _, n := range numbers {
		mvs = append(mvs, schemas.ModelVersion{Name: name, Version: n})
	}

	return
}

func cleanupConfig() config.Cleanup {
	return config.Cleanup{
		Enabled:                    true,
		KeepPreviousCount:          2,
		MaxDeletionAttempts:        3,
		WaitBetweenAttemptsSeconds: 0,
		WaitAfterDeletionSeconds:   0,
	}
}

func TestPartitionVersions(t *testing.T) {
	tests := map[string]struct {
		versions          []int
		currentVersion    int
		keepPreviousCount int
		wantKept          []int
		wantCandidates    []int
	}{
		"typical window": {
			versions:          []int{10, 9, 8, 7, 6},
			currentVersion:    10,
			keepPreviousCount: 2,
			wantKept:          []int{10, 9, 8},
			wantCandidates:    []int{7, 6},
		},
		"newer versions than current are kept": {
			versions:          []int{12, 11, 10, 9, 8, 7},
			currentVersion:    10,
			keepPreviousCount: 1,
			wantKept:          []int{12, 11, 10, 9},
			wantCandidates:    []int{8, 7},
		},
		"nothing to delete": {
			versions:          []int{3, 2, 1},
			currentVersion:    3,
			keepPreviousCount: 2,
			wantKept:          []int{3, 2, 1},
			wantCandidates:    nil,
		},
		"keep zero predecessors": {
			versions:          []int{5, 4, 3},
			currentVersion:    5,
			keepPreviousCount: 0,
			wantKept:          []int{5},
			wantCandidates:    []int{4, 3},
		},
		"unsorted input": {
			versions:          []int{6, 9, 7, 10, 8},
			currentVersion:    10,
			keepPreviousCount: 2,
			wantKept:          []int{10, 9, 8},
			wantCandidates:    []int{7, 6},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			kept, candidates := PartitionVersions(modelVersions("m", tc.versions...), tc.currentVersion, tc.keepPreviousCount)
			assert.Equal(t, tc.wantKept, kept)
			assert.Equal(t, tc.wantCandidates, candidates)
		})
	}
}

func TestCleanupOldVersions(t *testing.T) {
	registry := &fakeVersionRegistry{versions: modelVersions("m", 10, 9, 8, 7, 6)}

	report, err := CleanupOldVersions(context.Background(), registry, cleanupConfig(), "m", "ep", 10)
	require.NoError(t, err)

	assert.Equal(t, []int{10, 9, 8}, report.Kept)
	assert.Equal(t, []int{7, 6}, report.Deleted)
	assert.Empty(t, report.Failed)
	assert.Equal(t, []int{7, 6}, registry.deleted)
	assert.False(t, report.CompletedAt.IsZero())
}

func TestCleanupOldVersionsOneFailureDoesNotStopTheOthers(t *testing.T) {
	registry := &fakeVersionRegistry{
		versions:   modelVersions("m", 10, 9, 8, 7, 6),
		deleteErrs: map[int]error{7: fmt.Errorf("deletion rejected")},
	}

	report, err := CleanupOldVersions(context.Background(), registry, cleanupConfig(), "m", "ep", 10)
	require.NoError(t, err)

	assert.Equal(t, []int{7}, report.Failed)
	assert.Equal(t, []int{6}, report.Deleted)
	// The failing candidate got its full retry budget.
	assert.Equal(t, 3, registry.attempts[7])
}

func TestCleanupOldVersionsAbsentVersionCountsAsDeleted(t *testing.T) {
	registry := &fakeVersionRegistry{
		versions:   modelVersions("m", 10, 9, 8, 7),
		deleteErrs: map[int]error{7: schemas.NotFoundError{Model: "m@7"}},
	}

	report, err := CleanupOldVersions(context.Background(), registry, cleanupConfig(), "m", "ep", 10)
	require.NoError(t, err)

	assert.Equal(t, []int{7}, report.Deleted)
	assert.Empty(t, report.Failed)
	// An already gone version needs no retries.
	assert.Equal(t, 1, registry.attempts[7])
}

func TestCleanupOldVersionsRaiseOnError(t *testing.T) {
	registry := &fakeVersionRegistry{
		versions:   modelVersions("m", 10, 9, 8, 7, 6),
		deleteErrs: map[int]error{7: fmt.Errorf("deletion rejected")},
	}

	cfg := cleanupConfig()
	cfg.RaiseOnError = true

	report, err := CleanupOldVersions(context.Background(), registry, cfg, "m", "ep", 10)

	var derr schemas.AgentDeploymentError

	require.ErrorAs(t, err, &derr)
	// The enumeration still finished before raising.
	assert.Equal(t, []int{6}, report.Deleted)
	assert.Equal(t, []int{7}, report.Failed)
}

func TestCleanupOldVersionsListingError(t *testing.T) {
	registry := &fakeVersionRegistry{listErr: fmt.Errorf("registry unreachable")}

	_, err := CleanupOldVersions(context.Background(), registry, cleanupConfig(), "m", "ep", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listing model versions")
}
