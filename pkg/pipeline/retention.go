package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/telco-platform/agent-deployer/pkg/config"
	"github.com/telco-platform/agent-deployer/pkg/retry"
	"github.com/telco-platform/agent-deployer/pkg/schemas"
)

// VersionDeleter removes one registered model version.
type VersionDeleter interface {
	DeleteModelVersion(ctx context.Context, mv schemas.ModelVersion) error
}

// VersionRegistry combines the registry operations the retention cleanup
// engine needs.
type VersionRegistry interface {
	VersionLister
	VersionDeleter
}

// PartitionVersions splits the registered versions of a model into the set
// retained by the policy and the deletion candidates. Retained are the
// current version, everything newer than it, and up to keepPreviousCount of
// its most recent predecessors. Both slices come back sorted by descending
// version number. The function is pure: callers decide what to do with the
// candidates.
func PartitionVersions(versions schemas.ModelVersions, currentVersion, keepPreviousCount int) (kept, candidates []int) {
	sorted := make(schemas.ModelVersions, len(versions))
	copy(sorted, versions)
	sorted.SortDescending()

	previousKept := 0

	for _, v := range sorted {
		switch {
		case v.Version >= currentVersion:
			kept = append(kept, v.Version)
		case previousKept < keepPreviousCount:
			kept = append(kept, v.Version)
			previousKept++
		default:
			candidates = append(candidates, v.Version)
		}
	}

	return
}

// CleanupOldVersions enumerates the registered versions of a model and
// deletes every version outside the retention policy. Each candidate gets its
// own bounded retry budget; one candidate exhausting it never stops the
// enumeration. After every successful deletion the engine pauses for the
// configured settle delay, respecting eventual-consistency windows in the
// serving layer. The full report is always returned; with raise_on_error the
// error summarizing the failed versions is returned alongside it, after the
// enumeration finished.
func CleanupOldVersions(ctx context.Context, registry VersionRegistry, cfg config.Cleanup, modelName, endpointName string, currentVersion int) (report schemas.CleanupReport, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline:CleanupOldVersions", trace.WithAttributes(
		attribute.String("model_name", modelName),
		attribute.Int("current_version", currentVersion),
	))
	defer span.End()

	report = schemas.CleanupReport{
		ModelName:      modelName,
		EndpointName:   endpointName,
		CurrentVersion: currentVersion,
	}

	versions, err := registry.ListModelVersions(ctx, modelName)
	if err != nil {
		return report, errors.Wrap(err, "listing model versions")
	}

	var candidates []int

	report.Kept, candidates = PartitionVersions(versions, currentVersion, cfg.KeepPreviousCount)

	log.WithFields(log.Fields{
		"model-name":       modelName,
		"current-version":  currentVersion,
		"kept-count":       len(report.Kept),
		"candidates-count": len(candidates),
	}).Info("running retention cleanup")

	waitBetweenAttempts := time.Duration(cfg.WaitBetweenAttemptsSeconds) * time.Second
	waitAfterDeletion := time.Duration(cfg.WaitAfterDeletionSeconds) * time.Second

	for _, version := range candidates {
		mv := schemas.ModelVersion{Name: modelName, Version: version}

		deleteErr := retry.DoVoid(ctx, func() error {
			err := registry.DeleteModelVersion(ctx, mv)

			// A version that is already gone counts as deleted, reruns of the
			// cleanup stay idempotent.
			if errors.As(err, &schemas.NotFoundError{}) {
				return nil
			}

			return err
		}, cfg.MaxDeletionAttempts, waitBetweenAttempts)

		if deleteErr != nil {
			report.Failed = append(report.Failed, version)

			log.WithFields(log.Fields{
				"model-version": mv.String(),
				"max-attempts":  cfg.MaxDeletionAttempts,
			}).
				WithError(deleteErr).
				Warn("deleting model version failed, moving on to the next candidate")

			continue
		}

		report.Deleted = append(report.Deleted, version)

		log.WithFields(log.Fields{
			"model-version": mv.String(),
		}).Info("deleted model version")

		if sleepErr := retry.Sleep(ctx, waitAfterDeletion); sleepErr != nil {
			return report, sleepErr
		}
	}

	report.CompletedAt = time.Now().UTC()

	if cfg.RaiseOnError && len(report.Failed) > 0 {
		err = schemas.AgentDeploymentError{
			Op:  "retention cleanup",
			Err: fmt.Errorf("deletion failed for versions %v", report.Failed),
		}
	}

	return
}
