// Package gc removes media that nothing references anymore. Cleanup
// always recomputes the usage cache first so stale flags cannot delete a
// record that regained a reference. A reference created between the
// recompute and the delete can still be lost; runs are scheduled for
// quiet hours.
package gc

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/wavecms/mediastore/pkg/mediastore"
	"github.com/wavecms/mediastore/pkg/mediastore/dispatch"
	"github.com/wavecms/mediastore/pkg/mediastore/usage"
)

// JobCleanUnused is the job name handled by RegisterJobs.
const JobCleanUnused = "media.clean_unused"

// CleanResult summarizes one cleanup run.
type CleanResult struct {
	Recomputed int `json:"recomputed"`
	Deleted    int `json:"deleted"`
}

// Collector deletes unused media records and their blobs.
type Collector struct {
	svc     mediastore.Service
	repo    mediastore.Repository
	tracker *usage.Tracker
}

// New creates a collector.
func New(svc mediastore.Service, repo mediastore.Repository, tracker *usage.Tracker) *Collector {
	return &Collector{svc: svc, repo: repo, tracker: tracker}
}

// CleanUnused recomputes every usage flag, then deletes all records whose
// refreshed flag is false. Deletion removes the row before the blob;
// a blob left behind by a storage failure is logged and orphaned rather
// than failing the run. Per-record delete errors abort the run so a
// broken backend does not churn through the whole catalog.
func (c *Collector) CleanUnused(ctx context.Context) (CleanResult, error) {
	var result CleanResult

	recomputed, err := c.tracker.RecomputeAll(ctx)
	if err != nil {
		return result, err
	}
	result.Recomputed = recomputed

	unused, err := c.repo.ListMedia(ctx, mediastore.MediaListFilters{Used: mediastore.UsedFilter(false)})
	if err != nil {
		return result, err
	}

	for _, record := range unused {
		if err := c.svc.DeleteMedia(ctx, record.ID); err != nil {
			return result, err
		}
		result.Deleted++
		slog.Info("unused media deleted",
			"media_id", record.ID, "storage_key", record.StorageKey, "title", record.Title)
	}

	slog.Info("cleanup finished", "recomputed", result.Recomputed, "deleted", result.Deleted)
	return result, nil
}

// DeleteRecord removes one record regardless of its usage flag. This is
// the explicit operator override; routine cleanup goes through CleanUnused.
func (c *Collector) DeleteRecord(ctx context.Context, id uuid.UUID) error {
	return c.svc.DeleteMedia(ctx, id)
}

// RegisterJobs wires the cleanup job handler into a worker.
func (c *Collector) RegisterJobs(worker *dispatch.Worker) {
	worker.Handle(JobCleanUnused, func(ctx context.Context, job dispatch.Job) error {
		_, err := c.CleanUnused(ctx)
		return err
	})
}
