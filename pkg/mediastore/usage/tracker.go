// Package usage maintains the cached is-used flag on media records.
//
// The flag is denormalized so that listing and cleanup never pay for a
// full reference scan. It is recomputed asynchronously whenever a
// relation event touches a media id, and in bulk by RecomputeAll. The
// cache is eventually consistent: between a referencing write and the
// job run the flag may be stale.
package usage

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/wavecms/mediastore/pkg/mediastore"
	"github.com/wavecms/mediastore/pkg/mediastore/dispatch"
	"github.com/wavecms/mediastore/pkg/mediastore/scan"
	"github.com/wavecms/mediastore/pkg/mediastore/schema"
)

// Job names handled by RegisterJobs.
const (
	JobRecompute    = "usage.recompute"
	JobRecomputeAll = "usage.recompute_all"
)

// Tracker recomputes cached usage flags. It implements schema.Observer,
// so subscribing it to the registry turns every relation mutation into
// recompute jobs for the affected media ids.
type Tracker struct {
	repo       mediastore.Repository
	scanner    *scan.Scanner
	store      mediastore.BlobStore
	dispatcher dispatch.Dispatcher
}

// New creates a tracker. The dispatcher may be nil when only synchronous
// recomputes are needed (CLI runs).
func New(repo mediastore.Repository, scanner *scan.Scanner, store mediastore.BlobStore, dispatcher dispatch.Dispatcher) *Tracker {
	return &Tracker{repo: repo, scanner: scanner, store: store, dispatcher: dispatcher}
}

// RelationChanged implements schema.Observer. Both the previous and the
// current media id need a recompute: the old value may have lost its last
// reference, the new one may have gained its first. Enqueue failures are
// logged, never propagated into the triggering write.
func (t *Tracker) RelationChanged(ctx context.Context, ev schema.RelationEvent) {
	if t.dispatcher == nil {
		return
	}
	for _, id := range ev.AffectedMedia() {
		job := dispatch.NewJob(JobRecompute, map[string]string{"media_id": id.String()})
		if err := t.dispatcher.Enqueue(ctx, job); err != nil {
			slog.Error("failed to enqueue usage recompute",
				"media_id", id, "entity_type", ev.EntityType, "field", ev.Field, "error", err)
		}
	}
}

// Recompute re-derives the cached flag for one record from a full
// reference scan. It reports whether the stored flag changed. A record
// deleted since the triggering event is not an error.
func (t *Tracker) Recompute(ctx context.Context, id uuid.UUID) (bool, error) {
	used, err := t.scanner.IsReferenced(ctx, id)
	if err != nil {
		if errors.Is(err, mediastore.ErrMediaNotFound) {
			return false, nil
		}
		return false, err
	}

	changed, err := t.repo.SetUsageFlag(ctx, id, used)
	if err != nil {
		if errors.Is(err, mediastore.ErrMediaNotFound) {
			return false, nil
		}
		return false, err
	}
	if changed {
		slog.Info("usage flag updated", "media_id", id, "used", used)
	}
	return changed, nil
}

// RecomputeAll re-derives the flag for every record in the catalog and
// returns the number of flags that changed. One shared rich-text sweep
// replaces the per-record sweep IsReferenced would do, so the cost is
// one pass over the entity data plus one relation check per record.
func (t *Tracker) RecomputeAll(ctx context.Context) (int, error) {
	records, err := t.repo.ListMedia(ctx, mediastore.MediaListFilters{})
	if err != nil {
		return 0, err
	}

	usedPaths := t.scanner.UsedPaths(ctx)

	var changedCount int
	for _, record := range records {
		used := false
		if _, ok := usedPaths[scan.URLPath(t.store.URLFor(record.StorageKey))]; ok {
			used = true
		} else {
			direct, err := t.scanner.DirectlyReferenced(ctx, record.ID)
			if err != nil {
				return changedCount, err
			}
			used = direct
		}

		changed, err := t.repo.SetUsageFlag(ctx, record.ID, used)
		if err != nil && !errors.Is(err, mediastore.ErrMediaNotFound) {
			return changedCount, err
		}
		if changed {
			changedCount++
		}
	}

	slog.Info("usage recompute finished", "records", len(records), "changed", changedCount)
	return changedCount, nil
}

// RegisterJobs wires the tracker's job handlers into a worker.
func (t *Tracker) RegisterJobs(worker *dispatch.Worker) {
	worker.Handle(JobRecompute, func(ctx context.Context, job dispatch.Job) error {
		id, err := job.MediaIDArg()
		if err != nil {
			return err
		}
		_, err = t.Recompute(ctx, id)
		return err
	})
	worker.Handle(JobRecomputeAll, func(ctx context.Context, job dispatch.Job) error {
		_, err := t.RecomputeAll(ctx)
		return err
	})
}
