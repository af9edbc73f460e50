package usage_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavecms/mediastore/pkg/mediastore"
	"github.com/wavecms/mediastore/pkg/mediastore/dispatch"
	repomemory "github.com/wavecms/mediastore/pkg/mediastore/repo/memory"
	"github.com/wavecms/mediastore/pkg/mediastore/scan"
	"github.com/wavecms/mediastore/pkg/mediastore/schema"
	schemamemory "github.com/wavecms/mediastore/pkg/mediastore/schema/memory"
	memorystorage "github.com/wavecms/mediastore/pkg/mediastore/storage/memory"
	"github.com/wavecms/mediastore/pkg/mediastore/usage"
)

type fixture struct {
	registry *schema.Registry
	entities *schemamemory.Store
	repo     *repomemory.Repository
	store    *memorystorage.Backend
	svc      mediastore.Service
	tracker  *usage.Tracker
}

func newFixture(t *testing.T, dispatcher dispatch.Dispatcher) *fixture {
	t.Helper()

	registry := schema.NewRegistry()
	require.NoError(t, registry.Register(schema.EntityType{
		Name: "event",
		Relations: []schema.RelationField{
			{Name: "main_image", Cardinality: schema.Single},
		},
		RichText: []schema.RichTextField{{Name: "body"}},
	}))

	entities := schemamemory.New(registry)
	repo := repomemory.New()
	store := memorystorage.New()
	svc, err := mediastore.New(
		mediastore.WithRepository(repo),
		mediastore.WithBlobStore("memory", store),
	)
	require.NoError(t, err)

	scanner := scan.New(registry, entities, repo, store)
	tracker := usage.New(repo, scanner, store, dispatcher)
	registry.Subscribe(tracker)

	return &fixture{
		registry: registry,
		entities: entities,
		repo:     repo,
		store:    store,
		svc:      svc,
		tracker:  tracker,
	}
}

func (f *fixture) ingest(t *testing.T, content string) *mediastore.MediaRecord {
	t.Helper()
	record, _, err := f.svc.Ingest(context.Background(), mediastore.IngestRequest{
		Reader:   strings.NewReader(content),
		FileName: "asset.png",
	})
	require.NoError(t, err)
	return record
}

// recordingDispatcher captures enqueued jobs without executing them.
type recordingDispatcher struct {
	jobs []dispatch.Job
}

func (d *recordingDispatcher) Enqueue(ctx context.Context, job dispatch.Job) error {
	d.jobs = append(d.jobs, job)
	return nil
}

func (d *recordingDispatcher) Close() error { return nil }

func TestRelationChangedEnqueues(t *testing.T) {
	ctx := context.Background()
	dispatcher := &recordingDispatcher{}
	f := newFixture(t, dispatcher)

	oldImage := f.ingest(t, "old image")
	newImage := f.ingest(t, "new image")

	entity := schemamemory.NewEntity("event")
	entity.Single["main_image"] = &oldImage.ID
	require.NoError(t, f.entities.Save(ctx, entity))

	// Re-pointing the relation queues recomputes for both the old and the
	// new media id.
	dispatcher.jobs = nil
	entity.Single["main_image"] = &newImage.ID
	require.NoError(t, f.entities.Save(ctx, entity))

	require.Len(t, dispatcher.jobs, 2)
	var ids []string
	for _, job := range dispatcher.jobs {
		assert.Equal(t, usage.JobRecompute, job.Name)
		ids = append(ids, job.Arg("media_id"))
	}
	assert.ElementsMatch(t, []string{oldImage.ID.String(), newImage.ID.String()}, ids)
}

func TestRecompute(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	record := f.ingest(t, "tracked")

	t.Run("MarksUsed", func(t *testing.T) {
		entity := schemamemory.NewEntity("event")
		entity.Single["main_image"] = &record.ID
		require.NoError(t, f.entities.Save(ctx, entity))

		changed, err := f.tracker.Recompute(ctx, record.ID)
		require.NoError(t, err)
		assert.True(t, changed)

		got, err := f.repo.GetMedia(ctx, record.ID)
		require.NoError(t, err)
		assert.True(t, got.IsUsedCached)
	})

	t.Run("RedundantRecomputeReportsNoChange", func(t *testing.T) {
		changed, err := f.tracker.Recompute(ctx, record.ID)
		require.NoError(t, err)
		assert.False(t, changed)
	})

	t.Run("DeletedRecordIsNotAnError", func(t *testing.T) {
		changed, err := f.tracker.Recompute(ctx, uuid.New())
		require.NoError(t, err)
		assert.False(t, changed)
	})
}

func TestRecomputeAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	linked := f.ingest(t, "linked via relation")
	embedded := f.ingest(t, "embedded in rich text")
	orphan := f.ingest(t, "orphaned")

	entity := schemamemory.NewEntity("event")
	entity.Single["main_image"] = &linked.ID
	entity.SetRichText("body", "", `<img src="`+f.store.URLFor(embedded.StorageKey)+`">`)
	require.NoError(t, f.entities.Save(ctx, entity))

	// Seed a stale flag on the orphan to verify it flips back.
	_, err := f.repo.SetUsageFlag(ctx, orphan.ID, true)
	require.NoError(t, err)

	changed, err := f.tracker.RecomputeAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, changed)

	for _, tc := range []struct {
		id   uuid.UUID
		want bool
	}{
		{linked.ID, true},
		{embedded.ID, true},
		{orphan.ID, false},
	} {
		got, err := f.repo.GetMedia(ctx, tc.id)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got.IsUsedCached, "record %s", tc.id)
	}

	// Second run is a no-op.
	changed, err = f.tracker.RecomputeAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, changed)
}

func TestJobsRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	record := f.ingest(t, "job target")

	entity := schemamemory.NewEntity("event")
	entity.Single["main_image"] = &record.ID
	require.NoError(t, f.entities.Save(ctx, entity))

	queue := dispatch.NewGoChannelQueue(nil)
	defer queue.Close()
	worker := dispatch.NewWorker(queue)
	f.tracker.RegisterJobs(worker)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.Run(runCtx)
	}()

	job := dispatch.NewJob(usage.JobRecompute, map[string]string{"media_id": record.ID.String()})
	require.NoError(t, queue.Enqueue(ctx, job))

	assert.Eventually(t, func() bool {
		got, err := f.repo.GetMedia(ctx, record.ID)
		return err == nil && got.IsUsedCached
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
