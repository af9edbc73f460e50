package gc_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavecms/mediastore/pkg/mediastore"
	"github.com/wavecms/mediastore/pkg/mediastore/gc"
	repomemory "github.com/wavecms/mediastore/pkg/mediastore/repo/memory"
	"github.com/wavecms/mediastore/pkg/mediastore/scan"
	"github.com/wavecms/mediastore/pkg/mediastore/schema"
	schemamemory "github.com/wavecms/mediastore/pkg/mediastore/schema/memory"
	memorystorage "github.com/wavecms/mediastore/pkg/mediastore/storage/memory"
	"github.com/wavecms/mediastore/pkg/mediastore/usage"
)

type fixture struct {
	entities  *schemamemory.Store
	repo      *repomemory.Repository
	store     *memorystorage.Backend
	svc       mediastore.Service
	collector *gc.Collector
}

func newFixture(t *testing.T) *fixture {
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
	tracker := usage.New(repo, scanner, store, nil)

	return &fixture{
		entities:  entities,
		repo:      repo,
		store:     store,
		svc:       svc,
		collector: gc.New(svc, repo, tracker),
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

func TestCleanUnused(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	kept := f.ingest(t, "still referenced")
	embedded := f.ingest(t, "embedded in body")
	orphanA := f.ingest(t, "orphan a")
	orphanB := f.ingest(t, "orphan b")

	entity := schemamemory.NewEntity("event")
	entity.Single["main_image"] = &kept.ID
	entity.SetRichText("body", "", `<img src="`+f.store.URLFor(embedded.StorageKey)+`">`)
	require.NoError(t, f.entities.Save(ctx, entity))

	result, err := f.collector.CleanUnused(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Recomputed)
	assert.Equal(t, 2, result.Deleted)

	// Referenced records survive with their blobs.
	for _, record := range []*mediastore.MediaRecord{kept, embedded} {
		_, err := f.repo.GetMedia(ctx, record.ID)
		assert.NoError(t, err)
		exists, err := f.store.Exists(ctx, record.StorageKey)
		require.NoError(t, err)
		assert.True(t, exists)
	}

	// Orphans lose both row and blob.
	for _, record := range []*mediastore.MediaRecord{orphanA, orphanB} {
		_, err := f.repo.GetMedia(ctx, record.ID)
		assert.ErrorIs(t, err, mediastore.ErrMediaNotFound)
		exists, err := f.store.Exists(ctx, record.StorageKey)
		require.NoError(t, err)
		assert.False(t, exists)
	}
}

func TestCleanUnusedTrustsRecomputeOverStaleFlags(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	record := f.ingest(t, "recently referenced")

	// The flag says unused, but a reference exists. The pre-delete
	// recompute must rescue the record.
	entity := schemamemory.NewEntity("event")
	entity.Single["main_image"] = &record.ID
	require.NoError(t, f.entities.Save(ctx, entity))
	_, err := f.repo.SetUsageFlag(ctx, record.ID, false)
	require.NoError(t, err)

	result, err := f.collector.CleanUnused(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Deleted)

	_, err = f.repo.GetMedia(ctx, record.ID)
	assert.NoError(t, err)
}

func TestCleanUnusedEmptyCatalog(t *testing.T) {
	f := newFixture(t)

	result, err := f.collector.CleanUnused(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Recomputed)
	assert.Zero(t, result.Deleted)
}

func TestDeleteRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	record := f.ingest(t, "deleted by operator")

	// Operator override ignores the usage flag entirely.
	entity := schemamemory.NewEntity("event")
	entity.Single["main_image"] = &record.ID
	require.NoError(t, f.entities.Save(ctx, entity))

	require.NoError(t, f.collector.DeleteRecord(ctx, record.ID))

	_, err := f.repo.GetMedia(ctx, record.ID)
	assert.ErrorIs(t, err, mediastore.ErrMediaNotFound)

	// Absent ids are a no-op, matching the delete semantics underneath.
	assert.NoError(t, f.collector.DeleteRecord(ctx, uuid.New()))
}
