package scan_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavecms/mediastore/pkg/mediastore"
	repomemory "github.com/wavecms/mediastore/pkg/mediastore/repo/memory"
	"github.com/wavecms/mediastore/pkg/mediastore/scan"
	"github.com/wavecms/mediastore/pkg/mediastore/schema"
	schemamemory "github.com/wavecms/mediastore/pkg/mediastore/schema/memory"
	memorystorage "github.com/wavecms/mediastore/pkg/mediastore/storage/memory"
)

type fixture struct {
	registry *schema.Registry
	entities *schemamemory.Store
	repo     *repomemory.Repository
	store    *memorystorage.Backend
	scanner  *scan.Scanner
	svc      mediastore.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	registry := schema.NewRegistry()
	require.NoError(t, registry.Register(schema.EntityType{
		Name: "event",
		Relations: []schema.RelationField{
			{Name: "main_image", Cardinality: schema.Single},
			{Name: "gallery", Cardinality: schema.Multi},
		},
		RichText: []schema.RichTextField{{Name: "body", Localized: true}},
	}))
	require.NoError(t, registry.Register(schema.EntityType{
		Name:     "page",
		RichText: []schema.RichTextField{{Name: "content"}},
	}))

	entities := schemamemory.New(registry)
	repo := repomemory.New()
	store := memorystorage.New()
	svc, err := mediastore.New(
		mediastore.WithRepository(repo),
		mediastore.WithBlobStore("memory", store),
	)
	require.NoError(t, err)

	return &fixture{
		registry: registry,
		entities: entities,
		repo:     repo,
		store:    store,
		scanner:  scan.New(registry, entities, repo, store),
		svc:      svc,
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

func TestIsReferenced(t *testing.T) {
	ctx := context.Background()

	t.Run("Unreferenced", func(t *testing.T) {
		f := newFixture(t)
		record := f.ingest(t, "lonely")

		used, err := f.scanner.IsReferenced(ctx, record.ID)
		require.NoError(t, err)
		assert.False(t, used)
	})

	t.Run("SingleRelation", func(t *testing.T) {
		f := newFixture(t)
		record := f.ingest(t, "hero image")

		entity := schemamemory.NewEntity("event")
		entity.Single["main_image"] = &record.ID
		require.NoError(t, f.entities.Save(ctx, entity))

		used, err := f.scanner.IsReferenced(ctx, record.ID)
		require.NoError(t, err)
		assert.True(t, used)
	})

	t.Run("MultiRelation", func(t *testing.T) {
		f := newFixture(t)
		record := f.ingest(t, "gallery image")

		entity := schemamemory.NewEntity("event")
		require.NoError(t, f.entities.Save(ctx, entity))
		require.NoError(t, f.entities.AddToRelation(ctx, "event", entity.ID, "gallery", record.ID))

		used, err := f.scanner.IsReferenced(ctx, record.ID)
		require.NoError(t, err)
		assert.True(t, used)
	})

	t.Run("RichTextEmbed", func(t *testing.T) {
		f := newFixture(t)
		record := f.ingest(t, "embedded image")

		entity := schemamemory.NewEntity("page")
		entity.SetRichText("content", "", `<p><img src="`+f.store.URLFor(record.StorageKey)+`"></p>`)
		require.NoError(t, f.entities.Save(ctx, entity))

		used, err := f.scanner.IsReferenced(ctx, record.ID)
		require.NoError(t, err)
		assert.True(t, used)
	})

	t.Run("RichTextMatchesPathDespiteHostAndQuery", func(t *testing.T) {
		f := newFixture(t)
		record := f.ingest(t, "cdn image")

		entity := schemamemory.NewEntity("page")
		entity.SetRichText("content", "",
			`<img src='https://cdn.example.com`+f.store.URLFor(record.StorageKey)+`?v=3'>`)
		require.NoError(t, f.entities.Save(ctx, entity))

		used, err := f.scanner.IsReferenced(ctx, record.ID)
		require.NoError(t, err)
		assert.True(t, used)
	})

	t.Run("LocalizedRichText", func(t *testing.T) {
		f := newFixture(t)
		record := f.ingest(t, "german only")

		entity := schemamemory.NewEntity("event")
		entity.SetRichText("body", "en", `<p>kein Bild</p>`)
		entity.SetRichText("body", "de", `<img src="`+f.store.URLFor(record.StorageKey)+`">`)
		require.NoError(t, f.entities.Save(ctx, entity))

		used, err := f.scanner.IsReferenced(ctx, record.ID)
		require.NoError(t, err)
		assert.True(t, used)
	})

	t.Run("UnknownRecord", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.scanner.IsReferenced(ctx, uuid.New())
		assert.ErrorIs(t, err, mediastore.ErrMediaNotFound)
	})

	t.Run("BrokenTypeIsSkipped", func(t *testing.T) {
		f := newFixture(t)
		record := f.ingest(t, "resilient")

		entity := schemamemory.NewEntity("page")
		entity.SetRichText("content", "", `<img src="`+f.store.URLFor(record.StorageKey)+`">`)
		require.NoError(t, f.entities.Save(ctx, entity))

		// Event reads fail; the page rich-text reference still counts.
		f.entities.FailReads("event", errors.New("connection refused"))

		used, err := f.scanner.IsReferenced(ctx, record.ID)
		require.NoError(t, err)
		assert.True(t, used)
	})
}

func TestUsageDetails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	record := f.ingest(t, "widely used")

	first := schemamemory.NewEntity("event")
	first.Single["main_image"] = &record.ID
	require.NoError(t, f.entities.Save(ctx, first))

	second := schemamemory.NewEntity("event")
	second.Single["main_image"] = &record.ID
	require.NoError(t, f.entities.Save(ctx, second))
	require.NoError(t, f.entities.AddToRelation(ctx, "event", second.ID, "gallery", record.ID))

	page := schemamemory.NewEntity("page")
	page.SetRichText("content", "", `<img src="`+f.store.URLFor(record.StorageKey)+`">`)
	require.NoError(t, f.entities.Save(ctx, page))

	usage, err := f.scanner.UsageDetails(ctx, record.ID)
	require.NoError(t, err)

	counts := make(map[string]int64)
	for _, u := range usage {
		counts[u.EntityType+"."+u.Field] = u.Count
	}
	assert.Equal(t, int64(2), counts["event.main_image"])
	assert.Equal(t, int64(1), counts["event.gallery"])
	assert.Equal(t, int64(1), counts["page."+scan.RichTextUsageField])
}

func TestUsedPaths(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	page := schemamemory.NewEntity("page")
	page.SetRichText("content", "",
		`<img src="/media/a.png"><img src='https://cdn.example.com/media/b.png?x=1'>`)
	require.NoError(t, f.entities.Save(ctx, page))

	paths := f.scanner.UsedPaths(ctx)
	assert.Contains(t, paths, "/media/a.png")
	assert.Contains(t, paths, "/media/b.png")
	assert.Len(t, paths, 2)
}

func TestURLPath(t *testing.T) {
	assert.Equal(t, "/media/a.png", scan.URLPath("https://cdn.example.com/media/a.png?v=2"))
	assert.Equal(t, "/media/a.png", scan.URLPath("/media/a.png"))
}
