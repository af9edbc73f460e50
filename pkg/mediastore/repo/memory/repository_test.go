package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavecms/mediastore/pkg/mediastore"
	repomemory "github.com/wavecms/mediastore/pkg/mediastore/repo/memory"
)

func newRecord(hash string, uploadedAt time.Time) *mediastore.MediaRecord {
	return &mediastore.MediaRecord{
		ID:          uuid.New(),
		ContentHash: hash,
		StorageKey:  "media/2026/01/01-" + hash[:6],
		Title:       "record " + hash[:6],
		UploadedAt:  uploadedAt,
	}
}

func TestRepositoryCRUD(t *testing.T) {
	ctx := context.Background()
	repo := repomemory.New()
	now := time.Now().UTC()

	record := newRecord("aaaa0000bbbb", now)
	require.NoError(t, repo.CreateMedia(ctx, record))

	t.Run("GetByID", func(t *testing.T) {
		got, err := repo.GetMedia(ctx, record.ID)
		require.NoError(t, err)
		assert.Equal(t, record.ContentHash, got.ContentHash)
	})

	t.Run("GetByHash", func(t *testing.T) {
		got, err := repo.GetMediaByHash(ctx, record.ContentHash)
		require.NoError(t, err)
		assert.Equal(t, record.ID, got.ID)
	})

	t.Run("DuplicateHashRejected", func(t *testing.T) {
		dup := newRecord(record.ContentHash, now)
		assert.ErrorIs(t, repo.CreateMedia(ctx, dup), mediastore.ErrDuplicateContentHash)
	})

	t.Run("ReturnsCopies", func(t *testing.T) {
		got, err := repo.GetMedia(ctx, record.ID)
		require.NoError(t, err)
		got.Title = "mutated"

		again, err := repo.GetMedia(ctx, record.ID)
		require.NoError(t, err)
		assert.NotEqual(t, "mutated", again.Title)
	})

	t.Run("Update", func(t *testing.T) {
		record.Title = "renamed"
		require.NoError(t, repo.UpdateMedia(ctx, record))

		got, err := repo.GetMedia(ctx, record.ID)
		require.NoError(t, err)
		assert.Equal(t, "renamed", got.Title)
	})

	t.Run("UpdateRekeysHashIndex", func(t *testing.T) {
		oldHash := record.ContentHash
		record.ContentHash = "cccc1111dddd"
		require.NoError(t, repo.UpdateMedia(ctx, record))

		_, err := repo.GetMediaByHash(ctx, oldHash)
		assert.ErrorIs(t, err, mediastore.ErrMediaNotFound)

		got, err := repo.GetMediaByHash(ctx, record.ContentHash)
		require.NoError(t, err)
		assert.Equal(t, record.ID, got.ID)
	})

	t.Run("UpdateToTakenHashRejected", func(t *testing.T) {
		other := newRecord("eeee2222ffff", now)
		require.NoError(t, repo.CreateMedia(ctx, other))

		other.ContentHash = record.ContentHash
		assert.ErrorIs(t, repo.UpdateMedia(ctx, other), mediastore.ErrDuplicateContentHash)
	})

	t.Run("UpdateUnknownRecord", func(t *testing.T) {
		ghost := newRecord("9999aaaa8888", now)
		assert.ErrorIs(t, repo.UpdateMedia(ctx, ghost), mediastore.ErrMediaNotFound)
	})

	t.Run("DeleteFreesHash", func(t *testing.T) {
		require.NoError(t, repo.DeleteMedia(ctx, record.ID))

		_, err := repo.GetMedia(ctx, record.ID)
		assert.ErrorIs(t, err, mediastore.ErrMediaNotFound)

		// Hash can be reused after delete.
		assert.NoError(t, repo.CreateMedia(ctx, newRecord(record.ContentHash, now)))
	})

	t.Run("DeleteAbsentIsNoOp", func(t *testing.T) {
		assert.NoError(t, repo.DeleteMedia(ctx, uuid.New()))
	})
}

func TestSetUsageFlag(t *testing.T) {
	ctx := context.Background()
	repo := repomemory.New()

	record := newRecord("1234abcd5678", time.Now().UTC())
	require.NoError(t, repo.CreateMedia(ctx, record))

	changed, err := repo.SetUsageFlag(ctx, record.ID, true)
	require.NoError(t, err)
	assert.True(t, changed)

	// Redundant write reports no change.
	changed, err = repo.SetUsageFlag(ctx, record.ID, true)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = repo.SetUsageFlag(ctx, record.ID, false)
	require.NoError(t, err)
	assert.True(t, changed)

	_, err = repo.SetUsageFlag(ctx, uuid.New(), true)
	assert.ErrorIs(t, err, mediastore.ErrMediaNotFound)
}

func TestListMedia(t *testing.T) {
	ctx := context.Background()
	repo := repomemory.New()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	old := newRecord("hash00000001", base)
	mid := newRecord("hash00000002", base.Add(time.Hour))
	recent := newRecord("hash00000003", base.Add(2*time.Hour))
	for _, r := range []*mediastore.MediaRecord{old, mid, recent} {
		require.NoError(t, repo.CreateMedia(ctx, r))
	}
	_, err := repo.SetUsageFlag(ctx, mid.ID, true)
	require.NoError(t, err)

	t.Run("NewestFirst", func(t *testing.T) {
		records, err := repo.ListMedia(ctx, mediastore.MediaListFilters{})
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, recent.ID, records[0].ID)
		assert.Equal(t, old.ID, records[2].ID)
	})

	t.Run("UsedFilter", func(t *testing.T) {
		records, err := repo.ListMedia(ctx, mediastore.MediaListFilters{Used: mediastore.UsedFilter(true)})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, mid.ID, records[0].ID)

		records, err = repo.ListMedia(ctx, mediastore.MediaListFilters{Used: mediastore.UsedFilter(false)})
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("LimitOffset", func(t *testing.T) {
		limit, offset := 1, 1
		records, err := repo.ListMedia(ctx, mediastore.MediaListFilters{Limit: &limit, Offset: &offset})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, mid.ID, records[0].ID)

		offset = 10
		records, err = repo.ListMedia(ctx, mediastore.MediaListFilters{Offset: &offset})
		require.NoError(t, err)
		assert.Empty(t, records)
	})
}
