package sqlite_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zilezarach/torrentcli/internal/storage"
	"github.com/zilezarach/torrentcli/internal/storage/sqlite"
)

func TestHistoryRoundTrip(t *testing.T) {
	db, err := sqlite.InitDB(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })

	write := sqlite.NewHistoryWriteRepository(db)
	read := sqlite.NewHistoryReadRepository(db)

	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	require.NoError(t, write.AppendHistory(storage.HistoryEntry{
		Title:        "Ubuntu 24.04",
		DownloadedAt: base,
		Kind:         storage.HistoryKindTorrent,
		Path:         "/downloads",
		Size:         6227702579,
		Source:       "1337x",
		Handle:       "abc",
	}))
	require.NoError(t, write.AppendHistory(storage.HistoryEntry{
		Title:        "The Go Programming Language",
		DownloadedAt: base.Add(time.Hour),
		Kind:         storage.HistoryKindDirect,
		Path:         "/books/go.pdf",
		Size:         4096,
		Source:       "libgen",
	}))

	entries, err := read.GetHistory()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "Ubuntu 24.04", entries[0].Title)
	assert.Equal(t, storage.HistoryKindTorrent, entries[0].Kind)
	assert.Equal(t, "abc", entries[0].Handle)
	assert.True(t, entries[0].DownloadedAt.Equal(base))

	recent, err := read.RecentHistory(1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "The Go Programming Language", recent[0].Title, "recent history is newest first")
}

func TestAppendHistory_DefaultsTimestamp(t *testing.T) {
	db, err := sqlite.InitDB(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })

	write := sqlite.NewHistoryWriteRepository(db)

	require.NoError(t, write.AppendHistory(storage.HistoryEntry{
		Title: "No Timestamp",
		Kind:  storage.HistoryKindDirect,
	}))

	entries, err := sqlite.NewHistoryReadRepository(db).GetHistory()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].DownloadedAt.IsZero())
}

func TestInstrumentedRepository_NilTelemetry(t *testing.T) {
	db, err := sqlite.InitDB(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })

	repo := sqlite.NewInstrumentedHistoryRepository(db, nil)

	require.NoError(t, repo.AppendHistory(storage.HistoryEntry{
		Title: "Instrumented",
		Kind:  storage.HistoryKindTorrent,
	}))

	entries, err := repo.RecentHistory(10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
