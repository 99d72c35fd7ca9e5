package sqlite

import (
	"database/sql"
	"time"

	"github.com/zilezarach/torrentcli/internal/storage"
)

// HistoryWriteRepository implements storage.HistoryWriteRepository and
// appends completed acquisitions to SQLite.
type HistoryWriteRepository struct {
	db *sql.DB
}

func NewHistoryWriteRepository(db *sql.DB) *HistoryWriteRepository {
	return &HistoryWriteRepository{db: db}
}

func (r *HistoryWriteRepository) AppendHistory(entry storage.HistoryEntry) error {
	downloadedAt := entry.DownloadedAt
	if downloadedAt.IsZero() {
		downloadedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO history (title, downloaded_at, kind, path, size, source, handle) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.Title, downloadedAt.Format(time.RFC3339), entry.Kind, entry.Path, entry.Size, entry.Source, entry.Handle,
	)

	return err
}
