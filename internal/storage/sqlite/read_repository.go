package sqlite

import (
	"database/sql"
	"time"

	"github.com/zilezarach/torrentcli/internal/storage"
)

type HistoryReadRepository struct {
	db *sql.DB
}

func NewHistoryReadRepository(dbConn *sql.DB) *HistoryReadRepository {
	return &HistoryReadRepository{db: dbConn}
}

func (r *HistoryReadRepository) GetHistory() ([]storage.HistoryEntry, error) {
	rows, err := r.db.Query(
		`SELECT title, downloaded_at, kind, path, size, source, handle FROM history ORDER BY downloaded_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanHistory(rows)
}

// RecentHistory returns the newest entries first, up to a limit.
func (r *HistoryReadRepository) RecentHistory(limit int) ([]storage.HistoryEntry, error) {
	rows, err := r.db.Query(
		`SELECT title, downloaded_at, kind, path, size, source, handle FROM history
		ORDER BY downloaded_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanHistory(rows)
}

func scanHistory(rows *sql.Rows) ([]storage.HistoryEntry, error) {
	var entries []storage.HistoryEntry

	for rows.Next() {
		var entry storage.HistoryEntry

		var downloadedAt string

		if err := rows.Scan(&entry.Title, &downloadedAt, &entry.Kind,
			&entry.Path, &entry.Size, &entry.Source, &entry.Handle); err != nil {
			return nil, err
		}

		if ts, err := time.Parse(time.RFC3339, downloadedAt); err == nil {
			entry.DownloadedAt = ts
		}

		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
