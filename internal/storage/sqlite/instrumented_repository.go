package sqlite

import (
	"context"
	"database/sql"

	"github.com/zilezarach/torrentcli/internal/storage"
	"github.com/zilezarach/torrentcli/internal/telemetry"
)

// InstrumentedHistoryRepository wraps the history repositories with telemetry.
type InstrumentedHistoryRepository struct {
	write     *HistoryWriteRepository
	read      *HistoryReadRepository
	telemetry *telemetry.Telemetry
}

// NewInstrumentedHistoryRepository creates a new instrumented history repository.
func NewInstrumentedHistoryRepository(dbConn *sql.DB, tel *telemetry.Telemetry) *InstrumentedHistoryRepository {
	return &InstrumentedHistoryRepository{
		write:     NewHistoryWriteRepository(dbConn),
		read:      NewHistoryReadRepository(dbConn),
		telemetry: tel,
	}
}

// AppendHistory records a completed acquisition with telemetry.
func (r *InstrumentedHistoryRepository) AppendHistory(entry storage.HistoryEntry) error {
	return r.telemetry.InstrumentDBOperation(context.Background(), "append_history", func(ctx context.Context) error {
		return r.write.AppendHistory(entry)
	})
}

// GetHistory retrieves all history entries with telemetry.
func (r *InstrumentedHistoryRepository) GetHistory() ([]storage.HistoryEntry, error) {
	var result []storage.HistoryEntry

	var err error

	instrumentedErr := r.telemetry.InstrumentDBOperation(context.Background(), "get_history", func(ctx context.Context) error {
		result, err = r.read.GetHistory()

		return err
	})

	if instrumentedErr != nil {
		return nil, instrumentedErr
	}

	return result, nil
}

// RecentHistory retrieves the newest entries with telemetry.
func (r *InstrumentedHistoryRepository) RecentHistory(limit int) ([]storage.HistoryEntry, error) {
	var result []storage.HistoryEntry

	var err error

	instrumentedErr := r.telemetry.InstrumentDBOperation(context.Background(), "recent_history", func(ctx context.Context) error {
		result, err = r.read.RecentHistory(limit)

		return err
	})

	if instrumentedErr != nil {
		return nil, instrumentedErr
	}

	return result, nil
}
