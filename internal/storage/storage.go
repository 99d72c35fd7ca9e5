package storage

import "time"

// History entry kinds.
const (
	HistoryKindTorrent = "torrent"
	HistoryKindDirect  = "direct"
)

// HistoryEntry records one successfully completed acquisition.
type HistoryEntry struct {
	Title        string
	DownloadedAt time.Time
	Kind         string
	Path         string
	Size         int64
	Source       string
	Handle       string
}

type HistoryWriteRepository interface {
	AppendHistory(entry HistoryEntry) error
}

type HistoryReadRepository interface {
	GetHistory() ([]HistoryEntry, error)
	RecentHistory(limit int) ([]HistoryEntry, error)
}

// ScheduledSearch is one deferred query: when FireAt passes, the query runs
// and its best result is submitted for acquisition.
type ScheduledSearch struct {
	Query  string    `json:"query"`
	FireAt time.Time `json:"time"`
	Limit  int       `json:"limit,omitempty"`
	Done   bool      `json:"done"`
}

// ScheduleRepository persists the scheduled search list as a whole. Readers
// and writers always exchange complete snapshots.
type ScheduleRepository interface {
	GetScheduledSearches() ([]ScheduledSearch, error)
	SaveScheduledSearches(searches []ScheduledSearch) error
}
