package zil

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DownloadKind is the closed set of acquisition channels a result can offer.
// It is decoded once at the API boundary and never carried as a free-form
// string past it.
type DownloadKind string

const (
	KindMagnet  DownloadKind = "magnet"
	KindDirect  DownloadKind = "direct"
	KindTorrent DownloadKind = "torrent"
)

func kindFromWire(s string) DownloadKind {
	switch s {
	case "direct":
		return KindDirect
	case "magnet":
		return KindMagnet
	default:
		return KindTorrent
	}
}

// SearchResult is one discovered item, normalized from the heterogeneous
// shapes the aggregator's indexers produce. Constructed once per raw record
// at fetch time and immutable thereafter.
type SearchResult struct {
	Title       string         `json:"title"`
	DownloadURL string         `json:"download_url"`
	Kind        DownloadKind   `json:"download_type"`
	Checksum    string         `json:"checksum,omitempty"`
	Size        string         `json:"size"`
	SizeBytes   int64          `json:"size_bytes"`
	Seeders     int            `json:"seeders"`
	Leechers    int            `json:"leechers"`
	Category    string         `json:"category"`
	Source      string         `json:"source"`
	PublishDate string         `json:"publish_date"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// apiResult is the raw wire shape of one aggregator record.
type apiResult struct {
	Title        string         `json:"title"`
	MagnetURI    string         `json:"magnet_uri"`
	Link         string         `json:"link"`
	DownloadType string         `json:"download_type"`
	InfoHash     string         `json:"info_hash"`
	Size         string         `json:"size"`
	SizeBytes    int64          `json:"size_bytes"`
	Seeders      int            `json:"seeders"`
	Leechers     int            `json:"leechers"`
	Category     string         `json:"category"`
	Source       string         `json:"source"`
	PublishDate  string         `json:"publish_date"`
	Extra        map[string]any `json:"extra"`
}

// decodeResult builds a SearchResult from one raw aggregator record.
// Indexers disagree about where the download type and URL live, so both
// locations are checked; direct downloads prefer the mirror from extra.
func decodeResult(raw json.RawMessage) (*SearchResult, error) {
	var rec apiResult
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("malformed result record: %w", err)
	}

	if rec.Title == "" {
		return nil, fmt.Errorf("result record has no title")
	}

	kindStr := rec.DownloadType
	if s, ok := rec.Extra["download_type"].(string); ok && s != "" {
		kindStr = s
	}

	kind := kindFromWire(kindStr)

	downloadURL := firstNonEmpty(rec.MagnetURI, rec.Link)
	if kind == KindDirect {
		mirror, _ := rec.Extra["mirror"].(string)
		downloadURL = firstNonEmpty(mirror, rec.MagnetURI, rec.Link)
	}

	checksum := rec.InfoHash
	if md5, ok := rec.Extra["md5"].(string); ok && md5 != "" {
		checksum = md5
	}

	if kind == KindDirect {
		if checksum == "" {
			return nil, fmt.Errorf("direct result %q has no content checksum", rec.Title)
		}

		if strings.HasPrefix(downloadURL, "magnet:") {
			return nil, fmt.Errorf("direct result %q resolves to a magnet link", rec.Title)
		}
	}

	if rec.SizeBytes < 0 || rec.Seeders < 0 || rec.Leechers < 0 {
		return nil, fmt.Errorf("result %q has negative counters", rec.Title)
	}

	return &SearchResult{
		Title:       rec.Title,
		DownloadURL: downloadURL,
		Kind:        kind,
		Checksum:    checksum,
		Size:        rec.Size,
		SizeBytes:   rec.SizeBytes,
		Seeders:     rec.Seeders,
		Leechers:    rec.Leechers,
		Category:    rec.Category,
		Source:      rec.Source,
		PublishDate: rec.PublishDate,
		Extra:       rec.Extra,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}

// IsDirect reports whether this result is acquired over plain HTTP rather
// than handed to the torrent daemon.
func (r *SearchResult) IsDirect() bool {
	return r.Kind == KindDirect
}

// Extension returns the file extension from indexer metadata, defaulting to
// pdf for book-style direct downloads.
func (r *SearchResult) Extension() string {
	if ext, ok := r.Extra["extension"].(string); ok && ext != "" {
		return ext
	}

	return "pdf"
}

// ExtraString returns a string-typed metadata value (authors, publisher, ...).
func (r *SearchResult) ExtraString(key string) string {
	if s, ok := r.Extra[key].(string); ok {
		return s
	}

	return ""
}
