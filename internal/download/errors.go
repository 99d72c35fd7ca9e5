package download

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// NotDirectError is returned when a torrent-kind result is handed to the
// direct downloader. Those results carry an info-hash in the checksum field,
// which must never be sent to the mirror resolver as a document md5.
type NotDirectError struct {
	Title string
	Kind  string
}

func (e *NotDirectError) Error() string {
	return fmt.Sprintf("result %q is a %s download, not a direct file", e.Title, e.Kind)
}

// MissingChecksumError is returned when a direct result carries no content
// checksum, so no mirror can be resolved for it.
type MissingChecksumError struct {
	Title string
}

func (e *MissingChecksumError) Error() string {
	return fmt.Sprintf("result %q has no content checksum to resolve a mirror from", e.Title)
}

// NoMirrorError is returned when mirror resolution produced no usable URL.
type NoMirrorError struct {
	Checksum string
}

func (e *NoMirrorError) Error() string {
	return fmt.Sprintf("no mirror available for checksum %s", e.Checksum)
}

// DownloadFailedError is returned when every fetch attempt was exhausted.
type DownloadFailedError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *DownloadFailedError) Error() string {
	return fmt.Sprintf("download from %s failed after %d attempts: %s", e.URL, e.Attempts, e.Err)
}

func (e *DownloadFailedError) Unwrap() error {
	return e.Err
}

// SuspiciousSizeError is returned when a completed file is too small to be a
// real document and the caller declined to keep it. Mirrors serve HTML error
// pages with a 200 status often enough that tiny files are suspect.
type SuspiciousSizeError struct {
	Path string
	Size int64
}

func (e *SuspiciousSizeError) Error() string {
	return fmt.Sprintf("downloaded file %s is only %s, discarded as a likely error page", e.Path, humanize.Bytes(uint64(e.Size)))
}
