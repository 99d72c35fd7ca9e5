package acquire

import "fmt"

// InvalidLinkError is returned when a result's download URL is neither a
// magnet link nor an HTTP torrent URL.
type InvalidLinkError struct {
	URL string
}

func (e *InvalidLinkError) Error() string {
	return fmt.Sprintf("download link %q is not a magnet or torrent URL", e.URL)
}

// CapacityExceededError is returned when the daemon already has as many
// active downloads as the configured limit allows.
type CapacityExceededError struct {
	Active int
	Limit  int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("daemon has %d active downloads, limit is %d", e.Active, e.Limit)
}

// DaemonRejectedError is returned when the daemon refused a submission.
type DaemonRejectedError struct {
	Err error
}

func (e *DaemonRejectedError) Error() string {
	return fmt.Sprintf("daemon rejected submission: %s, is qBittorrent running?", e.Err)
}

func (e *DaemonRejectedError) Unwrap() error {
	return e.Err
}

// HandleNotFoundError is returned when a submitted torrent never appeared in
// the daemon's list within the locate window.
type HandleNotFoundError struct {
	Title string
	Polls int
}

func (e *HandleNotFoundError) Error() string {
	return fmt.Sprintf("torrent %q not found in daemon after %d polls", e.Title, e.Polls)
}

// HandleLostError is returned when a torrent being watched disappeared from
// the daemon, usually because it was removed externally.
type HandleLostError struct {
	Handle string
}

func (e *HandleLostError) Error() string {
	return fmt.Sprintf("torrent %s disappeared from the daemon", e.Handle)
}

// DaemonError is returned when the daemon reports a torrent in an error state.
type DaemonError struct {
	Handle string
	State  string
}

func (e *DaemonError) Error() string {
	return fmt.Sprintf("daemon reports torrent %s in state %q", e.Handle, e.State)
}
