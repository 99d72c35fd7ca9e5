package progress

import "io"

// ProgressReader wraps an io.Reader and reports progress via a callback.
// The offset seeds the counter when a download resumes partway through.
type ProgressReader struct {
	Reader         io.Reader
	Total          int64
	OnProgress     func(written int64, total int64)
	totalRead      int64 // cumulative total, including the resume offset
	lastReport     int64 // bytes since last report
	reportInterval int64 // bytes
}

func NewReader(r io.Reader, offset, total, interval int64, cb func(written int64, total int64)) *ProgressReader {
	return &ProgressReader{
		Reader:         r,
		Total:          total,
		OnProgress:     cb,
		totalRead:      offset,
		reportInterval: interval,
	}
}

func (pr *ProgressReader) Read(p []byte) (int, error) {
	n, err := pr.Reader.Read(p)
	if n > 0 {
		pr.totalRead += int64(n)
		pr.lastReport += int64(n)

		if pr.lastReport >= pr.reportInterval && pr.OnProgress != nil {
			pr.OnProgress(pr.totalRead, pr.Total)
			pr.lastReport = 0
		}
	}

	return n, err
}
