package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// CARDINALITY BEST PRACTICES:
//
// High cardinality attributes (unique values per request) should NEVER be added to spans
// that contribute to metrics, as they create unbounded metric series and can cause:
// - Memory exhaustion
// - Query performance degradation
// - Storage cost explosion
//
// AVOID these as span attributes:
// - Search queries, result titles, file names, download paths
// - Info-hashes, checksums, URLs with unique parameters
// - Timestamps, random values, UUIDs
// - Error messages with dynamic content
//
// SAFE attributes (bounded cardinality):
// - Operation types (limited set: "add", "delete", "pause")
// - Status values (limited set: "success", "error", "timeout")
// - Endpoint paths (limited set of API routes)
// - Component names (limited set: "database", "daemon", "downloader")
//
// For debugging, high-cardinality data should be:
// - Added to span status/events (not attributes)
// - Logged with correlation IDs
// - Stored in trace context for propagation

// InstrumentedFunc represents a function that can be instrumented.
type InstrumentedFunc func(ctx context.Context) error

// InstrumentOperation instruments a generic operation with telemetry.
func (t *Telemetry) InstrumentOperation(ctx context.Context, operationName, component string, fn InstrumentedFunc) error {
	if t == nil || t.tracer == nil {
		return fn(ctx)
	}

	start := time.Now()
	ctx, span := t.tracer.Start(ctx, operationName)

	defer span.End()

	span.SetAttributes(
		attribute.String("component", component),
		attribute.String("operation", operationName),
	)

	err := fn(ctx)
	duration := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"

		span.SetAttributes(
			attribute.Bool("error", true),
			// Note: error.message is intentionally NOT added as attribute to prevent
			// high cardinality from unique error messages. Full error is in span status.
		)
		span.SetStatus(codes.Error, err.Error())
	}

	span.SetAttributes(
		attribute.String("status", status),
		attribute.Float64("duration_seconds", duration.Seconds()),
	)

	return err
}

// InstrumentDBOperation instruments database operations.
func (t *Telemetry) InstrumentDBOperation(ctx context.Context, operation string, fn InstrumentedFunc) error {
	if t == nil {
		return fn(ctx)
	}

	start := time.Now()
	err := t.InstrumentOperation(ctx, "db_"+operation, "database", fn)
	duration := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
	}

	t.RecordDBOperation(operation, status, duration)

	return err
}

// InstrumentDaemonOperation instruments torrent daemon operations.
func (t *Telemetry) InstrumentDaemonOperation(ctx context.Context, operation string, fn InstrumentedFunc) error {
	if t == nil {
		return fn(ctx)
	}

	err := t.InstrumentOperation(ctx, "daemon_"+operation, "daemon", func(ctx context.Context) error {
		ctx, span := t.tracer.Start(ctx, "daemon_"+operation)
		defer span.End()

		span.SetAttributes(
			attribute.String("daemon.operation", operation),
		)

		return fn(ctx)
	})

	status := "success"
	if err != nil {
		status = "error"
	}

	t.RecordDaemonOperation(operation, status)

	return err
}

// InstrumentDownload instruments direct download operations.
func (t *Telemetry) InstrumentDownload(ctx context.Context, fn InstrumentedFunc) error {
	if t == nil {
		return fn(ctx)
	}

	start := time.Now()

	t.IncrementActiveDownloads()
	defer t.DecrementActiveDownloads()

	err := t.InstrumentOperation(ctx, "download", "downloader", func(ctx context.Context) error {
		ctx, span := t.tracer.Start(ctx, "download")
		defer span.End()

		// Note: the title and target path are intentionally NOT added as attributes
		// to prevent high cardinality issues. They are available in logs if needed.
		span.SetAttributes(
			attribute.String("download.type", "direct"),
		)

		return fn(ctx)
	})

	duration := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
	}

	t.RecordDownload(status, duration)

	return err
}

// InstrumentAcquisition instruments one torrent acquisition end to end.
func (t *Telemetry) InstrumentAcquisition(ctx context.Context, fn InstrumentedFunc) error {
	if t == nil {
		return fn(ctx)
	}

	t.IncrementActiveAcquisitions()
	defer t.DecrementActiveAcquisitions()

	return t.InstrumentOperation(ctx, "acquisition", "acquirer", fn)
}
