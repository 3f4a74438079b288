// Package observability installs the process-wide logging setup: plain
// text/json slog handlers, or an OTLP log pipeline bridged through otelslog.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"golang.org/x/term"
)

// DefaultFormat picks text output for interactive terminals and json
// otherwise, so piped output stays machine-readable.
func DefaultFormat() string {
	if term.IsTerminal(int(os.Stderr.Fd())) {
		return "text"
	}
	return "json"
}

// Instrument installs the default slog logger for the given level and format
// (text, json or otlp). The returned shutdown function flushes any buffered
// log export; for the plain formats it is a no-op.
func Instrument(level slog.Level, format string) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	switch format {
	case "text":
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return noop, nil
	case "json":
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return noop, nil
	case "otlp":
		provider, err := newLoggerProvider(context.Background(), level)
		if err != nil {
			return nil, fmt.Errorf("building otlp log pipeline: %w", err)
		}
		slog.SetDefault(otelslog.NewLogger("domaindoctor", otelslog.WithLoggerProvider(provider)))
		return provider.Shutdown, nil
	default:
		return nil, fmt.Errorf("unsupported log format: %s", format)
	}
}

// newLoggerProvider builds the OTLP export pipeline: exporter, batch
// processor, minimum-severity filter.
func newLoggerProvider(ctx context.Context, level slog.Level) (*sdklog.LoggerProvider, error) {
	exporter, err := newLogExporter(ctx)
	if err != nil {
		return nil, err
	}

	var processor sdklog.Processor = sdklog.NewBatchProcessor(exporter)
	processor = minsev.NewLogProcessor(processor, severity(level))

	return sdklog.NewLoggerProvider(sdklog.WithProcessor(processor)), nil
}

// newLogExporter selects the exporter from the standard OTEL environment:
// grpc or http/protobuf per OTEL_EXPORTER_OTLP_PROTOCOL, and a stdout dump
// when no collector endpoint is configured at all.
func newLogExporter(ctx context.Context) (sdklog.Exporter, error) {
	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") == "" && os.Getenv("OTEL_EXPORTER_OTLP_LOGS_ENDPOINT") == "" {
		return stdoutlog.New()
	}
	if os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL") == "grpc" {
		return otlploggrpc.New(ctx)
	}
	return otlploghttp.New(ctx)
}

func severity(level slog.Level) minsev.Severity {
	switch {
	case level >= slog.LevelError:
		return minsev.SeverityError
	case level >= slog.LevelWarn:
		return minsev.SeverityWarn
	case level >= slog.LevelInfo:
		return minsev.SeverityInfo
	default:
		return minsev.SeverityDebug
	}
}
