package tracing

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	heralderrors "github.com/mrz1836/herald/internal/errors"
)

func readRecords(t *testing.T, path string) []SpanRecord {
	t.Helper()
	f, err := os.Open(path) //#nosec G304 -- test path
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	var records []SpanRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var r SpanRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		records = append(records, r)
	}
	require.NoError(t, scanner.Err())
	return records
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled ignores everything", Config{Exporter: "bogus"}, false},
		{"file needs path", Config{Enabled: true, Exporter: ExporterFile}, true},
		{"file with path", Config{Enabled: true, Exporter: ExporterFile, FilePath: "/tmp/t.jsonl"}, false},
		{"stdout", Config{Enabled: true, Exporter: ExporterStdout}, false},
		{"otlp", Config{Enabled: true, Exporter: ExporterOTLP}, false},
		{"none", Config{Enabled: true, Exporter: ExporterNone}, false},
		{"unknown", Config{Enabled: true, Exporter: "zipkin"}, true},
		{"sample rate too high", Config{Enabled: true, Exporter: ExporterNone, SampleRate: 2}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr {
				require.ErrorIs(t, err, heralderrors.ErrConfigInvalidTracing)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestNewProvider_Disabled(t *testing.T) {
	p, err := NewProvider(context.Background(), DefaultConfig())
	require.NoError(t, err)
	assert.False(t, p.Enabled())

	_, span := p.Tracer().Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProvider_FileExporterWritesRunTree(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces", "herald.jsonl")
	p, err := NewProvider(context.Background(), Config{
		Enabled:  true,
		Exporter: ExporterFile,
		FilePath: path,
	})
	require.NoError(t, err)
	assert.True(t, p.Enabled())

	ctx, run := p.Tracer().Start(context.Background(), SpanRun,
		trace.WithAttributes(attribute.String(AttrRunID, "run-1")))
	stepCtx, step := p.Tracer().Start(ctx, SpanPrefixStep+"publish-confluence")
	_, call := StartAdapterSpan(stepCtx, "confluence", "create page")
	EndSpan(call, heralderrors.ErrAdapter)
	step.End()
	run.End()

	require.NoError(t, p.Shutdown(context.Background()))

	records := readRecords(t, path)
	require.Len(t, records, 3)

	byName := make(map[string]SpanRecord, len(records))
	for _, r := range records {
		byName[r.Name] = r
	}
	root := byName[SpanRun]
	child := byName[SpanPrefixStep+"publish-confluence"]
	adapter := byName[SpanPrefixAdapter+"confluence.create page"]

	assert.Equal(t, "run-1", root.Attributes[AttrRunID])
	assert.Empty(t, root.ParentSpanID)
	assert.Equal(t, root.SpanID, child.ParentSpanID)
	assert.Equal(t, child.SpanID, adapter.ParentSpanID)
	assert.Equal(t, root.TraceID, adapter.TraceID)
	assert.Equal(t, "ERROR", adapter.Status)
	assert.Equal(t, "confluence", adapter.Attributes[AttrAdapter])
	assert.Contains(t, adapter.Events, "exception")
}

func TestNewProvider_InvalidConfig(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: true, Exporter: "zipkin"})
	require.ErrorIs(t, err, heralderrors.ErrConfigInvalidTracing)
}

func TestFileExporter_AppendsAndCloses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spans.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"earlier"}`+"\n"), 0o600))

	exporter, err := NewFileExporter(path)
	require.NoError(t, err)

	start := time.Date(2026, 1, 12, 10, 0, 0, 0, time.UTC)
	stub := tracetest.SpanStub{
		Name:      "pipeline.step.send-email",
		StartTime: start,
		EndTime:   start.Add(1500 * time.Microsecond),
		Status:    sdktrace.Status{Code: codes.Ok},
	}
	require.NoError(t, exporter.ExportSpans(context.Background(), []sdktrace.ReadOnlySpan{stub.Snapshot()}))
	require.NoError(t, exporter.ExportSpans(context.Background(), nil))
	require.NoError(t, exporter.Shutdown(context.Background()))
	require.NoError(t, exporter.Shutdown(context.Background()))

	records := readRecords(t, path)
	require.Len(t, records, 2)
	assert.Equal(t, "earlier", records[0].Name)
	assert.Equal(t, "OK", records[1].Status)
	assert.InDelta(t, 1.5, records[1].DurationMs, 0.001)

	err = exporter.ExportSpans(context.Background(), []sdktrace.ReadOnlySpan{stub.Snapshot()})
	require.ErrorIs(t, err, os.ErrClosed)
}
