package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys.
const (
	AttrRunID          = "run.id"
	AttrRunStatus      = "run.status"
	AttrRunCancelled   = "run.cancelled"
	AttrPipelineName   = "pipeline.name"
	AttrPipelineSteps  = "pipeline.steps"
	AttrStepName       = "step.name"
	AttrStepIndex      = "step.index"
	AttrStepStatus     = "step.status"
	AttrCriticality    = "step.criticality"
	AttrAdapter        = "adapter.name"
	AttrAdapterOp      = "adapter.op"
	AttrAttempt        = "adapter.attempt"
	AttrHTTPStatusCode = "http.status_code"
	AttrReportVersion  = "report.version"
)

// Span names and prefixes.
const (
	SpanRun           = "pipeline.run"
	SpanPrefixStep    = "pipeline.step."
	SpanPrefixAdapter = "adapter."
)

// instrumentationName scopes spans started through the global provider.
const instrumentationName = "github.com/mrz1836/herald"

// StartAdapterSpan starts a span for one external call using the global
// provider, so it nests under the current step span.
func StartAdapterSpan(ctx context.Context, adapter, op string) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, SpanPrefixAdapter+adapter+"."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(AttrAdapter, adapter),
			attribute.String(AttrAdapterOp, op),
		),
	)
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
