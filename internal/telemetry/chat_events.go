package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const chatTracerName = "localmind/chat"

// StartGenerationSpan opens the span covering one streamed generation
func StartGenerationSpan(ctx context.Context, conversationID, generationID, model string) (context.Context, trace.Span) {
	return otel.Tracer(chatTracerName).Start(ctx, "chat.generation",
		trace.WithAttributes(
			attribute.String("chat.conversation_id", conversationID),
			attribute.String("chat.generation_id", generationID),
			attribute.String("gen_ai.request.model", model),
		),
	)
}

// EndGenerationSpan records the outcome and closes the span
func EndGenerationSpan(span trace.Span, outcome string, chunks int, err error) {
	span.SetAttributes(
		attribute.String("chat.outcome", outcome),
		attribute.Int("chat.chunks", chunks),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
