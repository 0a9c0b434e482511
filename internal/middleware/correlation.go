package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/localmind/backend/internal/util"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const baggageCorrelationID = "correlation_id"

// CorrelationMiddleware propagates X-Correlation-ID, falling back to the request ID.
// The ID goes into trace baggage so detached work (reply persistence) keeps it.
// Must run after RequestIDMiddleware.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader("X-Correlation-ID")
		if correlationID == "" {
			correlationID = RequestID(c)
		}
		if correlationID == "" {
			c.Next()
			return
		}

		c.Set(baggageCorrelationID, correlationID)
		c.Header("X-Correlation-ID", correlationID)

		ctx := c.Request.Context()
		if span := trace.SpanFromContext(ctx); span.IsRecording() {
			span.SetAttributes(attribute.String("trace.correlation_id", correlationID))
		}
		if member, err := baggage.NewMember(baggageCorrelationID, correlationID); err == nil {
			b, err := baggage.FromContext(ctx).SetMember(member)
			if err == nil {
				ctx = baggage.ContextWithBaggage(ctx, b)
			}
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// SpanEnrichmentMiddleware tags the server span once the handler has run, when the
// caller's identity and the route params are known. Must run inside TracingMiddleware.
func SpanEnrichmentMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		if userID := c.GetString(util.ContextUserID); userID != "" {
			span.SetAttributes(attribute.String("user.id", userID))
		}
		if id := c.Param("id"); id != "" {
			span.SetAttributes(attribute.String("chat.conversation_id", id))
		}
		if id := c.Param("generationId"); id != "" {
			span.SetAttributes(attribute.String("chat.generation_id", id))
		}

		for _, ginErr := range c.Errors {
			if ginErr.Err != nil {
				span.RecordError(ginErr.Err)
			}
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			span.SetStatus(codes.Error, "Server error")
		case status >= 400 && status != 404:
			span.SetStatus(codes.Error, "Client error")
		}

		if size := c.Writer.Size(); size > 0 {
			span.SetAttributes(attribute.Int64("http.response.size_bytes", int64(size)))
		}
	}
}

// GetCorrelationIDFromContext extracts the correlation ID from trace baggage
func GetCorrelationIDFromContext(ctx context.Context) string {
	return baggage.FromContext(ctx).Member(baggageCorrelationID).Value()
}
