package middleware

import (
	"errors"
	"strconv"

	"bizdir/internal/models"
	"bizdir/internal/observability"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware opens a server span per request and exposes its trace id
// as the X-Trace-ID header and the traceID local. Moderation routes also tag
// the span with the entry under review.
func TracingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := otel.GetTextMapPropagator().Extract(c.UserContext(), propagation.HeaderCarrier(c.GetReqHeaders()))

		ctx, span := observability.Tracer.Start(ctx, c.Method()+" "+c.Path(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Method()),
				attribute.String("http.path", c.Path()),
				attribute.String("http.ip", c.IP()),
			),
		)
		defer span.End()

		traceID := span.SpanContext().TraceID().String()
		c.Locals("traceID", traceID)
		c.Locals("spanID", span.SpanContext().SpanID().String())
		c.Set("X-Trace-ID", traceID)
		if rid, ok := c.Locals("requestid").(string); ok {
			span.SetAttributes(attribute.String("request.id", rid))
		}
		c.SetUserContext(ctx)

		err := c.Next()

		// The matched route is only known once the handler chain has run.
		span.SetName(c.Method() + " " + routeTemplate(c))
		span.SetAttributes(attribute.Int("http.status_code", c.Response().StatusCode()))
		span.SetAttributes(approvalAttributes(c)...)
		if uid, ok := c.Locals("userID").(uint); ok {
			span.SetAttributes(attribute.Int64("user.id", int64(uid)))
		}
		recordOutcome(span, c, err)
		return err
	}
}

// approvalAttributes reads the :kind/:id params of the approval and listing
// routes.
func approvalAttributes(c *fiber.Ctx) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if kind, err := models.ParseApprovableType(c.Params("kind")); err == nil {
		attrs = append(attrs, attribute.String("approval.kind", string(kind)))
	}
	if id, err := strconv.ParseUint(c.Params("id"), 10, 64); err == nil {
		attrs = append(attrs, attribute.Int64("approval.id", int64(id)))
	}
	return attrs
}

// recordOutcome marks the span failed for server errors only. Client errors
// such as a version conflict keep their code as an attribute.
func recordOutcome(span trace.Span, c *fiber.Ctx, err error) {
	code, _ := c.Locals(models.ErrorCodeLocal).(string)
	if code == "" && err != nil {
		code = models.ErrorCode(err)
	}
	if code != "" {
		span.SetAttributes(attribute.String("error.code", code))
	}
	if err != nil {
		span.RecordError(err)
	}
	var fe *fiber.Error
	status := c.Response().StatusCode()
	if errors.As(err, &fe) {
		status = fe.Code
	}
	if status >= fiber.StatusInternalServerError || code == models.CodeInternal {
		span.SetStatus(codes.Error, code)
	}
}

// routeTemplate keeps span names low-cardinality by preferring the matched route pattern.
func routeTemplate(c *fiber.Ctx) string {
	if r := c.Route(); r != nil && r.Path != "" && r.Path != "/" {
		return r.Path
	}
	return c.Path()
}
