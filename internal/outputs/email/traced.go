package email

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/hilstonwill/contact-api/internal/outputs/email"

type tracedSender struct {
	next   Sender
	tracer trace.Tracer
}

// Traced wraps a Sender so that every send is recorded as a span.
// Addresses are not attached to the span; only whether a reply-to was present.
func Traced(next Sender) Sender {
	return &tracedSender{next: next, tracer: otel.Tracer(tracerName)}
}

func (s *tracedSender) Send(ctx context.Context, message Message) error {
	ctx, span := s.tracer.Start(ctx, "email.Send", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.Bool("email.reply_to.present", message.ReplyTo != ""),
		attribute.Int("email.body.bytes", len(message.Body)),
	)

	if err := s.next.Send(ctx, message); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}
