// Package contact relays contact-form submissions to the site owner by email.
package contact

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/hilstonwill/contact-api/internal/logging"
	"github.com/hilstonwill/contact-api/internal/outputs/email"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/hilstonwill/contact-api/internal/contact"

// Submission is one contact-form post. Trap is a honeypot field that humans
// never see; anything in it marks the post as coming from a bot.
type Submission struct {
	Name    string
	Email   string `validate:"required"`
	Message string `validate:"required"`
	Trap    string
}

// Outcome describes what Handle did with an accepted submission.
type Outcome int

const (
	// OutcomeDelivered means the message was handed to the mail service.
	OutcomeDelivered Outcome = iota + 1
	// OutcomeIgnored means the honeypot was filled and nothing was sent.
	OutcomeIgnored
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

type Config struct {
	// From is the fixed sender identity, optionally with a display name.
	From string
	// To is the fixed recipient.
	To string
}

type Handler struct {
	sender   email.Sender
	from     string
	to       string
	validate *validator.Validate
	tracer   trace.Tracer
}

func NewHandler(sender email.Sender, cfg Config) (*Handler, error) {
	if sender == nil {
		return nil, fmt.Errorf("email sender is required")
	}
	if cfg.To == "" {
		return nil, fmt.Errorf("recipient address is required")
	}
	return &Handler{
		sender:   sender,
		from:     cfg.From,
		to:       cfg.To,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		tracer:   otel.Tracer(tracerName),
	}, nil
}

// Handle validates a submission and relays it. It returns a *ValidationError
// when required fields are missing and a *DeliveryError when the mail service
// fails; in both cases nothing further is attempted.
func (h *Handler) Handle(ctx context.Context, s Submission) (Outcome, error) {
	ctx, span := h.tracer.Start(ctx, "contact.Handle")
	defer span.End()

	logger := logging.FromContext(ctx)

	if s.Trap != "" {
		span.SetAttributes(attribute.String("contact.outcome", OutcomeIgnored.String()))
		logger.Info("honeypot triggered, dropping submission")
		return OutcomeIgnored, nil
	}

	if err := h.check(s); err != nil {
		span.SetAttributes(attribute.String("contact.outcome", "rejected"))
		logger.Debug("submission rejected", "error", err)
		return 0, err
	}

	msg := BuildMessage(s, h.from, h.to)
	if err := h.sender.Send(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delivery failed")
		span.SetAttributes(attribute.String("contact.outcome", "failed"))
		logger.Error("error sending contact email", "error", err)
		return 0, &DeliveryError{Err: err}
	}

	span.SetAttributes(attribute.String("contact.outcome", OutcomeDelivered.String()))
	logger.Info("contact message delivered", "has_name", s.Name != "")
	return OutcomeDelivered, nil
}

func (h *Handler) check(s Submission) error {
	err := h.validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate submission: %w", err)
	}
	verr := &ValidationError{}
	for _, fe := range fieldErrs {
		verr.Fields = append(verr.Fields, fieldName(fe.StructField()))
	}
	return verr
}

func fieldName(structField string) string {
	switch structField {
	case "Email":
		return "email"
	case "Message":
		return "message"
	default:
		return structField
	}
}
