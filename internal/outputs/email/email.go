package email

import "context"

// Message is a single outbound plain-text email.
// From may carry a display name ("Name <addr>"); an empty From lets the
// sender fall back to its authenticated account.
type Message struct {
	From    string
	To      string
	ReplyTo string
	Subject string
	Body    string
}

type Sender interface {
	Send(ctx context.Context, message Message) error
}
