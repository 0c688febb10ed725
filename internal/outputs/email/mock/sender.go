package mock

import (
	"context"
	"sync"

	"github.com/hilstonwill/contact-api/internal/outputs/email"
)

// Sender records every message it is asked to send. When Err is set the
// message is still counted as an attempt but not recorded as sent.
type Sender struct {
	mu       sync.Mutex
	Messages []email.Message
	Attempts int
	Err      error
}

func (s *Sender) Send(ctx context.Context, message email.Message) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Attempts++
	if s.Err != nil {
		return s.Err
	}
	s.Messages = append(s.Messages, message)
	return nil
}

func (s *Sender) Sent() []email.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]email.Message, len(s.Messages))
	copy(out, s.Messages)
	return out
}
