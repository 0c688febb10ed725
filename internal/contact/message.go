package contact

import "github.com/hilstonwill/contact-api/internal/outputs/email"

const (
	subjectPrefix = "Contact from portfolio - "
	noName        = "No name"
	anonymous     = "Anonymous"
)

// BuildMessage turns a submission into the message relayed to the site owner.
// Replies go straight back to the visitor.
func BuildMessage(s Submission, from, to string) email.Message {
	subjectName := s.Name
	if subjectName == "" {
		subjectName = noName
	}
	signature := s.Name
	if signature == "" {
		signature = anonymous
	}
	return email.Message{
		From:    from,
		To:      to,
		ReplyTo: s.Email,
		Subject: subjectPrefix + subjectName,
		Body:    s.Message + "\n\n— " + signature + " (" + s.Email + ")",
	}
}
