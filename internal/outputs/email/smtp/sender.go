package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/hilstonwill/contact-api/internal/outputs/email"
	mail "github.com/wneessen/go-mail"
)

// Config holds the transport settings for a Sender.
type Config struct {
	Host               string
	Port               int
	Username           string
	Password           string
	TLSMode            string
	InsecureSkipVerify bool
	// Timeout bounds dialing and each SMTP command. Zero keeps the go-mail default.
	Timeout time.Duration
}

type Sender struct {
	cfg  Config
	mode TLSMode
}

// NewSender creates an SMTP sender. The TLS mode is resolved once here so a
// bad value fails at startup instead of on the first submission.
func NewSender(cfg Config) (*Sender, error) {
	if err := ValidateConfig(cfg.Host, cfg.Port); err != nil {
		return nil, err
	}
	mode, err := resolveTLSMode(cfg.TLSMode, cfg.Host, cfg.Port)
	if err != nil {
		return nil, err
	}
	return &Sender{cfg: cfg, mode: mode}, nil
}

// TLSMode determines how the SMTP client should negotiate TLS.
type TLSMode string

const (
	// TLSModeAuto picks implicit TLS on 465, cleartext for local sinks and
	// opportunistic STARTTLS otherwise.
	TLSModeAuto TLSMode = "auto"
	// TLSModeDisabled forces cleartext SMTP.
	TLSModeDisabled TLSMode = "disabled"
	// TLSModeStartTLS requires STARTTLS on the SMTP connection.
	TLSModeStartTLS TLSMode = "starttls"
	// TLSModeOpportunistic upgrades with STARTTLS only if the server offers it.
	TLSModeOpportunistic TLSMode = "opportunistic"
	// TLSModeImplicit uses implicit TLS (SMTPS), typically on port 465.
	TLSModeImplicit TLSMode = "implicit"
)

// Mode reports the resolved TLS mode.
func (s *Sender) Mode() TLSMode {
	return s.mode
}

func (s *Sender) Send(ctx context.Context, message email.Message) error {
	if message.From == "" {
		message.From = s.cfg.Username
	}
	if ctx == nil {
		ctx = context.Background()
	}

	m, err := buildMsg(message)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func buildMsg(message email.Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(message.From); err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", message.From, err)
	}
	if err := m.ToFromString(message.To); err != nil {
		return nil, fmt.Errorf("invalid to address(es) %q: %w", message.To, err)
	}
	// Visitor addresses are only checked for presence upstream. One that does
	// not parse is left out of Reply-To; it still appears in the body.
	if message.ReplyTo != "" {
		_ = m.ReplyTo(message.ReplyTo)
	}
	m.Subject(message.Subject)
	m.SetDate()
	m.SetMessageID()
	m.SetBodyString(mail.TypeTextPlain, message.Body)
	return m, nil
}

func (s *Sender) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		// Allow self-signed or otherwise invalid TLS certs when explicitly configured.
		mail.WithTLSConfig(&tls.Config{
			ServerName:         s.cfg.Host,
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: s.cfg.InsecureSkipVerify,
		}),
	}
	if s.cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(s.cfg.Timeout))
	}

	switch s.mode {
	case TLSModeDisabled:
		opts = append(opts, mail.WithTLSPortPolicy(mail.NoTLS))
	case TLSModeStartTLS:
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	case TLSModeOpportunistic:
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSOpportunistic))
	case TLSModeImplicit:
		opts = append(opts, mail.WithSSL())
	}

	if s.cfg.Username != "" {
		opts = append(
			opts,
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
			mail.WithSMTPAuth(mail.SMTPAuthAutoDiscover),
		)
	}
	return opts
}

// resolveTLSMode returns the configured TLS behavior, falling back to host and port defaults.
func resolveTLSMode(raw string, host string, port int) (TLSMode, error) {
	mode, err := parseTLSMode(raw)
	if err != nil {
		return "", err
	}
	if mode != TLSModeAuto {
		return mode, nil
	}
	switch {
	case port == 465:
		return TLSModeImplicit, nil
	case isLocalDevSMTPHost(host):
		return TLSModeDisabled, nil
	default:
		return TLSModeOpportunistic, nil
	}
}

// parseTLSMode normalizes the TLS mode string and validates supported values.
func parseTLSMode(mode string) (TLSMode, error) {
	normalized := strings.TrimSpace(strings.ToLower(mode))
	if normalized == "" || normalized == string(TLSModeAuto) {
		return TLSModeAuto, nil
	}
	switch normalized {
	case "disabled", "off", "none":
		return TLSModeDisabled, nil
	case "starttls", "start_tls":
		return TLSModeStartTLS, nil
	case "opportunistic":
		return TLSModeOpportunistic, nil
	case "implicit", "smtptls", "smtp_tls", "ssl":
		return TLSModeImplicit, nil
	default:
		return "", fmt.Errorf("invalid smtp tls mode %q (expected: auto, disabled/off/none, starttls/start_tls, opportunistic, implicit/smtptls/smtp_tls/ssl)", mode)
	}
}

func ValidateConfig(host string, port int) error {
	if strings.TrimSpace(host) == "" {
		return fmt.Errorf("smtp host is required")
	}
	if port <= 0 || port > 65535 {
		return fmt.Errorf("smtp port must be between 1 and 65535")
	}
	return nil
}

// isLocalDevSMTPHost reports whether host is a local SMTP sink such as Mailpit,
// which speaks cleartext SMTP.
func isLocalDevSMTPHost(host string) bool {
	host = strings.TrimSpace(strings.ToLower(host))
	if host == "" {
		return false
	}
	if host == "localhost" || host == "mailpit" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return true
	}
	return false
}
