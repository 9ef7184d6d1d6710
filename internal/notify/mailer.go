package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wneessen/go-mail"
)

// Email is a plain text message.
type Email struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// Mailer delivers composed emails.
type Mailer interface {
	Send(ctx context.Context, e Email) error
}

// LogMailer writes emails to the log instead of sending them.
type LogMailer struct {
	Logger *slog.Logger
}

// Send logs the email.
func (m LogMailer) Send(_ context.Context, e Email) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("email", slog.String("from", e.From), slog.String("to", strings.Join(e.To, ", ")),
		slog.String("subject", e.Subject), slog.String("body", e.Body))
	return nil
}

// SMTPMailer sends email through an SMTP relay.
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Send delivers the email. PLAIN auth is used when a username is set and
// STARTTLS whenever the relay offers it.
func (m SMTPMailer) Send(ctx context.Context, e Email) error {
	msg, err := newMsg(e)
	if err != nil {
		return err
	}

	opts := []mail.Option{mail.WithPort(m.Port), mail.WithTLSPolicy(mail.TLSOpportunistic)}
	if m.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.Username),
			mail.WithPassword(m.Password),
		)
	}
	client, err := mail.NewClient(m.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", strings.Join(e.To, ", "), err)
	}
	return nil
}

// newMsg composes the MIME message. Addresses are parsed and the subject is
// folded onto one line and Q-encoded, so no field can add a header.
func newMsg(e Email) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(singleLine(e.From)); err != nil {
		return nil, fmt.Errorf("sender %q: %w", e.From, err)
	}
	if err := msg.To(e.To...); err != nil {
		return nil, fmt.Errorf("recipients: %w", err)
	}
	msg.Subject(singleLine(e.Subject))
	msg.SetBodyString(mail.TypeTextPlain, e.Body)
	return msg, nil
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

func singleLine(s string) string {
	return lineBreaks.Replace(s)
}
