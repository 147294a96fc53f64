// Package notify forwards listing inquiries to the marketplace inbox.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"

	"github.com/bitafam/terrenos/internal/domain"
)

// Notifier delivers an inquiry about a listing.
type Notifier interface {
	NotifyInquiry(ctx context.Context, l domain.Listing, in domain.Inquiry) error
}

// Sender is the part of *gomail.Dialer the SMTP notifier needs.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPNotifier e-mails inquiries to a fixed inbox. Replies go to the
// inquirer.
type SMTPNotifier struct {
	sender Sender
	from   string
	to     string
}

// NewSMTPNotifier dials host:port with the given credentials for every
// message.
func NewSMTPNotifier(host string, port int, username, password, from, to string) (*SMTPNotifier, error) {
	if strings.TrimSpace(to) == "" {
		return nil, errors.New("notify: recipient address is required")
	}
	if strings.TrimSpace(from) == "" {
		from = to
	}
	return &SMTPNotifier{
		sender: gomail.NewDialer(host, port, username, password),
		from:   from,
		to:     to,
	}, nil
}

// NotifyInquiry builds and sends the message.
func (n *SMTPNotifier) NotifyInquiry(ctx context.Context, l domain.Listing, in domain.Inquiry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", n.to)
	m.SetAddressHeader("Reply-To", in.Email, in.Name)
	m.SetHeader("Subject", "Consulta sobre "+l.Title)
	m.SetBody("text/plain", inquiryBody(l, in))
	if err := n.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("send inquiry mail: %w", err)
	}
	return nil
}

func inquiryBody(l domain.Listing, in domain.Inquiry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Terreno: %s (%s)\n", l.Title, l.ID)
	fmt.Fprintf(&b, "Ubicación: %s\n\n", l.Location)
	fmt.Fprintf(&b, "Nombre: %s\n", in.Name)
	fmt.Fprintf(&b, "Email: %s\n", in.Email)
	if in.Phone != "" {
		fmt.Fprintf(&b, "Teléfono: %s\n", in.Phone)
	}
	fmt.Fprintf(&b, "\n%s\n", in.Message)
	return b.String()
}

// LogNotifier records inquiries in the log instead of sending them. It is
// used when no SMTP server is configured.
type LogNotifier struct{}

// NotifyInquiry implements Notifier.
func (LogNotifier) NotifyInquiry(ctx context.Context, l domain.Listing, in domain.Inquiry) error {
	zerolog.Ctx(ctx).Info().
		Str("listing_id", l.ID).
		Str("inquiry_id", in.ID).
		Msg("inquiry received (smtp disabled)")
	return nil
}
