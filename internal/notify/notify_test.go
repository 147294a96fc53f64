package notify

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"

	"github.com/bitafam/terrenos/internal/domain"
)

type fakeSender struct {
	msgs []*gomail.Message
	err  error
}

func (f *fakeSender) DialAndSend(m ...*gomail.Message) error {
	f.msgs = append(f.msgs, m...)
	return f.err
}

func sample() (domain.Listing, domain.Inquiry) {
	return domain.Listing{ID: "l1", Title: "Lote A", Location: "Ayacucho"},
		domain.Inquiry{ID: "i1", Name: "Ana", Email: "ana@example.com", Phone: "999", Message: "¿Sigue disponible?"}
}

func TestNewSMTPNotifier_RequiresRecipient(t *testing.T) {
	if _, err := NewSMTPNotifier("smtp", 587, "u", "p", "from@x.com", " "); err == nil {
		t.Fatalf("expected error without recipient")
	}
	n, err := NewSMTPNotifier("smtp", 587, "u", "p", "", "inbox@x.com")
	if err != nil {
		t.Fatalf("NewSMTPNotifier: %v", err)
	}
	if n.from != "inbox@x.com" {
		t.Fatalf("from should default to recipient, got %q", n.from)
	}
}

func TestSMTPNotifier_BuildsMessage(t *testing.T) {
	fs := &fakeSender{}
	n := &SMTPNotifier{sender: fs, from: "noreply@x.com", to: "ventas@x.com"}
	l, in := sample()

	if err := n.NotifyInquiry(context.Background(), l, in); err != nil {
		t.Fatalf("NotifyInquiry: %v", err)
	}
	if len(fs.msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(fs.msgs))
	}
	m := fs.msgs[0]
	if got := m.GetHeader("To"); len(got) != 1 || got[0] != "ventas@x.com" {
		t.Fatalf("To = %v", got)
	}
	if got := m.GetHeader("Subject"); len(got) != 1 || got[0] != "Consulta sobre Lote A" {
		t.Fatalf("Subject = %v", got)
	}
	if got := m.GetHeader("Reply-To"); len(got) != 1 || !strings.Contains(got[0], "ana@example.com") {
		t.Fatalf("Reply-To = %v", got)
	}

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	// Body is quoted-printable; plain ASCII parts survive verbatim.
	if !strings.Contains(buf.String(), "Nombre: Ana") {
		t.Fatalf("body missing inquirer name:\n%s", buf.String())
	}
}

func TestSMTPNotifier_PropagatesSendError(t *testing.T) {
	fs := &fakeSender{err: errors.New("connection refused")}
	n := &SMTPNotifier{sender: fs, from: "a@x.com", to: "b@x.com"}
	l, in := sample()
	err := n.NotifyInquiry(context.Background(), l, in)
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("expected wrapped send error, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fs.msgs = nil
	if err := n.NotifyInquiry(ctx, l, in); err == nil || len(fs.msgs) != 0 {
		t.Fatalf("canceled context must not send (err=%v, sent=%d)", err, len(fs.msgs))
	}
}

func TestLogNotifier_Logs(t *testing.T) {
	var buf bytes.Buffer
	ctx := zerolog.New(&buf).WithContext(context.Background())
	l, in := sample()
	if err := (LogNotifier{}).NotifyInquiry(ctx, l, in); err != nil {
		t.Fatalf("NotifyInquiry: %v", err)
	}
	if !strings.Contains(buf.String(), `"inquiry_id":"i1"`) {
		t.Fatalf("expected inquiry id in log, got %s", buf.String())
	}
}
