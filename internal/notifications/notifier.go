package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/wneessen/go-mail"

	"github.com/zazmarga/online-cinema/pkg/config"
	"github.com/zazmarga/online-cinema/pkg/logger"
)

const paymentSubject = "Payment successful"

// Notifier delivers user-facing messages about completed payments.
type Notifier interface {
	SendPaymentConfirmation(ctx context.Context, email, link, message string) error
}

type mailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPNotifier sends plain-text mail through the configured relay.
type SMTPNotifier struct {
	sender mailSender
	from   string
}

// NewSMTPNotifier builds a notifier from SMTP settings.
func NewSMTPNotifier(cfg config.SMTPConfig) (*SMTPNotifier, error) {
	if !cfg.Enabled() {
		return nil, errors.New("smtp host is required")
	}
	opts := []mail.Option{mail.WithPort(cfg.Port)}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	if cfg.UseTLS {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPNotifier{sender: client, from: cfg.From}, nil
}

func (n *SMTPNotifier) SendPaymentConfirmation(ctx context.Context, email, link, message string) error {
	msg, err := buildMessage(n.from, email, link, message)
	if err != nil {
		return err
	}
	if err := n.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func buildMessage(from, to, link, message string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", from, err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	msg.Subject(paymentSubject)
	msg.SetBodyString(mail.TypeTextPlain, message+"\n\n"+link+"\n")
	return msg, nil
}

// LogNotifier records notifications in the log instead of sending them.
type LogNotifier struct {
	logg *logger.Logger
}

func NewLogNotifier(logg *logger.Logger) *LogNotifier {
	if logg == nil {
		logg = logger.Nop()
	}
	return &LogNotifier{logg: logg}
}

func (n *LogNotifier) SendPaymentConfirmation(ctx context.Context, email, link, message string) error {
	n.logg.Info(n.logg.WithFields(ctx, map[string]any{
		"email": email,
		"link":  link,
	}), "notification: "+message)
	return nil
}
