// Package notify delivers customer notifications.  Delivery failures are
// reported to the caller, which logs them; they never change booking or
// billing state.
package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	gomail "gopkg.in/gomail.v2"

	"github.com/iliyamo/booking-core/internal/logger"
)

// Channels a Delivery can target.
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// Delivery is one message to one contact.  Document is optional and is
// attached as DocumentName.
type Delivery struct {
	Channel      string
	Contact      string
	Subject      string
	Body         string
	Document     []byte
	DocumentName string
}

// Notifier sends deliveries.
type Notifier interface {
	Deliver(ctx context.Context, d Delivery) error
}

// SMTPConfig configures the SMTP notifier.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// SMTP sends e-mail through an SMTP relay.  Non-email channels are logged
// and skipped.
type SMTP struct {
	cfg    SMTPConfig
	dialer *gomail.Dialer
}

// NewSMTP returns an SMTP notifier.
func NewSMTP(cfg SMTPConfig) *SMTP {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
	return &SMTP{cfg: cfg, dialer: d}
}

func (s *SMTP) Deliver(ctx context.Context, d Delivery) error {
	if d.Channel != ChannelEmail {
		logger.InfoLogger.WithFields(logrus.Fields{"channel": d.Channel}).Info("notify: channel not supported by smtp, skipped")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.dialer.DialAndSend(s.message(d)); err != nil {
		return fmt.Errorf("notify: send to %s: %w", d.Contact, err)
	}
	logger.InfoLogger.WithFields(logrus.Fields{"to": d.Contact, "subject": d.Subject}).Info("notify: email sent")
	return nil
}

func (s *SMTP) message(d Delivery) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", d.Contact)
	m.SetHeader("Subject", d.Subject)
	m.SetBody("text/plain", d.Body)
	if len(d.Document) > 0 {
		doc := d.Document
		name := d.DocumentName
		if name == "" {
			name = "document"
		}
		m.Attach(name, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(doc)
			return err
		}))
	}
	return m
}

// Log writes deliveries to the info log instead of sending them.
type Log struct{}

func (Log) Deliver(_ context.Context, d Delivery) error {
	logger.InfoLogger.WithFields(logrus.Fields{
		"channel":        d.Channel,
		"to":             d.Contact,
		"subject":        d.Subject,
		"document_bytes": len(d.Document),
	}).Info("notify: delivery")
	return nil
}
