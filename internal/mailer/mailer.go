// Package mailer sends HTML notification emails over SMTP.
package mailer

import (
	"context"
	"fmt"
	"time"

	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/leanfinance/onboarding-service/internal/apperrors"
	"github.com/leanfinance/onboarding-service/internal/config"
	"github.com/leanfinance/onboarding-service/internal/observer"
	"github.com/leanfinance/onboarding-service/pkg/logger"
)

// Sender delivers one HTML email and returns its message id.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) (string, error)
}

// SMTPSender implements Sender over an SMTP submission endpoint.
type SMTPSender struct {
	cfg config.SMTPConfig
}

// NewSMTPSender creates an SMTP sender from configuration.
func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// Send builds and delivers one message. The connection is dialed per send;
// volume is a handful of emails per polling cycle.
func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody string) (string, error) {
	loggerCtx := logger.FromContext(ctx)

	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.cfg.FromName, s.cfg.FromEmail); err != nil {
		return "", apperrors.NewFatal(err, "invalid from address %q", s.cfg.FromEmail)
	}
	if err := msg.To(to); err != nil {
		return "", apperrors.NewFatal(err, "invalid recipient address %q", to)
	}
	msg.Subject(subject)
	msg.SetMessageID()
	msg.SetBodyString(gomail.TypeTextHTML, htmlBody)

	opts := []gomail.Option{
		gomail.WithPort(s.cfg.Port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(30 * time.Second),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.cfg.Username),
			gomail.WithPassword(s.cfg.Password),
		)
	}

	client, err := gomail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return "", apperrors.NewFatal(err, "failed to create SMTP client")
	}

	startTime := time.Now()
	sendErr := client.DialAndSendWithContext(ctx, msg)
	observer.ObserveExternalCallDuration("smtp", "send", time.Since(startTime), sendErr)
	if sendErr != nil {
		return "", fmt.Errorf("%w: smtp send to %s: %w", apperrors.ErrExternalAPI, to, sendErr)
	}

	messageID := msg.GetMessageID()
	loggerCtx.Info("Email sent",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("message_id", messageID))
	return messageID, nil
}
