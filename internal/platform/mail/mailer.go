// Copyright (c) 2026 Lucent. All rights reserved.
// Author: minh.vodang.dev@gmail.com

/*
Package mail delivers outbound identity emails (verification links, password
reset links).

The identity core treats delivery as fire-and-forget: a failed send is
logged, never surfaced to the caller, so response shapes cannot leak
whether an address exists or a mailbox bounced.
*/
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
)

// Sender is the narrow outbound-email contract consumed by the identity
// service. Implementations must be safe for concurrent use.
type Sender interface {

	// SendVerification delivers an email-verification link carrying the raw token.
	SendVerification(ctx context.Context, toEmail, rawToken string) error

	// SendPasswordReset delivers a password-reset link carrying the raw token.
	SendPasswordReset(ctx context.Context, toEmail, rawToken string) error
}

// # SMTP Sender

// SMTPSender delivers mail through a standard SMTP relay.
type SMTPSender struct {
	host       string
	port       string
	from       string
	auth       smtp.Auth
	appBaseURL string
}

// NewSMTPSender constructs an SMTP-backed [Sender].
func NewSMTPSender(host, port, username, password, from, appBaseURL string) *SMTPSender {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	return &SMTPSender{
		host:       host,
		port:       port,
		from:       from,
		auth:       auth,
		appBaseURL: appBaseURL,
	}
}

// SendVerification implements [Sender].
func (sender *SMTPSender) SendVerification(ctx context.Context, toEmail, rawToken string) error {
	link := fmt.Sprintf("%s/verify-email?token=%s", sender.appBaseURL, rawToken)
	body := "Confirm your email address by opening this link:\r\n\r\n" + link + "\r\n"
	return sender.deliver(toEmail, "Verify your Lucent account", body)
}

// SendPasswordReset implements [Sender].
func (sender *SMTPSender) SendPasswordReset(ctx context.Context, toEmail, rawToken string) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", sender.appBaseURL, rawToken)
	body := "Reset your password by opening this link:\r\n\r\n" + link + "\r\n"
	return sender.deliver(toEmail, "Reset your Lucent password", body)
}

// deliver assembles a minimal RFC 5322 message and hands it to the relay.
func (sender *SMTPSender) deliver(toEmail, subject, body string) error {
	message := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s",
		sender.from, toEmail, subject, body,
	)

	address := sender.host + ":" + sender.port
	if err := smtp.SendMail(address, sender.auth, sender.from, []string{toEmail}, []byte(message)); err != nil {
		return fmt.Errorf("mail: smtp delivery failed: %w", err)
	}

	return nil
}

// # Development Sender

// LogSender writes delivery events to the structured log instead of sending.
// Used in development and in tests where no relay is available.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender constructs a log-only [Sender].
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// SendVerification implements [Sender].
func (sender *LogSender) SendVerification(ctx context.Context, toEmail, rawToken string) error {
	sender.logger.InfoContext(ctx, "mail_verification_link",
		slog.String("to", toEmail),
		slog.String("token", rawToken),
	)
	return nil
}

// SendPasswordReset implements [Sender].
func (sender *LogSender) SendPasswordReset(ctx context.Context, toEmail, rawToken string) error {
	sender.logger.InfoContext(ctx, "mail_password_reset_link",
		slog.String("to", toEmail),
		slog.String("token", rawToken),
	)
	return nil
}
