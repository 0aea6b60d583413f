// Package mailer sends the generated health plan to the participant by e-mail.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	emailverifier "github.com/AfterShip/email-verifier"
	"github.com/go-gomail/gomail"
	"github.com/rs/zerolog"
)

const sendTimeout = 15 * time.Second

// ErrNotConfigured means no SMTP host or credentials are set.
var ErrNotConfigured = errors.New("SMTP configuration missing")

// AddressError is a rejected recipient address.
type AddressError struct {
	Address string
	Reason  string
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("cannot send to %s: %s", e.Address, e.Reason)
}

// Config holds the SMTP connection settings.
type Config struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// Sender delivers composed messages. *gomail.Dialer implements it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// AddressVerifier checks a recipient before sending. *emailverifier.Verifier implements it.
type AddressVerifier interface {
	Verify(email string) (*emailverifier.Result, error)
}

type Mailer struct {
	cfg      Config
	sender   Sender
	verifier AddressVerifier
}

// New builds a Mailer backed by gomail and email-verifier.
func New(cfg Config) *Mailer {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.User
	}
	return &Mailer{
		cfg:      cfg,
		sender:   gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass),
		verifier: emailverifier.NewVerifier().EnableAutoUpdateDisposable(),
	}
}

// NewWith builds a Mailer with explicit collaborators.
func NewWith(cfg Config, sender Sender, verifier AddressVerifier) *Mailer {
	if cfg.From == "" {
		cfg.From = cfg.User
	}
	return &Mailer{cfg: cfg, sender: sender, verifier: verifier}
}

// Configured reports whether SMTP settings are present.
func (m *Mailer) Configured() bool {
	return m != nil && m.cfg.Host != "" && m.cfg.User != "" && m.cfg.Pass != ""
}

// VerifyAddress rejects malformed, disposable and unreachable addresses.
func (m *Mailer) VerifyAddress(email string) error {
	ret, err := m.verifier.Verify(email)
	if err != nil {
		return fmt.Errorf("email verification failed: %w", err)
	}
	if !ret.Syntax.Valid {
		return &AddressError{Address: email, Reason: "invalid email address format"}
	}
	if ret.Disposable {
		return &AddressError{Address: email, Reason: "disposable email addresses are not allowed"}
	}
	if ret.Reachable == "false" || ret.Reachable == "invalid" {
		return &AddressError{Address: email, Reason: "email address is not reachable"}
	}
	return nil
}

// SendReport verifies to and mails the PDF as an attachment named filename.
func (m *Mailer) SendReport(ctx context.Context, to, recipientName, filename string, pdf []byte) error {
	if !m.Configured() {
		return ErrNotConfigured
	}
	if err := m.VerifyAddress(to); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "Your personal health plan - Functional Food & Longevity")
	msg.SetBody("text/html", fmt.Sprintf(`
		<html>
		<body style="font-family: Arial, sans-serif; line-height: 1.6;">
			<h2>Hi %s!</h2>
			<p>Your personal health plan is attached to this email as a PDF.</p>
			<p>It is a first taste of the full course in Functional Food and Longevity.</p>
			<hr>
			<p style="color: #666; font-size: 12px;">Automatic email from the Functional Food &amp; Longevity wizard</p>
		</body>
		</html>
	`, recipientName))
	msg.Attach(filename,
		gomail.SetHeader(map[string][]string{"Content-Type": {"application/pdf"}}),
		gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(pdf)
			return err
		}),
	)

	logger := zerolog.Ctx(ctx)
	errChan := make(chan error, 1)
	go func() {
		errChan <- m.sender.DialAndSend(msg)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			logger.Error().Err(err).Str("to", to).Msg("failed to send report email")
			return fmt.Errorf("send report email: %w", err)
		}
		logger.Info().Str("to", to).Str("file", filename).Msg("report email sent")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(sendTimeout):
		logger.Error().Str("to", to).Msg("timeout sending report email")
		return fmt.Errorf("email sending timeout")
	}
}
