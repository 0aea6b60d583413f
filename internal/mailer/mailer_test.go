package mailer

import (
	"bytes"
	"context"
	"errors"
	"testing"

	emailverifier "github.com/AfterShip/email-verifier"
	"github.com/go-gomail/gomail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeSender) DialAndSend(m ...*gomail.Message) error {
	f.sent = append(f.sent, m...)
	return f.err
}

type fakeVerifier struct {
	result *emailverifier.Result
	err    error
}

func (f fakeVerifier) Verify(string) (*emailverifier.Result, error) { return f.result, f.err }

func validResult() *emailverifier.Result {
	return &emailverifier.Result{Syntax: emailverifier.Syntax{Valid: true}, Reachable: "unknown"}
}

var smtpConfig = Config{Host: "smtp.example.com", Port: 587, User: "coach@example.com", Pass: "secret"}

func TestSendReportAttachesPDF(t *testing.T) {
	sender := &fakeSender{}
	m := NewWith(smtpConfig, sender, fakeVerifier{result: validResult()})

	err := m.SendReport(context.Background(), "anna@example.org", "Anna", "health_plan_20240101_x.pdf", []byte("%PDF-1.3 test"))
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	var buf bytes.Buffer
	_, err = sender.sent[0].WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()
	assert.Contains(t, raw, "To: anna@example.org")
	assert.Contains(t, raw, "From: coach@example.com")
	assert.Contains(t, raw, `filename="health_plan_20240101_x.pdf"`)
	assert.Contains(t, raw, "application/pdf")
}

func TestSendReportRejectsBadAddresses(t *testing.T) {
	cases := map[string]*emailverifier.Result{
		"syntax":      {Syntax: emailverifier.Syntax{Valid: false}},
		"disposable":  {Syntax: emailverifier.Syntax{Valid: true}, Disposable: true},
		"unreachable": {Syntax: emailverifier.Syntax{Valid: true}, Reachable: "invalid"},
	}
	for name, res := range cases {
		t.Run(name, func(t *testing.T) {
			sender := &fakeSender{}
			m := NewWith(smtpConfig, sender, fakeVerifier{result: res})
			err := m.SendReport(context.Background(), "x@y.z", "X", "r.pdf", nil)
			var addrErr *AddressError
			assert.True(t, errors.As(err, &addrErr))
			assert.Empty(t, sender.sent)
		})
	}
}

func TestSendReportNotConfigured(t *testing.T) {
	m := NewWith(Config{}, &fakeSender{}, fakeVerifier{result: validResult()})
	assert.False(t, m.Configured())
	assert.ErrorIs(t, m.SendReport(context.Background(), "a@b.c", "A", "r.pdf", nil), ErrNotConfigured)

	var nilMailer *Mailer
	assert.False(t, nilMailer.Configured())
}

func TestSendReportPropagatesSendFailure(t *testing.T) {
	sender := &fakeSender{err: errors.New("connection refused")}
	m := NewWith(smtpConfig, sender, fakeVerifier{result: validResult()})
	err := m.SendReport(context.Background(), "a@b.c", "A", "r.pdf", []byte("x"))
	assert.ErrorContains(t, err, "connection refused")
}

func TestVerifierError(t *testing.T) {
	m := NewWith(smtpConfig, &fakeSender{}, fakeVerifier{err: errors.New("dns down")})
	assert.ErrorContains(t, m.VerifyAddress("a@b.c"), "dns down")
}
