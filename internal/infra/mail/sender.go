package mail

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/gomail.v2"
)

var ErrNotConfigured = eris.New("mail: transport not configured")

// EmailSender relays operator notifications over SMTP. The dialer is built
// once; each message opens its own session so an idle connection never
// goes stale between leads.
type EmailSender struct {
	dialer *gomail.Dialer
	from   string
	to     []string
}

func NewEmailSender(cfg SMTPConfig) (*EmailSender, error) {
	to := cleanRecipients(cfg.To)
	if cfg.Host == "" || cfg.User == "" || cfg.Password == "" || len(to) == 0 {
		return nil, ErrNotConfigured
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	from := cfg.From
	if from == "" {
		from = cfg.User
	}

	// gomail switches to implicit TLS on port 465
	return &EmailSender{
		dialer: gomail.NewDialer(cfg.Host, port, cfg.User, cfg.Password),
		from:   from,
		to:     to,
	}, nil
}

func (s *EmailSender) Send(ctx context.Context, subject, body string) error {
	m := s.buildMessage(subject, body)

	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return eris.Wrap(err, "smtp send failed")
		}
		return nil
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "smtp send abandoned")
	}
}

func (s *EmailSender) buildMessage(subject, body string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", s.to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	return m
}

// cleanRecipients splits comma separated entries and drops blanks.
func cleanRecipients(in []string) []string {
	var out []string
	for _, entry := range in {
		for _, addr := range strings.Split(entry, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				out = append(out, addr)
			}
		}
	}
	return out
}
