// Package mail implements the C10 notification sink (§4.10): an SMTP
// notify.Notifier built on mailyak, adapted from the teacher's own
// mail.Mailer.
package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"

	"github.com/caasmo/acmerenew/config"
	"github.com/caasmo/acmerenew/notify"
	"github.com/domodwyer/mailyak/v3"
)

// Notifier sends renewal alarms/metrics as email, implementing
// notify.Notifier.
type Notifier struct {
	host        string
	port        int
	username    string
	password    string
	fromName    string
	fromAddress string
	to          []string
	authMethod  string
	useTLS      bool
}

// New builds a Notifier from the C9 config's Notify section. to is the
// operator address list that receives renewal alarms.
func New(cfg config.Notify, to ...string) *Notifier {
	return &Notifier{
		host:        cfg.Host,
		port:        cfg.Port,
		username:    cfg.Username,
		password:    cfg.Password,
		fromName:    cfg.FromName,
		fromAddress: cfg.FromAddress,
		to:          to,
		authMethod:  cfg.AuthMethod,
		useTLS:      cfg.UseTLS,
	}
}

// Send implements notify.Notifier by emailing n's recipients.
func (n *Notifier) Send(ctx context.Context, note notify.Notification) error {
	if len(n.to) == 0 {
		return fmt.Errorf("mail: no recipients configured")
	}

	var auth smtp.Auth
	switch n.authMethod {
	case "login":
		auth = &loginAuth{username: n.username, password: n.password}
	case "cram-md5":
		auth = smtp.CRAMMD5Auth(n.username, n.password)
	case "none":
		auth = nil
	default: // "plain" or empty
		auth = smtp.PlainAuth("", n.username, n.password, n.host)
	}

	client, err := mailyak.NewWithTLS(fmt.Sprintf("%s:%d", n.host, n.port), auth, &tls.Config{
		ServerName:         n.host,
		InsecureSkipVerify: !n.useTLS,
	})
	if err != nil {
		return fmt.Errorf("mail: failed to create client: %w", err)
	}

	client.To(n.to...)
	client.From(n.fromAddress)
	client.FromName(n.fromName)
	client.Subject(fmt.Sprintf("[acmerenew] %s: %s", note.Type, note.Source))
	client.Plain().Set(note.Message)

	done := make(chan error, 1)
	go func() { done <- client.Send() }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("mail: failed to send notification: %w", err)
		}
	}
	return nil
}

// loginAuth implements the SMTP AUTH LOGIN mechanism, which the standard
// library's net/smtp does not provide directly.
type loginAuth struct {
	username, password string
}

func (a *loginAuth) Start(server *smtp.ServerInfo) (string, []byte, error) {
	return "LOGIN", nil, nil
}

func (a *loginAuth) Next(fromServer []byte, more bool) ([]byte, error) {
	if !more {
		return nil, nil
	}
	switch string(fromServer) {
	case "Username:":
		return []byte(a.username), nil
	case "Password:":
		return []byte(a.password), nil
	default:
		return nil, fmt.Errorf("mail: unexpected LOGIN auth prompt: %q", fromServer)
	}
}
