package tools

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"net/url"
	"strings"
	"time"

	"samhq.app/sam/core/config"
)

// MailSender delivers one raw RFC 5322 message.
type MailSender interface {
	Send(ctx context.Context, from string, to []string, msg []byte) error
}

// Emailer implements the send_email tool.
type Emailer struct {
	cfg    config.EmailConfig
	sender MailSender
}

// NewEmailer sends through the SMTP server in cfg.URL unless sender is given.
func NewEmailer(cfg config.EmailConfig, sender MailSender) (*Emailer, error) {
	if sender == nil {
		s, err := newSMTPSender(cfg.URL)
		if err != nil {
			return nil, err
		}
		sender = s
	}
	return &Emailer{cfg: cfg, sender: sender}, nil
}

type sendEmailParams struct {
	To      string `json:"to" jsonschema_description:"The recipient of the email, e.g. john.doe@example.com."`
	Subject string `json:"subject" jsonschema_description:"The subject of the email."`
	Body    string `json:"body" jsonschema_description:"The body of the email."`
}

func (e *Emailer) Definition() Definition {
	return Func(
		"Write and send email.",
		func(ctx context.Context, args sendEmailParams, _ CallContext) (string, error) {
			return e.Send(ctx, args.To, args.Subject, args.Body), nil
		},
	)
}

func (e *Emailer) Send(ctx context.Context, to, subject, body string) string {
	if e.cfg.WhiteList != nil && !matchesFromStart(e.cfg.WhiteList.FindStringIndex(to)) {
		slog.WarnContext(ctx, "email recipient not whitelisted", "to", to)
		return "Email not sent. The recipient is not in the whitelist."
	}

	msg := buildMessage(e.cfg.From, to, subject, body)
	if err := e.sender.Send(ctx, e.cfg.From, []string{to}, msg); err != nil {
		slog.ErrorContext(ctx, "failed to send email", "to", to, "error", err)
		return "Email not sent. An error occurred."
	}
	return "Email sent successfully!"
}

// The whitelist is anchored at the start of the address only.
func matchesFromStart(loc []int) bool {
	return loc != nil && loc[0] == 0
}

func buildMessage(from, to, subject, body string) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: Sam <%s>\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return b.Bytes()
}

type smtpSender struct {
	addr     string
	host     string
	username string
	password string
}

func newSMTPSender(rawURL string) (*smtpSender, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing EMAIL_URL: %w", err)
	}
	if u.Scheme != "smtp" && u.Scheme != "smtps" {
		return nil, fmt.Errorf("EMAIL_URL: unsupported scheme %q", u.Scheme)
	}
	port := u.Port()
	if port == "" {
		port = "587"
	}
	password, _ := u.User.Password()
	return &smtpSender{
		addr:     net.JoinHostPort(u.Hostname(), port),
		host:     u.Hostname(),
		username: u.User.Username(),
		password: password,
	}, nil
}

func (s *smtpSender) Send(ctx context.Context, from string, to []string, msg []byte) error {
	dialer := net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", s.addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(30 * time.Second))
	}

	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if err := c.StartTLS(&tls.Config{ServerName: s.host, MinVersion: tls.VersionTLS12}); err != nil {
		return fmt.Errorf("starttls: %w", err)
	}
	if s.username != "" {
		if err := c.Auth(smtp.PlainAuth("", s.username, s.password, s.host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(from); err != nil {
		return fmt.Errorf("smtp mail: %w", err)
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", rcpt, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing message: %w", err)
	}
	return c.Quit()
}
