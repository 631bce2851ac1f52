package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/edwin001-tech/misused-senders/internal/config"
)

// SMTPSender submits messages to a relay.
type SMTPSender struct {
	cfg      config.SMTP
	password string
	log      *zap.Logger
}

func NewSMTPSender(cfg config.SMTP, password string, log *zap.Logger) *SMTPSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &SMTPSender{cfg: cfg, password: password, log: log.Named("smtp")}
}

// Send composes msg and submits it. It returns the raw bytes sent so the
// caller can archive the same message.
func (s *SMTPSender) Send(ctx context.Context, msg Message) ([]byte, error) {
	raw, err := Compose(msg)
	if err != nil {
		return nil, err
	}
	from, to, err := Envelope(msg)
	if err != nil {
		return nil, err
	}

	c, err := s.dial()
	if err != nil {
		return nil, err
	}
	defer c.Close()

	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	timeout := time.Duration(s.cfg.TimeoutSeconds) * time.Second
	if timeout > 0 {
		c.CommandTimeout = timeout
		c.SubmissionTimeout = timeout
	}

	if s.cfg.LocalName != "" && s.cfg.TLS != "starttls" {
		if err := c.Hello(s.cfg.LocalName); err != nil {
			return nil, s.wrap(ctx, "hello", err)
		}
	}
	if s.cfg.Username != "" {
		if err := c.Auth(sasl.NewPlainClient("", s.cfg.Username, s.password)); err != nil {
			return nil, s.wrap(ctx, "auth", err)
		}
	}
	if err := c.SendMail(from, to, bytes.NewReader(raw)); err != nil {
		return nil, s.wrap(ctx, "send", err)
	}
	if err := c.Quit(); err != nil {
		s.log.Debug("quit", zap.Error(err))
	}

	s.log.Info("report sent",
		zap.Strings("to", to),
		zap.String("subject", msg.Subject),
		zap.Int("bytes", len(raw)),
	)
	return raw, nil
}

func (s *SMTPSender) dial() (*smtp.Client, error) {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12, ServerName: s.cfg.Host}

	var (
		c   *smtp.Client
		err error
	)
	switch s.cfg.TLS {
	case "tls":
		c, err = smtp.DialTLS(addr, tlsCfg)
	case "starttls":
		c, err = smtp.DialStartTLS(addr, tlsCfg)
	default:
		c, err = smtp.Dial(addr)
	}
	if err != nil {
		return nil, fmt.Errorf("smtp dial %s: %w", addr, err)
	}
	return c, nil
}

func (s *SMTPSender) wrap(ctx context.Context, step string, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return fmt.Errorf("smtp %s: %w", step, cerr)
	}
	return fmt.Errorf("smtp %s: %w", step, err)
}
