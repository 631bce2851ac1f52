package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"go.uber.org/zap"

	"github.com/edwin001-tech/misused-senders/internal/config"
)

// Archiver appends sent reports to an IMAP mailbox.
type Archiver struct {
	cfg      config.Archive
	password string
	log      *zap.Logger
}

func NewArchiver(cfg config.Archive, password string, log *zap.Logger) *Archiver {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Mailbox == "" {
		cfg.Mailbox = "Sent"
	}
	return &Archiver{cfg: cfg, password: password, log: log.Named("imap")}
}

// Archive stores raw in the mailbox flagged \Seen.
func (a *Archiver) Archive(ctx context.Context, raw []byte) error {
	addr := net.JoinHostPort(a.cfg.IMAPHost, strconv.Itoa(a.cfg.IMAPPort))
	c, stop, err := dialAndLogin(ctx, addr, a.cfg.Username, a.password, &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: a.cfg.IMAPHost,
	})
	if err != nil {
		return err
	}
	defer a.logoutAndClose(c)
	defer stop()

	cmd := c.Append(a.cfg.Mailbox, int64(len(raw)), &imap.AppendOptions{
		Flags: []imap.Flag{imap.FlagSeen},
		Time:  time.Now(),
	})
	if _, err := cmd.Write(raw); err != nil {
		return fmt.Errorf("imap append write: %w", err)
	}
	if err := cmd.Close(); err != nil {
		return fmt.Errorf("imap append close: %w", err)
	}
	if _, err := cmd.Wait(); err != nil {
		return fmt.Errorf("imap append %s: %w", a.cfg.Mailbox, err)
	}
	a.log.Info("report archived", zap.String("mailbox", a.cfg.Mailbox), zap.Int("bytes", len(raw)))
	return nil
}

// dialAndLogin connects over TLS and logs in. The returned stop func
// detaches the close-on-cancel hook.
func dialAndLogin(ctx context.Context, addr, username, password string, tlsCfg *tls.Config) (*imapclient.Client, func() bool, error) {
	if username == "" || password == "" {
		return nil, nil, errors.New("imap username/password is required")
	}

	c, err := imapclient.DialTLS(addr, &imapclient.Options{TLSConfig: tlsCfg})
	if err != nil {
		return nil, nil, fmt.Errorf("imap dial tls: %w", err)
	}

	// Best-effort close on context cancel.
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })

	if err := c.Login(username, password).Wait(); err != nil {
		stop()
		_ = c.Close()
		return nil, nil, fmt.Errorf("imap login: %w", err)
	}
	return c, stop, nil
}

func (a *Archiver) logoutAndClose(c *imapclient.Client) {
	if err := c.Logout().Wait(); err != nil {
		a.log.Debug("imap logout", zap.Error(err))
	}
	_ = c.Close()
}
