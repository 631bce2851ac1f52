// Package mailer composes the report email and delivers it over SMTP,
// optionally archiving a copy to an IMAP mailbox.
package mailer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/emersion/go-message/mail"
)

type Message struct {
	From           string
	To             []string
	Subject        string
	Body           string
	AttachmentPath string
	AttachmentName string // defaults to the base name of AttachmentPath
	Date           time.Time
}

// Compose renders msg as a multipart RFC 5322 message with a plain-text
// body and the CSV attached.
func Compose(msg Message) ([]byte, error) {
	if len(msg.To) == 0 {
		return nil, errors.New("mailer: no recipients")
	}
	from, err := mail.ParseAddress(msg.From)
	if err != nil {
		return nil, fmt.Errorf("mailer: from: %w", err)
	}
	to, err := parseList(msg.To)
	if err != nil {
		return nil, err
	}
	date := msg.Date
	if date.IsZero() {
		date = time.Now()
	}

	var h mail.Header
	h.SetDate(date)
	h.SetAddressList("From", []*mail.Address{from})
	h.SetAddressList("To", to)
	h.SetSubject(msg.Subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("mailer: message-id: %w", err)
	}

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("mailer: create writer: %w", err)
	}

	tw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("mailer: inline: %w", err)
	}
	var th mail.InlineHeader
	th.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	w, err := tw.CreatePart(th)
	if err != nil {
		return nil, fmt.Errorf("mailer: body part: %w", err)
	}
	if _, err := io.WriteString(w, msg.Body); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}

	if msg.AttachmentPath != "" {
		if err := attach(mw, msg); err != nil {
			return nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("mailer: close: %w", err)
	}
	return buf.Bytes(), nil
}

// Envelope returns the bare SMTP envelope addresses for msg, dropping any
// display names ("Reports <r@example.com>" gives "r@example.com").
func Envelope(msg Message) (from string, to []string, err error) {
	if len(msg.To) == 0 {
		return "", nil, errors.New("mailer: no recipients")
	}
	f, err := mail.ParseAddress(msg.From)
	if err != nil {
		return "", nil, fmt.Errorf("mailer: from: %w", err)
	}
	list, err := parseList(msg.To)
	if err != nil {
		return "", nil, err
	}
	to = make([]string, len(list))
	for i, a := range list {
		to[i] = a.Address
	}
	return f.Address, to, nil
}

func parseList(addrs []string) ([]*mail.Address, error) {
	out := make([]*mail.Address, 0, len(addrs))
	for _, addr := range addrs {
		a, err := mail.ParseAddress(addr)
		if err != nil {
			return nil, fmt.Errorf("mailer: to %q: %w", addr, err)
		}
		out = append(out, a)
	}
	return out, nil
}

func attach(mw *mail.Writer, msg Message) error {
	f, err := os.Open(msg.AttachmentPath)
	if err != nil {
		return fmt.Errorf("mailer: attachment: %w", err)
	}
	defer f.Close()

	name := msg.AttachmentName
	if name == "" {
		name = filepath.Base(msg.AttachmentPath)
	}
	var ah mail.AttachmentHeader
	ah.SetContentType("text/csv", map[string]string{"charset": "utf-8"})
	ah.SetFilename(name)

	w, err := mw.CreateAttachment(ah)
	if err != nil {
		return fmt.Errorf("mailer: attachment part: %w", err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("mailer: attachment copy: %w", err)
	}
	return w.Close()
}
