package secrets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService groups the job's secrets in the OS keychain.
	KeyringService = "misused-senders"

	SourcePassword  = "source-password"
	SMTPPassword    = "smtp-password"
	IMAPPassword    = "imap-password"
	ClassifierToken = "classifier-token"
)

// Names lists the accepted secret names.
var Names = []string{SourcePassword, SMTPPassword, IMAPPassword, ClassifierToken}

func checkName(name string) error {
	for _, n := range Names {
		if n == name {
			return nil
		}
	}
	return fmt.Errorf("unknown secret %q (want one of %s)", name, strings.Join(Names, ", "))
}

// Resolve returns the keychain value for name, or fallback (from the
// environment or config file) when the keychain has none or is unavailable.
func Resolve(name, fallback string) string {
	if pw, err := keyring.Get(KeyringService, name); err == nil && strings.TrimSpace(pw) != "" {
		return pw
	}
	return fallback
}

func Set(name, value string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if strings.TrimSpace(value) == "" {
		return errors.New("secret value is empty")
	}
	return keyring.Set(KeyringService, name, value)
}

// Delete removes name from the keychain. A missing entry is not an error.
func Delete(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := keyring.Delete(KeyringService, name); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}
