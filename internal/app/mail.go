package app

import (
	"fmt"

	"github.com/nhle/circuit-janitor/internal/credential"
	"github.com/nhle/circuit-janitor/internal/model"
	"github.com/nhle/circuit-janitor/internal/source/email"
)

// Secrets looks up stored credentials.
type Secrets interface {
	Get(key string) (string, error)
}

// MailClient builds the IMAP client of cfg.Mail. An empty configured
// password is loaded from secrets.
func MailClient(cfg *model.AppConfig, secrets Secrets) (*email.IMAPClient, error) {
	if err := cfg.ValidateMail(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	password := cfg.Mail.Password
	if password == "" {
		if secrets == nil {
			return nil, fmt.Errorf("no password for %s: run janitor login", cfg.Mail.Username)
		}
		p, err := secrets.Get(credential.MailKey(cfg.Mail.Username, cfg.Mail.Host))
		if err != nil {
			return nil, fmt.Errorf("no password for %s (run janitor login): %w", cfg.Mail.Username, err)
		}
		password = p
	}

	return email.NewIMAPClient(email.Config{
		Host:             cfg.Mail.Host,
		Port:             cfg.Mail.Port,
		Username:         cfg.Mail.Username,
		Password:         password,
		TLS:              cfg.Mail.TLS,
		Mailbox:          cfg.Mail.Mailbox,
		ProcessedMailbox: cfg.Mail.ProcessedMailbox,
		FailuresMailbox:  cfg.Mail.FailuresMailbox,
	}), nil
}
