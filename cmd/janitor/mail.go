package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nhle/circuit-janitor/internal/app"
	"github.com/nhle/circuit-janitor/internal/credential"
	"github.com/nhle/circuit-janitor/internal/model"
)

var failedCmd = &cobra.Command{
	Use:   "failed",
	Short: "List notifications that could not be processed",
	RunE:  runFailed,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the mail login and create missing mailboxes",
	RunE:  runCheck,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store the IMAP password in the system keyring",
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the IMAP password from the system keyring",
	RunE:  runLogout,
}

func runFailed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := mailClient(cfg)
	if err != nil {
		return err
	}

	failed, err := client.FailedMessages(cmd.Context())
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(failed))
	for _, f := range failed {
		rows = append(rows, []string{fmt.Sprint(f.UID), f.Date.Format(timeLayout), f.From, f.Subject})
	}
	printTable([]string{"UID", "Date", "From", "Subject"}, rows)
	fmt.Printf("Total: %d\n", len(failed))
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	client, err := mailClient(cfg)
	if err != nil {
		return err
	}

	user, err := client.ValidateConnection(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Logged in to %s as %s\n", cfg.Mail.Host, user)

	created, err := client.VerifyMailboxes(ctx)
	if err != nil {
		return err
	}
	for _, name := range created {
		fmt.Printf("Created mailbox %s\n", name)
	}
	return nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := mailSettings()
	if err != nil {
		return err
	}

	password, err := readPassword(fmt.Sprintf("Password for %s@%s: ", cfg.Mail.Username, cfg.Mail.Host))
	if err != nil {
		return err
	}
	if password == "" {
		return fmt.Errorf("empty password")
	}

	// Verify before storing.
	cfg.Mail.Password = password
	client, err := app.MailClient(cfg, nil)
	if err != nil {
		return err
	}
	if _, err := client.ValidateConnection(cmd.Context()); err != nil {
		return err
	}

	store, err := credential.Open()
	if err != nil {
		return err
	}
	if err := store.Set(credential.MailKey(cfg.Mail.Username, cfg.Mail.Host), password); err != nil {
		return err
	}
	fmt.Println("Password stored.")
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	cfg, err := mailSettings()
	if err != nil {
		return err
	}
	store, err := credential.Open()
	if err != nil {
		return err
	}
	if err := store.Delete(credential.MailKey(cfg.Mail.Username, cfg.Mail.Host)); err != nil {
		return err
	}
	fmt.Println("Password removed.")
	return nil
}

func mailSettings() (*model.AppConfig, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateMail(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// readPassword prompts without echo on a terminal and reads a plain line
// otherwise.
func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
