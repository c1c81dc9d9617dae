// Command mailvault stores mail account credentials under a master secret
// and sends or retrieves mail over SMTP/IMAP, optionally wrapping message
// bodies in an OpenPGP overlay.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/nhle/mailvault/internal/account"
	"github.com/nhle/mailvault/internal/credential"
	"github.com/nhle/mailvault/internal/mailer"
	"github.com/nhle/mailvault/internal/model"
	"github.com/nhle/mailvault/internal/overlay"
	"github.com/nhle/mailvault/internal/store"
	"github.com/nhle/mailvault/internal/theme"
	"github.com/nhle/mailvault/internal/ui/inbox"
	"github.com/nhle/mailvault/internal/vault"
)

const masterSecretEnv = "MAILVAULT_MASTER_SECRET"

func main() {
	// Load .env if present; its absence is not an error.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)

	cfg, err := model.LoadConfig(model.DefaultConfigPath())
	if err != nil {
		log.Fatal(err)
	}

	app := &app{cfg: cfg, log: log}

	var runErr error
	switch os.Args[1] {
	case "configure":
		runErr = app.configure(os.Args[2:])
	case "send":
		runErr = app.send(os.Args[2:])
	case "retrieve":
		runErr = app.retrieve(os.Args[2:])
	case "accounts":
		runErr = app.accounts(os.Args[2:])
	case "keygen":
		runErr = app.keygen(os.Args[2:])
	case "forget":
		runErr = credential.DeleteMasterSecret()
	default:
		usage()
		os.Exit(2)
	}

	if runErr != nil {
		fmt.Fprintln(os.Stderr, theme.ErrorStyle.Render(runErr.Error()))
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: mailvault <command> [flags]

commands:
  configure  add or replace an account (--separate-credentials)
  send       send a message (--account --to --subject --body [--attach] [--encrypt])
  retrieve   fetch all messages (--account [--decrypt] [--interactive])
  accounts   list configured accounts
  keygen     generate an overlay identity (--name --email)
  forget     remove the cached master secret from the OS keyring`)
}

type app struct {
	cfg *model.AppConfig
	log *logrus.Logger
}

// openAccounts opens the record store and wraps it in the account layer.
// The returned closer must be called on every exit path.
func (a *app) openAccounts() (*account.AccountStore, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(a.cfg.Vault.DatabasePath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating data directory: %w", err)
	}
	s, err := store.NewSQLiteStore(a.cfg.Vault.DatabasePath)
	if err != nil {
		return nil, nil, err
	}
	policy := vault.Policy{MinMasterSecretLen: a.cfg.Vault.MinMasterSecretLen}
	return account.New(s, policy), s, nil
}

func (a *app) newMailer(accounts *account.AccountStore) *mailer.Mailer {
	return mailer.New(
		accounts,
		overlay.New(a.cfg.Overlay.KeyDir),
		mailer.NetDialer{FetchConcurrency: a.cfg.Mail.FetchConcurrency},
		a.cfg.Mail.Mailbox,
		a.log,
	)
}

// masterSecret resolves the master secret: environment first, then the OS
// keyring cache when enabled, then an interactive prompt.
func (a *app) masterSecret() ([]byte, error) {
	if v := os.Getenv(masterSecretEnv); v != "" {
		return []byte(v), nil
	}

	if a.cfg.Vault.RememberMasterSecret {
		if secret, err := credential.GetMasterSecret(); err == nil && len(secret) > 0 {
			return secret, nil
		}
	}

	var secret string
	prompt := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Master secret").
			EchoMode(huh.EchoModePassword).
			Value(&secret),
	))
	if err := prompt.Run(); err != nil {
		return nil, fmt.Errorf("reading master secret: %w", err)
	}

	if a.cfg.Vault.RememberMasterSecret {
		if err := credential.SetMasterSecret([]byte(secret)); err != nil {
			a.log.WithError(err).Warn("could not cache master secret")
		}
	}

	return []byte(secret), nil
}

func (a *app) configure(args []string) error {
	fs := flag.NewFlagSet("configure", flag.ExitOnError)
	separate := fs.Bool("separate-credentials", false, "use distinct IMAP credentials")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		email, smtpEndpoint, imapEndpoint string
		username, password                string
		imapUsername, imapPassword        string
	)

	groups := []*huh.Group{huh.NewGroup(
		huh.NewInput().Title("Email address").Value(&email),
		huh.NewInput().Title("SMTP server (host[:port])").Value(&smtpEndpoint),
		huh.NewInput().Title("IMAP server (host[:port])").Value(&imapEndpoint),
		huh.NewInput().Title("Username").Value(&username),
		huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&password),
	)}
	if *separate {
		groups = append(groups, huh.NewGroup(
			huh.NewInput().Title("IMAP username").Value(&imapUsername),
			huh.NewInput().Title("IMAP password").EchoMode(huh.EchoModePassword).Value(&imapPassword),
		))
	}
	if err := huh.NewForm(groups...).Run(); err != nil {
		return fmt.Errorf("reading account details: %w", err)
	}

	if !*separate {
		imapUsername = username
		imapPassword = password
	}

	master, err := a.masterSecret()
	if err != nil {
		return err
	}

	accounts, closer, err := a.openAccounts()
	if err != nil {
		return err
	}
	defer closer.Close()

	err = accounts.Upsert(context.Background(), email, account.Fields{
		EmailAddress: email,
		SMTPEndpoint: smtpEndpoint,
		SMTPUsername: username,
		IMAPEndpoint: imapEndpoint,
		IMAPUsername: imapUsername,
	}, account.Secrets{
		SMTPPassword: password,
		IMAPPassword: imapPassword,
	}, master)
	if err != nil {
		return err
	}

	fmt.Println(theme.SuccessStyle.Render("Account " + email + " configured."))
	return nil
}

func (a *app) send(args []string) error {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	accountID := fs.String("account", "", "account id (email address)")
	to := fs.String("to", "", "comma-separated recipients")
	subject := fs.String("subject", "", "message subject")
	body := fs.String("body", "", "message body (reads stdin when empty)")
	attach := fs.String("attach", "", "comma-separated file paths to attach")
	encrypt := fs.Bool("encrypt", false, "overlay-encrypt the body for the first recipient")
	allowPlaintext := fs.Bool("allow-plaintext", false, "proceed in plaintext when the overlay is unavailable")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *accountID == "" || *to == "" {
		return errors.New("send requires --account and --to")
	}

	recipients := splitList(*to)

	messageBody := *body
	if messageBody == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading body from stdin: %w", err)
		}
		messageBody = string(data)
	}

	attachments, err := loadAttachments(splitList(*attach))
	if err != nil {
		return err
	}

	master, err := a.masterSecret()
	if err != nil {
		return err
	}

	accounts, closer, err := a.openAccounts()
	if err != nil {
		return err
	}
	defer closer.Close()

	err = a.newMailer(accounts).Send(context.Background(), master, mailer.SendOptions{
		AccountID:      *accountID,
		Recipients:     recipients,
		Subject:        *subject,
		Body:           messageBody,
		Attachments:    attachments,
		UseOverlay:     *encrypt,
		AllowPlaintext: *allowPlaintext,
	})
	if err != nil {
		return err
	}

	fmt.Println(theme.SuccessStyle.Render("Message accepted for delivery."))
	return nil
}

func (a *app) retrieve(args []string) error {
	fs := flag.NewFlagSet("retrieve", flag.ExitOnError)
	accountID := fs.String("account", "", "account id (email address)")
	mailbox := fs.String("mailbox", "", "mailbox to fetch (defaults to configured mailbox)")
	decrypt := fs.Bool("decrypt", false, "overlay-decrypt message bodies")
	identity := fs.String("identity", "", "overlay identity (defaults to the account address)")
	interactive := fs.Bool("interactive", false, "browse messages in an interactive viewer")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *accountID == "" {
		return errors.New("retrieve requires --account")
	}

	var passphrase string
	if *decrypt {
		prompt := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("Key passphrase (empty for an unlocked key)").
				EchoMode(huh.EchoModePassword).
				Value(&passphrase),
		))
		if err := prompt.Run(); err != nil {
			return fmt.Errorf("reading passphrase: %w", err)
		}
	}

	master, err := a.masterSecret()
	if err != nil {
		return err
	}

	accounts, closer, err := a.openAccounts()
	if err != nil {
		return err
	}
	defer closer.Close()

	result, err := a.newMailer(accounts).Retrieve(context.Background(), master, mailer.RetrieveOptions{
		AccountID:         *accountID,
		Mailbox:           *mailbox,
		UseOverlay:        *decrypt,
		OverlayIdentity:   *identity,
		OverlayPassphrase: passphrase,
	})
	if err != nil {
		return err
	}

	if *interactive {
		return inbox.Run(result.Messages, result.Failures)
	}

	for _, msg := range result.Messages {
		fmt.Println(theme.LabelStyle.Render("From:"), msg.From)
		fmt.Println(theme.LabelStyle.Render("Subject:"), msg.Subject)
		fmt.Println(theme.LabelStyle.Render("Body:"), msg.Body)
		for _, att := range msg.Attachments {
			fmt.Println(theme.LabelStyle.Render("Attachment:"),
				fmt.Sprintf("%s (%d bytes)", att.Filename, len(att.Data)))
		}
		fmt.Println("---")
	}
	for _, failure := range result.Failures {
		fmt.Println(theme.ErrorStyle.Render(
			fmt.Sprintf("message %d failed: %v", failure.UID, failure.Err)))
	}

	return nil
}

func (a *app) accounts(args []string) error {
	fs := flag.NewFlagSet("accounts", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	accounts, closer, err := a.openAccounts()
	if err != nil {
		return err
	}
	defer closer.Close()

	records, err := accounts.List(context.Background())
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No accounts configured. Run `mailvault configure` first.")
		return nil
	}

	fmt.Println(theme.HeaderStyle.Render("Accounts"))
	for i, rec := range records {
		fmt.Printf("%d. %s  (smtp %s, imap %s)\n",
			i+1, rec.EmailAddress, rec.SMTPEndpoint, rec.IMAPEndpoint)
	}
	return nil
}

func (a *app) keygen(args []string) error {
	fs := flag.NewFlagSet("keygen", flag.ExitOnError)
	name := fs.String("name", "", "key holder name")
	email := fs.String("email", "", "identity email address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return errors.New("keygen requires --email")
	}

	var passphrase string
	prompt := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Key passphrase (empty to leave the key unlocked)").
			EchoMode(huh.EchoModePassword).
			Value(&passphrase),
	))
	if err := prompt.Run(); err != nil {
		return fmt.Errorf("reading passphrase: %w", err)
	}

	ov := overlay.New(a.cfg.Overlay.KeyDir)
	if err := ov.GenerateIdentity(*name, *email, passphrase); err != nil {
		return err
	}

	fmt.Println(theme.SuccessStyle.Render("Overlay identity " + *email + " created."))
	return nil
}

// splitList splits a comma-separated flag value, trimming whitespace and
// dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// loadAttachments reads each file path into an attachment, guessing the
// MIME type from the extension.
func loadAttachments(paths []string) ([]model.Attachment, error) {
	var attachments []model.Attachment
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading attachment %s: %w", path, err)
		}
		mimeType := mime.TypeByExtension(filepath.Ext(path))
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		attachments = append(attachments, model.Attachment{
			Filename: filepath.Base(path),
			MIMEType: mimeType,
			Data:     data,
		})
	}
	return attachments, nil
}
