package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	apiclient "github.com/rikouu/serdo-v2-sub001/pkg/api/client"
)

type cliConfig struct {
	APIBaseURL  string `json:"api_base_url"`
	AccessToken string `json:"access_token"`
	Email       string `json:"email,omitempty"`
}

var buildVersion = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "login":
		err = commandLogin(args)
	case "check":
		err = commandCheck(args)
	case "sync":
		err = commandSync(args)
	case "logs":
		err = commandLogs(args)
	case "reveal":
		err = commandReveal(args)
	case "version", "--version", "-v":
		printVersion()
		return
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func commandLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	apiBase := fs.String("api", "", "API base URL (default "+apiclient.DefaultBaseURL+")")
	fs.Parse(args)

	if strings.TrimSpace(*email) == "" {
		return errors.New("--email is required")
	}
	secret := strings.TrimSpace(*password)
	if secret == "" {
		var err error
		if secret, err = promptPassword("Password: "); err != nil {
			return err
		}
	}

	cfg, _ := loadConfig()
	if strings.TrimSpace(*apiBase) != "" {
		cfg.APIBaseURL = *apiBase
	}
	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	resp, err := client.Login(ctx, *email, secret)
	if err != nil {
		return err
	}
	cfg.AccessToken = resp.AccessToken
	cfg.Email = resp.User.Email
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Printf("logged in as %s\n", resp.User.Email)
	return nil
}

func commandCheck(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: serdo check servers|domains")
	}
	client, token, err := authenticated()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()
	run, err := client.RunCheck(ctx, token, args[0])
	if err != nil {
		return err
	}
	l := run.Log
	fmt.Printf("%s check: %d total, %d ok, %d failed in %dms\n", l.Type, l.Total, l.Success, l.Failed, l.Duration)
	printItems("failed", l.FailedItems)
	printItems("expiring", l.ExpiringItems)
	for _, e := range l.Errors {
		fmt.Printf("  error: %s\n", e)
	}
	if l.NotificationSent {
		fmt.Println("notification sent")
	}
	return nil
}

func commandSync(args []string) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	domainID := fs.String("domain", "", "Domain ID")
	fs.Parse(args)
	if strings.TrimSpace(*domainID) == "" {
		return errors.New("--domain is required")
	}
	client, token, err := authenticated()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	raw, err := client.SyncDomain(ctx, token, *domainID)
	if err != nil {
		return err
	}
	var pretty map[string]any
	if err := json.Unmarshal(raw, &pretty); err != nil {
		return err
	}
	out, _ := json.MarshalIndent(pretty, "", "  ")
	fmt.Println(string(out))
	return nil
}

func commandLogs(args []string) error {
	fs := flag.NewFlagSet("logs", flag.ExitOnError)
	page := fs.Int("page", 1, "Page number")
	size := fs.Int("size", 20, "Page size")
	typ := fs.String("type", "", "Filter by type (server|domain)")
	fs.Parse(args)

	client, token, err := authenticated()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	res, err := client.CheckLogs(ctx, token, *page, *size, *typ)
	if err != nil {
		return err
	}
	if len(res.Items) == 0 {
		fmt.Println("no check logs")
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTYPE\tTRIGGER\tTOTAL\tOK\tFAILED\tNOTIFIED")
	for _, l := range res.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%t\n",
			l.Timestamp.Local().Format(time.DateTime), l.Type, l.Trigger, l.Total, l.Success, l.Failed, l.NotificationSent)
	}
	tw.Flush()
	fmt.Printf("page %d/%d (%d entries)\n", res.Page, res.TotalPages, res.Total)
	return nil
}

func commandReveal(args []string) error {
	fs := flag.NewFlagSet("reveal", flag.ExitOnError)
	kind := fs.String("kind", "", "Entity kind (server|provider|settings)")
	id := fs.String("id", "", "Entity ID (omit for settings)")
	field := fs.String("field", "", "Secret field, e.g. password or smtpPassword")
	fs.Parse(args)

	if strings.TrimSpace(*kind) == "" || strings.TrimSpace(*field) == "" {
		return errors.New("--kind and --field are required")
	}
	client, token, err := authenticated()
	if err != nil {
		return err
	}
	password, err := promptPassword("Current password: ")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	grant, err := client.IssueRevealKey(ctx, token, password)
	if err != nil {
		return err
	}
	plain, ok, err := client.Reveal(ctx, token, grant, *kind, *id, *field)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("(not set)")
		return nil
	}
	fmt.Println(plain)
	return nil
}

func printItems(label string, items []apiclient.CheckItem) {
	for _, it := range items {
		switch {
		case it.Error != "":
			fmt.Printf("  %s: %s (%s)\n", label, it.Name, it.Error)
		case it.DaysRemaining != nil:
			fmt.Printf("  %s: %s (%s, %d days)\n", label, it.Name, it.State, *it.DaysRemaining)
		default:
			fmt.Printf("  %s: %s\n", label, it.Name)
		}
	}
}

func authenticated() (*apiclient.Client, string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, "", err
	}
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, "", errors.New("please login first using 'serdo login'")
	}
	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return nil, "", err
	}
	return client, token, nil
}

func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Print("\n")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}

func loadConfig() (cliConfig, error) {
	path, err := configPath()
	if err != nil {
		return cliConfig{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cliConfig{APIBaseURL: apiclient.DefaultBaseURL}, nil
		}
		return cliConfig{}, err
	}
	var cfg cliConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cliConfig{}, err
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = apiclient.DefaultBaseURL
	}
	return cfg, nil
}

func saveConfig(cfg cliConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func configPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "serdo", "config.json"), nil
}

func printUsage() {
	fmt.Printf("serdo CLI %s\n\n", buildVersion)
	fmt.Print(`Usage:
	serdo login --email user@example.com [--password secret] [--api http://localhost:4000]
	serdo check servers|domains
	serdo sync --domain <domain-id>
	serdo logs [--page N] [--size N] [--type server|domain]
	serdo reveal --kind server|provider|settings [--id <id>] --field <field>
	serdo version
`)
}

func printVersion() {
	fmt.Println(strings.TrimSpace(buildVersion))
}
