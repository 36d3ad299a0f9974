package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"cms-go/internal/app"
	"cms-go/internal/config"
)

// envPassphrase supplies the archive passphrase when stdin is not a terminal.
const envPassphrase = "CMS_ARCHIVE_PASSPHRASE"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a CMSApp. The caller must defer closeApp.
// operation identifies the CLI command being run.
func newApp(ctx context.Context, operation string) (*app.CMSApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := app.LoadConfig(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewCMSApp(ctx, cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// run wraps a command body with app setup and records its outcome.
func run(operation string, fn func(cmd *cobra.Command, a *app.CMSApp, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), operation)
		if err != nil {
			return err
		}
		err = fn(cmd, a, args)
		a.Operation().Fail(err)
		if cerr := a.Close(); err == nil {
			err = cerr
		}
		return err
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readPassphrase prompts on the terminal, or reads CMS_ARCHIVE_PASSPHRASE
// when stdin is not one. confirm asks twice.
func readPassphrase(confirm bool) (string, error) {
	if v, ok := os.LookupEnv(envPassphrase); ok {
		return v, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal; set %s", envPassphrase)
	}

	fmt.Fprint(os.Stderr, "Passphrase: ")
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	if confirm {
		fmt.Fprint(os.Stderr, "Confirm passphrase: ")
		again, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		if string(again) != string(pw) {
			return "", fmt.Errorf("passphrases do not match")
		}
	}
	if len(pw) == 0 {
		return "", fmt.Errorf("passphrase must not be empty")
	}
	return string(pw), nil
}

var rootCmd = &cobra.Command{
	Use:          "cms",
	Short:        "Content storage for the marketing site",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := app.LoadConfig(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		remoteURL := cfg.Remote.URL
		if remoteURL == "" {
			remoteURL = "(none)"
		}
		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Local:      %s %s\n", cfg.Local.Type, cfg.Local.DataDir)
		fmt.Printf("Media:      %s\n", cfg.Media.Type)
		fmt.Printf("Remote:     %s (enabled: %v, realtime: %v)\n", redact(remoteURL), cfg.Remote.Enabled(), cfg.Remote.Realtime)
		return nil
	},
}

// redact hides the password of a connection url.
func redact(rawURL string) string {
	at := strings.LastIndex(rawURL, "@")
	scheme := strings.Index(rawURL, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return rawURL
	}
	userinfo := rawURL[scheme+3 : at]
	if user, _, ok := strings.Cut(userinfo, ":"); ok {
		return rawURL[:scheme+3] + user + ":***" + rawURL[at:]
	}
	return rawURL
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show storage mode and collection sizes",
	RunE: run("Status", func(cmd *cobra.Command, a *app.CMSApp, args []string) error {
		st, err := a.Status(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Mode:       %s\n", st.Mode)
		fmt.Printf("Remote:     configured=%v migrated=%v\n", st.RemoteConfigured, st.MigrationCompleted)
		fmt.Printf("Local DB:   %d keys, %d bytes, schema v%d/%d\n", st.Usage.Entries, st.Usage.TotalBytes, st.Schema.Version, st.Schema.Latest)
		if st.MediaErr != nil {
			fmt.Printf("Media:      unavailable: %v\n", st.MediaErr)
		} else {
			fmt.Printf("Media:      ok\n")
		}
		fmt.Println()
		for _, md := range st.Collections {
			modified := "-"
			if !md.LastModified.IsZero() {
				modified = md.LastModified.Format("2006-01-02 15:04:05")
			}
			fmt.Printf("%-13s %6d  %9d bytes  %s\n", md.Name, md.Count, md.Size, modified)
		}
		return nil
	}),
}

// mode command
var modeCmd = &cobra.Command{
	Use:       "mode cloud|local",
	Short:     "Switch between cloud and local storage",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{app.ModeCloud, app.ModeLocal},
	RunE: run("SetMode", func(cmd *cobra.Command, a *app.CMSApp, args []string) error {
		if err := a.SetMode(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Storage mode: %s\n", args[0])
		return nil
	}),
}

// watch command
var watchCmd = &cobra.Command{
	Use:   "watch [COLLECTION...]",
	Short: "Print realtime change events",
	RunE: run("Watch", func(cmd *cobra.Command, a *app.CMSApp, args []string) error {
		events, err := a.Watch(cmd.Context(), args...)
		if err != nil {
			return err
		}
		for ev := range events {
			fmt.Printf("%s  %-8s %s/%s\n", ev.At.Format("2006-01-02 15:04:05"), ev.Type, ev.Collection, ev.ItemID)
		}
		return nil
	}),
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(modeCmd)
	rootCmd.AddCommand(watchCmd)
	addRecordCommands(rootCmd)
	addArchiveCommands(rootCmd)
	addMediaCommands(rootCmd)
}
