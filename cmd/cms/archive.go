package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"cms-go/internal/app"
)

var exportCmd = &cobra.Command{
	Use:   "export FILE",
	Short: "Export every collection to an archive",
	Args:  cobra.ExactArgs(1),
	RunE: run("Export", func(cmd *cobra.Command, a *app.CMSApp, args []string) error {
		var passphrase string
		if encrypt, _ := cmd.Flags().GetBool("encrypt"); encrypt {
			pw, err := readPassphrase(true)
			if err != nil {
				return err
			}
			passphrase = pw
		}

		dest := args[0]
		tmp, err := os.CreateTemp(filepath.Dir(dest), ".cms-export-*")
		if err != nil {
			return fmt.Errorf("creating archive: %w", err)
		}
		defer os.Remove(tmp.Name())

		if err := a.Export(cmd.Context(), tmp, passphrase); err != nil {
			tmp.Close()
			return err
		}
		if err := tmp.Close(); err != nil {
			return fmt.Errorf("writing archive: %w", err)
		}
		if err := os.Rename(tmp.Name(), dest); err != nil {
			return fmt.Errorf("writing archive: %w", err)
		}

		fmt.Printf("Exported to %s\n", dest)
		return nil
	}),
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Replace collections with the contents of an archive",
	Args:  cobra.ExactArgs(1),
	RunE: run("Import", func(cmd *cobra.Command, a *app.CMSApp, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		result, err := a.Import(cmd.Context(), f, func() (string, error) { return readPassphrase(false) })
		if err != nil {
			return err
		}

		fmt.Printf("Imported %d record(s), skipped %d\n", result.Imported, result.Skipped)
		for _, e := range result.Errors {
			fmt.Printf("  error: %s\n", e)
		}
		if !result.Success {
			return fmt.Errorf("import finished with %d error(s)", len(result.Errors))
		}
		return nil
	}),
}

var backupDBCmd = &cobra.Command{
	Use:   "backup-db FILE",
	Short: "Copy the local database file",
	Args:  cobra.ExactArgs(1),
	RunE: run("BackupDatabase", func(cmd *cobra.Command, a *app.CMSApp, args []string) error {
		if err := a.BackupDatabase(args[0]); err != nil {
			return err
		}
		fmt.Printf("Local database copied to %s\n", args[0])
		return nil
	}),
}

func addArchiveCommands(root *cobra.Command) {
	exportCmd.Flags().BoolP("encrypt", "e", false, "Encrypt the archive with a passphrase")
	root.AddCommand(exportCmd, importCmd, backupDBCmd)
}
