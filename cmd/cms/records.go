package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"cms-go/internal/app"
	"cms-go/internal/cms"
)

var listCmd = &cobra.Command{
	Use:   "list COLLECTION",
	Short: "List records",
	Args:  cobra.ExactArgs(1),
	RunE: run("List", func(cmd *cobra.Command, a *app.CMSApp, args []string) error {
		filters, err := filtersFromFlags(cmd)
		if err != nil {
			return err
		}
		items, err := a.Storage().List(cmd.Context(), args[0], filters)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(items)
		}
		if len(items) == 0 {
			fmt.Println("No records.")
			return nil
		}
		for _, it := range items {
			fmt.Printf("%-28s  %-9s  %s  %s\n", it.ID(), it.Status(), it.CreatedAt().Format("2006-01-02 15:04"), label(it))
		}
		return nil
	}),
}

var getCmd = &cobra.Command{
	Use:   "get COLLECTION ID",
	Short: "Show one record",
	Args:  cobra.ExactArgs(2),
	RunE: run("Read", func(cmd *cobra.Command, a *app.CMSApp, args []string) error {
		item, err := a.Storage().Read(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if item == nil {
			return fmt.Errorf("%s/%s: %w", args[0], args[1], cms.ErrNotFound)
		}
		return printJSON(item)
	}),
}

var createCmd = &cobra.Command{
	Use:   "create COLLECTION [FIELD=VALUE...]",
	Short: "Create a record",
	Args:  cobra.MinimumNArgs(1),
	RunE: run("Create", func(cmd *cobra.Command, a *app.CMSApp, args []string) error {
		item, err := recordFromInput(cmd, args[1:])
		if err != nil {
			return err
		}
		created, err := a.Storage().Create(cmd.Context(), args[0], item)
		if err != nil {
			return err
		}
		fmt.Printf("Created %s/%s\n", args[0], created.ID())
		return nil
	}),
}

var updateCmd = &cobra.Command{
	Use:   "update COLLECTION ID [FIELD=VALUE...]",
	Short: "Update fields of a record",
	Args:  cobra.MinimumNArgs(2),
	RunE: run("Update", func(cmd *cobra.Command, a *app.CMSApp, args []string) error {
		partial, err := recordFromInput(cmd, args[2:])
		if err != nil {
			return err
		}
		updated, err := a.Storage().Update(cmd.Context(), args[0], args[1], partial)
		if err != nil {
			return err
		}
		fmt.Printf("Updated %s/%s at %s\n", args[0], updated.ID(), updated.String(cms.FieldUpdatedAt))
		return nil
	}),
}

var deleteCmd = &cobra.Command{
	Use:   "delete COLLECTION ID",
	Short: "Delete a record",
	Args:  cobra.ExactArgs(2),
	RunE: run("Delete", func(cmd *cobra.Command, a *app.CMSApp, args []string) error {
		deleted, err := a.Storage().Delete(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if !deleted {
			fmt.Printf("%s/%s does not exist\n", args[0], args[1])
			return nil
		}
		fmt.Printf("Deleted %s/%s\n", args[0], args[1])
		return nil
	}),
}

var clearCmd = &cobra.Command{
	Use:   "clear COLLECTION",
	Short: "Delete every record of a collection",
	Args:  cobra.ExactArgs(1),
	RunE: run("Clear", func(cmd *cobra.Command, a *app.CMSApp, args []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return fmt.Errorf("refusing to clear %s without --yes", args[0])
		}
		if err := a.Storage().Clear(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Cleared %s\n", args[0])
		return nil
	}),
}

// label picks a human readable name for a record.
func label(it cms.Item) string {
	for _, f := range []string{"title", "name", "clientName", "originalName"} {
		if s := it.String(f); s != "" {
			return s
		}
	}
	return ""
}

// recordFromInput merges --file JSON (or "-" for stdin) with FIELD=VALUE
// pairs. Values that parse as JSON keep their type; anything else is a string.
func recordFromInput(cmd *cobra.Command, pairs []string) (cms.Item, error) {
	item := cms.Item{}

	if file, _ := cmd.Flags().GetString("file"); file != "" {
		var r io.Reader = os.Stdin
		if file != "-" {
			f, err := os.Open(file)
			if err != nil {
				return nil, err
			}
			defer f.Close()
			r = f
		}
		if err := json.NewDecoder(r).Decode(&item); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", file, err)
		}
	}

	for _, p := range pairs {
		field, raw, ok := strings.Cut(p, "=")
		if !ok || field == "" {
			return nil, fmt.Errorf("expected FIELD=VALUE, got %q: %w", p, cms.ErrInvalidArgument)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		item[field] = v
	}
	return item, nil
}

func filtersFromFlags(cmd *cobra.Command) (*cms.Filters, error) {
	status, _ := cmd.Flags().GetString("status")
	category, _ := cmd.Flags().GetString("category")
	search, _ := cmd.Flags().GetString("search")
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")

	f := &cms.Filters{Status: cms.Status(status), Category: category, SearchTerm: search}
	if from != "" || to != "" {
		var r cms.DateRange
		var err error
		if r.Start, err = parseDate(from, false); err != nil {
			return nil, err
		}
		if r.End, err = parseDate(to, true); err != nil {
			return nil, err
		}
		f.DateRange = &r
	}
	return f, nil
}

// parseDate accepts RFC 3339 or a bare date. A bare end date covers the whole day.
func parseDate(s string, end bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, cms.ErrInvalidArgument)
	}
	if end {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func addRecordCommands(root *cobra.Command) {
	listCmd.Flags().String("status", "", "Only records with this status")
	listCmd.Flags().String("category", "", "Only records in this category")
	listCmd.Flags().StringP("search", "s", "", "Case-insensitive text search")
	listCmd.Flags().String("from", "", "Created on or after (YYYY-MM-DD or RFC 3339)")
	listCmd.Flags().String("to", "", "Created on or before (YYYY-MM-DD or RFC 3339)")
	listCmd.Flags().Bool("json", false, "Print records as JSON")

	for _, c := range []*cobra.Command{createCmd, updateCmd} {
		c.Flags().StringP("file", "f", "", "Read fields from a JSON file (- for stdin)")
	}
	clearCmd.Flags().Bool("yes", false, "Confirm clearing the collection")

	root.AddCommand(listCmd, getCmd, createCmd, updateCmd, deleteCmd, clearCmd)
}
