package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cms-go/internal/app"
	"cms-go/internal/cms"
)

var mediaCmd = &cobra.Command{
	Use:   "media",
	Short: "Manage media assets",
}

var mediaUploadCmd = &cobra.Command{
	Use:   "upload PATH",
	Short: "Upload a file, or every file in a directory",
	Args:  cobra.ExactArgs(1),
	RunE: run("UploadMedia", func(cmd *cobra.Command, a *app.CMSApp, args []string) error {
		created, err := a.Upload(cmd.Context(), args[0], uploadOptions(cmd))
		for _, it := range created {
			fmt.Printf("%s  %s  %s\n", it.ID(), it.String("originalName"), it.String("url"))
		}
		fmt.Printf("Uploaded %d file(s)\n", len(created))
		return err
	}),
}

var mediaReplaceCmd = &cobra.Command{
	Use:   "replace ID PATH",
	Short: "Replace an asset and repoint every reference to it",
	Args:  cobra.ExactArgs(2),
	RunE: run("ReplaceMedia", func(cmd *cobra.Command, a *app.CMSApp, args []string) error {
		created, err := a.Replace(cmd.Context(), args[0], args[1], uploadOptions(cmd))
		if err != nil {
			return err
		}
		fmt.Printf("Replaced %s with %s\n", args[0], created.ID())
		return nil
	}),
}

var mediaDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete an asset nothing references",
	Args:  cobra.ExactArgs(1),
	RunE: run("DeleteMedia", func(cmd *cobra.Command, a *app.CMSApp, args []string) error {
		deleted, err := a.Storage().DeleteMedia(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !deleted {
			fmt.Printf("media/%s does not exist\n", args[0])
			return nil
		}
		fmt.Printf("Deleted media/%s\n", args[0])
		return nil
	}),
}

var mediaGetCmd = &cobra.Command{
	Use:   "get ID FILE",
	Short: "Write an asset's content to a file",
	Args:  cobra.ExactArgs(2),
	RunE: run("ReadMedia", func(cmd *cobra.Command, a *app.CMSApp, args []string) error {
		f, err := os.Create(args[1])
		if err != nil {
			return err
		}
		if err := a.Download(cmd.Context(), args[0], f); err != nil {
			f.Close()
			os.Remove(args[1])
			return err
		}
		return f.Close()
	}),
}

var mediaRefsCmd = &cobra.Command{
	Use:   "refs ID",
	Short: "List the records that reference an asset",
	Args:  cobra.ExactArgs(1),
	RunE: run("FindReferences", func(cmd *cobra.Command, a *app.CMSApp, args []string) error {
		md, err := a.MediaReferences(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s  %s  used %d time(s)\n", args[0], md.Asset.String("originalName"), md.UsageCount)
		for _, r := range md.References {
			fmt.Printf("  %s/%s.%s\n", r.Collection, r.ItemID, r.Field)
		}
		return nil
	}),
}

var mediaOrphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "List assets nothing references",
	RunE: run("FindOrphans", func(cmd *cobra.Command, a *app.CMSApp, args []string) error {
		orphans, err := a.Storage().References().FindOrphans(cmd.Context())
		if err != nil {
			return err
		}
		for _, it := range orphans {
			fmt.Printf("%s  %s  %d bytes\n", it.ID(), it.String("originalName"), int64Field(it, "size"))
		}
		fmt.Printf("%d unreferenced asset(s)\n", len(orphans))
		return nil
	}),
}

func int64Field(it cms.Item, field string) int64 {
	switch v := it[field].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

func uploadOptions(cmd *cobra.Command) app.UploadOptions {
	recursive, _ := cmd.Flags().GetBool("recursive")
	by, _ := cmd.Flags().GetString("by")
	tags, _ := cmd.Flags().GetStringSlice("tag")
	return app.UploadOptions{Recursive: recursive, UploadedBy: by, Tags: tags}
}

func addMediaCommands(root *cobra.Command) {
	for _, c := range []*cobra.Command{mediaUploadCmd, mediaReplaceCmd} {
		c.Flags().String("by", os.Getenv("USER"), "Uploader recorded on the asset")
		c.Flags().StringSlice("tag", nil, "Tag to attach (repeatable)")
	}
	mediaUploadCmd.Flags().BoolP("recursive", "r", false, "Recurse into subdirectories")

	mediaCmd.AddCommand(mediaUploadCmd, mediaReplaceCmd, mediaDeleteCmd, mediaGetCmd, mediaRefsCmd, mediaOrphansCmd)
	root.AddCommand(mediaCmd)
}
