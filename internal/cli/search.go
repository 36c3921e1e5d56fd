package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newSearchCmd(sess *session, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search item labels and bodies across all categories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := sess.service.Search(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			if resp.Total == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No items match %q\n", resp.Query)
				return nil
			}
			for _, r := range resp.Results {
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %-30s %s\n", r.CategoryName, r.Label, r.Snippet)
			}
			return nil
		},
	}
}

func newExportCmd(sess *session) *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a printable cheat sheet",
		Long: `Renders every category as an HTML or PDF cheat sheet. PDF needs a local
Chrome or Chromium.

Examples:
  launchpad export --output cheatsheet.html
  launchpad export --format pdf --output cheatsheet.pdf`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := sess.service.Export(cmd.Context(), format)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(result.Data)
				return err
			}
			if err := os.WriteFile(output, result.Data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "html", "Output format: html or pdf")
	cmd.Flags().StringVarP(&output, "output", "o", "", "File to write, stdout when empty")
	return cmd
}

func newHistoryCmd(sess *session, opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past saves (git store only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			commits, err := sess.service.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), commits)
			}
			for _, c := range commits {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n", shortHash(c.Hash), c.CreatedAt.Format("2006-01-02 15:04"), strings.TrimSpace(c.Message))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of saves to show")
	return cmd
}

func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
