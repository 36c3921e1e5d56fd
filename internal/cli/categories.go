package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"launchpad/internal/app"
)

func newCategoriesCmd(sess *session, opts *options) *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List categories in display order",
		Long: `Lists the Favorites view followed by every category in display order.

Examples:
  launchpad categories
  launchpad categories --query git --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			categories, err := sess.service.Categories(cmd.Context(), query)
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), categories)
			}
			for _, c := range categories {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\t%s\n", c.Icon, c.Name, c.ID)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "Only show categories whose name contains this text")
	return cmd
}

func newAddCategoryCmd(sess *session, opts *options) *cobra.Command {
	var input app.CategoryInput
	cmd := &cobra.Command{
		Use:   "add-category <name>",
		Short: "Create a category, or rename one with --id",
		Long: `Appends a category at the end of the list. With --id an existing category
keeps its position and only its name and icon change.

Examples:
  launchpad add-category Docker --icon 🐳
  launchpad add-category "Docker & Compose" --id docker-1a2b3c4d`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input.Name = args[0]
			category, _, err := sess.service.UpsertCategory(cmd.Context(), input)
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), category)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved category %s (%s)\n", category.Name, category.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&input.Icon, "icon", "", "Icon shown next to the name")
	cmd.Flags().StringVar(&input.ID, "id", "", "Id of an existing category to edit")
	return cmd
}

func newMoveCmd(sess *session, opts *options) *cobra.Command {
	var input app.ReorderInput
	cmd := &cobra.Command{
		Use:   "move <categories|items> <index> <up|down>",
		Short: "Swap an entry with its neighbour",
		Long: `Moves the entry at a display index one place up or down. Items need
--category. Moving past either end does nothing.

Examples:
  launchpad move categories 2 up
  launchpad move items 0 down --category shell-1a2b3c4d`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			input.List = args[0]
			if _, err := fmt.Sscanf(args[1], "%d", &input.Index); err != nil {
				return fmt.Errorf("index must be a number: %q", args[1])
			}
			input.Direction = args[2]
			moved, _, err := sess.service.Reorder(cmd.Context(), input)
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), map[string]bool{"moved": moved})
			}
			if !moved {
				fmt.Fprintln(cmd.OutOrStdout(), "Already at the edge, nothing moved")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved %s %d %s\n", input.List, input.Index, input.Direction)
			return nil
		},
	}
	cmd.Flags().StringVar(&input.CategoryID, "category", "", "Category whose items are moved")
	return cmd
}
