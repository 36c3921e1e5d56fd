package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"launchpad/internal/app"
	"launchpad/internal/store"
)

func newItemsCmd(sess *session, opts *options) *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "items <category-id>",
		Short: "List the items of a category",
		Long: `Lists a category in display order. Use "favorites" for the Favorites view.

Examples:
  launchpad items favorites
  launchpad items shell-1a2b3c4d --query ssh`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := sess.service.Items(cmd.Context(), args[0], query)
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), items)
			}
			for _, item := range items {
				star := " "
				if item.IsFavorite {
					star = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %-30s %-9s %s\n", star, item.Label, item.Kind, item.ID)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "Only show items whose label or body contains this text")
	return cmd
}

func newAddItemCmd(sess *session, opts *options) *cobra.Command {
	var (
		input     app.ItemInput
		variables []string
	)
	cmd := &cobra.Command{
		Use:   "add-item <category-id> <label>",
		Short: "Create an item, or edit one with --id",
		Long: `Appends an item to a category. The kind decides which flags are kept:
simple and prompt use --body, variables uses --body and --var, workflow uses --step.

Examples:
  launchpad add-item shell-1a2b3c4d "List files" --body "ls -la"
  launchpad add-item shell-1a2b3c4d SSH --kind variables --body "ssh {user}@{host}" --var user=root --var host
  launchpad add-item ops-5e6f7a8b Release --kind workflow --step "git tag v1" --step "git push --tags"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input.Label = args[1]
			input.Variables = parseVariables(variables)
			item, _, err := sess.service.UpsertItem(cmd.Context(), args[0], input)
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), item)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s item %s (%s)\n", item.Kind, item.Label, item.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&input.ID, "id", "", "Id of an existing item to edit")
	cmd.Flags().StringVar(&input.Kind, "kind", "simple", "Item kind: simple, variables, workflow or prompt")
	cmd.Flags().StringVar(&input.Body, "body", "", "Command or prompt text")
	cmd.Flags().StringArrayVar(&variables, "var", nil, "Variable as name or name=placeholder (repeatable)")
	cmd.Flags().StringArrayVar(&input.Steps, "step", nil, "Workflow step (repeatable, in order)")
	cmd.Flags().BoolVar(&input.IsFavorite, "favorite", false, "Mark the new item as a favorite")
	return cmd
}

func parseVariables(raw []string) []store.Variable {
	out := make([]store.Variable, 0, len(raw))
	for _, entry := range raw {
		name, placeholder, _ := strings.Cut(entry, "=")
		out = append(out, store.Variable{Name: name, Placeholder: placeholder})
	}
	return out
}

func newFavoriteCmd(sess *session, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "favorite <item-id>",
		Short: "Toggle the favorite flag of an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item, _, err := sess.service.ToggleFavorite(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), item)
			}
			state := "removed from"
			if item.IsFavorite {
				state = "added to"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s favorites\n", item.Label, state)
			return nil
		},
	}
}

func newRenderCmd(sess *session, opts *options) *cobra.Command {
	var (
		values map[string]string
		step   int
	)
	cmd := &cobra.Command{
		Use:   "render <category-id> <item-id>",
		Short: "Print the text an item copies",
		Long: `Prints the item text with variables filled in. For workflows --step picks
the step to print.

Examples:
  launchpad render shell-1a2b3c4d cmd_0f3a --set user=root --set host=db1
  launchpad render ops-5e6f7a8b cmd_9c1d --step 1`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("step") {
				text, next, err := sess.service.WorkflowStep(cmd.Context(), args[0], args[1], step)
				if err != nil {
					return err
				}
				if opts.json {
					return printJSON(cmd.OutOrStdout(), map[string]any{"text": text, "step": step, "next": next})
				}
				fmt.Fprintln(cmd.OutOrStdout(), text)
				return nil
			}

			text, err := sess.service.RenderItem(cmd.Context(), args[0], args[1], values)
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), map[string]string{"text": text})
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().StringToStringVar(&values, "set", nil, "Variable value as name=value (repeatable)")
	cmd.Flags().IntVar(&step, "step", 0, "Workflow step to print, starting at 0")
	return cmd
}
