// Package cli implements the launchpad command-line interface.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"launchpad/internal/app"
	"launchpad/internal/backend"
	"launchpad/internal/config"
	"launchpad/internal/export"
	"launchpad/internal/logging"
)

type options struct {
	backend  string
	dataFile string
	repoDir  string
	json     bool
	verbose  bool
}

// session is what PersistentPreRunE hands to every subcommand.
type session struct {
	service *app.Service
	close   backend.Closer
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	sess := &session{}

	root := &cobra.Command{
		Use:   "launchpad",
		Short: "Launchpad - a quick launcher for saved commands, prompts and workflows",
		Long: `Launchpad keeps categories of shell commands, AI prompts and multi-step
workflows in a single JSON document and lets you copy them with variables filled in.

The document lives in the store selected by LAUNCHPAD_STORE (file, git, postgres,
redis or s3); --store and --data-file override it for one invocation.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch cmd.Name() {
			case "help", "completion":
				return nil
			}

			cfg := config.Load()
			if opts.backend != "" {
				cfg.Backend = opts.backend
			}
			if opts.dataFile != "" {
				cfg.DataFile = opts.dataFile
			}
			if opts.repoDir != "" {
				cfg.RepoDir = opts.repoDir
			}

			logger := zap.NewNop()
			if opts.verbose {
				built, err := logging.New("debug", "console")
				if err != nil {
					return err
				}
				logger = built
			}

			docs, closeFn, err := backend.Open(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("open %s store: %w", cfg.Backend, err)
			}
			sess.logger = logger
			sess.close = closeFn
			sess.service = app.New(docs, app.Options{Logger: logger, Export: export.NewService(cfg.Author)})
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if sess.close == nil {
				return nil
			}
			_ = sess.logger.Sync()
			return sess.close()
		},
	}

	root.PersistentFlags().StringVar(&opts.backend, "store", "", "Store backend (file, git, postgres, redis, s3)")
	root.PersistentFlags().StringVar(&opts.dataFile, "data-file", "", "Path of the JSON document for the file store")
	root.PersistentFlags().StringVar(&opts.repoDir, "repo-dir", "", "Repository directory for the git store")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "Output in JSON format")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "V", false, "Log store activity to stderr")

	root.AddCommand(
		newCategoriesCmd(sess, opts),
		newItemsCmd(sess, opts),
		newAddCategoryCmd(sess, opts),
		newAddItemCmd(sess, opts),
		newFavoriteCmd(sess, opts),
		newMoveCmd(sess, opts),
		newRenderCmd(sess, opts),
		newSearchCmd(sess, opts),
		newExportCmd(sess),
		newHistoryCmd(sess, opts),
	)
	return root
}

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
