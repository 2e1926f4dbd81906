package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/zjrosen/agentdesk/internal/infrastructure/sqlite"
	"github.com/zjrosen/agentdesk/internal/library"
	"github.com/zjrosen/agentdesk/internal/presentation"
)

var (
	cwdsLimit int
	cwdsJSON  bool
)

var cwdsCmd = &cobra.Command{
	Use:   "cwds",
	Short: "List recently used working directories",
	Long: `List the working directories of recently started sessions, newest first.

The newest entry pre-fills the working directory when session.default_cwd
is not set.

Examples:
  agentdesk cwds
  agentdesk cwds --limit 3
  cd "$(agentdesk cwds --limit 1)"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		limit := cwdsLimit
		if !cmd.Flags().Changed("limit") {
			limit = cfg.Session.RecentCwdLimit
		}
		return withLibrary(func(db *sqlite.DB) error {
			return listCwds(cmd.Context(), db.CwdRepository(), cmd.OutOrStdout(), limit, cwdsJSON)
		})
	},
}

func init() {
	cwdsCmd.Flags().IntVarP(&cwdsLimit, "limit", "n", 10, "maximum number of directories (default: session.recent_cwd_limit)")
	cwdsCmd.Flags().BoolVar(&cwdsJSON, "json", false, "print a JSON array")
	rootCmd.AddCommand(cwdsCmd)
}

func listCwds(ctx context.Context, repo library.CwdRepository, out io.Writer, limit int, asJSON bool) error {
	if limit <= 0 {
		return fmt.Errorf("--limit must be positive, got %d", limit)
	}
	cwds, err := repo.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if asJSON {
		return presentation.NewFormatter(out).FormatCwds(cwds)
	}
	for _, c := range cwds {
		if _, err := fmt.Fprintln(out, c); err != nil {
			return err
		}
	}
	return nil
}
