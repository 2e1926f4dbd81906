package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/zjrosen/agentdesk/internal/infrastructure/sqlite"
	"github.com/zjrosen/agentdesk/internal/library"
	"github.com/zjrosen/agentdesk/internal/presentation"
)

var (
	promptTitle   string
	promptContent string
	promptFile    string
	promptsJSON   bool
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Manage the saved prompt library",
	Long: `Manage saved prompts. Saved prompts can be inserted into the input from the
command palette (ctrl+k, "Insert Prompt...").

IDs may be abbreviated to any unique prefix.

Examples:
  agentdesk prompts list
  agentdesk prompts add --title "Review" --content "Review this diff for bugs"
  git diff | agentdesk prompts add --title "Diff context"
  agentdesk prompts edit 3f2a --title "Careful review"
  agentdesk prompts rm 3f2a`,
}

var promptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved prompts, most recently updated first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withLibrary(func(db *sqlite.DB) error {
			return listPrompts(cmd.Context(), db.PromptRepository(), cmd.OutOrStdout(), promptsJSON)
		})
	},
}

var promptsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one saved prompt as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLibrary(func(db *sqlite.DB) error {
			p, err := db.PromptRepository().FindByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return presentation.NewFormatter(cmd.OutOrStdout()).FormatPrompt(presentation.FromDomainPrompt(p))
		})
	},
}

var promptsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Save a new prompt",
	Long: `Save a new prompt. Content comes from --content, --file, or standard input
when neither is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		content, err := readContent(cmd.InOrStdin(), promptContent, promptFile, true)
		if err != nil {
			return err
		}
		return withLibrary(func(db *sqlite.DB) error {
			return addPrompt(cmd.Context(), db.PromptRepository(), cmd.OutOrStdout(), promptTitle, content, time.Now())
		})
	},
}

var promptsEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change a saved prompt's title or content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("title") && promptContent == "" && promptFile == "" {
			return fmt.Errorf("nothing to change: pass --title, --content or --file")
		}
		content, err := readContent(cmd.InOrStdin(), promptContent, promptFile, false)
		if err != nil {
			return err
		}
		var title *string
		if cmd.Flags().Changed("title") {
			title = &promptTitle
		}
		return withLibrary(func(db *sqlite.DB) error {
			return editPrompt(cmd.Context(), db.PromptRepository(), cmd.OutOrStdout(), args[0], title, content, time.Now())
		})
	},
}

var promptsRmCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"delete"},
	Short:   "Delete a saved prompt",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLibrary(func(db *sqlite.DB) error {
			return removePrompt(cmd.Context(), db.PromptRepository(), cmd.OutOrStdout(), args[0])
		})
	},
}

func init() {
	promptsListCmd.Flags().BoolVar(&promptsJSON, "json", false, "print JSON instead of a table")
	for _, c := range []*cobra.Command{promptsAddCmd, promptsEditCmd} {
		c.Flags().StringVarP(&promptTitle, "title", "t", "", "prompt title")
		c.Flags().StringVar(&promptContent, "content", "", "prompt content")
		c.Flags().StringVarP(&promptFile, "file", "f", "", "read content from a file")
	}
	promptsCmd.AddCommand(promptsListCmd, promptsShowCmd, promptsAddCmd, promptsEditCmd, promptsRmCmd)
	rootCmd.AddCommand(promptsCmd)
}

// withLibrary opens the configured database for the duration of fn.
func withLibrary(fn func(db *sqlite.DB) error) (err error) {
	db, err := sqlite.NewDB(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(db)
}

// readContent resolves prompt content from the flag, a file, or stdin. An
// empty result with fromStdin false means "unchanged".
func readContent(stdin io.Reader, content, file string, fromStdin bool) (string, error) {
	switch {
	case content != "" && file != "":
		return "", fmt.Errorf("--content and --file are mutually exclusive")
	case content != "":
		return content, nil
	case file != "":
		data, err := os.ReadFile(file) //nolint:gosec // G304: user-selected prompt file
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", file, err)
		}
		return string(data), nil
	case fromStdin:
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	return "", nil
}

func listPrompts(ctx context.Context, repo library.PromptRepository, out io.Writer, asJSON bool) error {
	prompts, err := repo.List(ctx)
	if err != nil {
		return err
	}
	f := presentation.NewFormatter(out)
	if asJSON {
		return f.FormatPrompts(presentation.FromDomainPrompts(prompts))
	}
	if len(prompts) == 0 {
		_, err := fmt.Fprintln(out, "No saved prompts.")
		return err
	}
	return f.FormatPromptTable(presentation.FromDomainPrompts(prompts))
}

func addPrompt(ctx context.Context, repo library.PromptRepository, out io.Writer, title, content string, now time.Time) error {
	p, err := library.NewPrompt(title, strings.TrimRight(content, "\n"), now)
	if err != nil {
		return err
	}
	if err := repo.Save(ctx, p); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "Saved prompt %s (%s)\n", p.ID, p.Title)
	return err
}

func editPrompt(ctx context.Context, repo library.PromptRepository, out io.Writer, id string, title *string, content string, now time.Time) error {
	p, err := repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	newTitle := p.Title
	if title != nil {
		newTitle = *title
	}
	newContent := p.Content
	if content != "" {
		newContent = strings.TrimRight(content, "\n")
	}
	if err := p.Update(newTitle, newContent, now); err != nil {
		return err
	}
	if err := repo.Save(ctx, p); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "Updated prompt %s (%s)\n", p.ID, p.Title)
	return err
}

func removePrompt(ctx context.Context, repo library.PromptRepository, out io.Writer, id string) error {
	p, err := repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := repo.Delete(ctx, p.ID); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "Deleted prompt %s (%s)\n", p.ID, p.Title)
	return err
}
