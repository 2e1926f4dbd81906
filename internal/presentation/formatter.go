package presentation

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/charmbracelet/x/ansi"
)

// Formatter handles output formatting
type Formatter struct {
	writer io.Writer
}

// NewFormatter creates a new formatter
func NewFormatter(writer io.Writer) *Formatter {
	return &Formatter{
		writer: writer,
	}
}

// FormatPrompts formats a list of prompts as JSON
func (f *Formatter) FormatPrompts(prompts []PromptDTO) error {
	return f.encode(prompts)
}

// FormatPrompt formats a single prompt as JSON
func (f *Formatter) FormatPrompt(p PromptDTO) error {
	return f.encode(p)
}

// FormatCwds formats recent working directories as a JSON array
func (f *Formatter) FormatCwds(cwds []string) error {
	if cwds == nil {
		cwds = []string{}
	}
	return f.encode(cwds)
}

// FormatPromptTable writes a short id, title and first line per prompt.
func (f *Formatter) FormatPromptTable(prompts []PromptDTO) error {
	tw := tabwriter.NewWriter(f.writer, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tTITLE\tUPDATED")
	for _, p := range prompts {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n",
			shortID(p.ID),
			ansi.Truncate(p.Title, 40, "…"),
			p.UpdatedAt.Local().Format("2006-01-02 15:04"),
		)
	}
	return tw.Flush()
}

func (f *Formatter) encode(v any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
