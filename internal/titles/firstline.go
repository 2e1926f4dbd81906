package titles

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// FirstLine derives a title locally from the first non-blank line of the
// prompt, truncated to MaxWidth cells. It is used when no title service is
// configured.
type FirstLine struct {
	MaxWidth int
}

// GenerateTitle implements Generator.
func (f FirstLine) GenerateTitle(_ context.Context, prompt string) (string, error) {
	width := f.MaxWidth
	if width <= 0 {
		width = 48
	}
	for _, line := range strings.Split(prompt, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			return ansi.Truncate(line, width, "…"), nil
		}
	}
	return "", errors.New("prompt has no text")
}
