package transcript

import "github.com/charmbracelet/glamour"

const noMarginStyle = `{
	"document": {
		"margin": 0,
		"block_prefix": "",
		"block_suffix": ""
	}
}`

// markdownRenderer wraps glamour for one width and style.
type markdownRenderer struct {
	r     *glamour.TermRenderer
	width int
	style string
}

// newMarkdownRenderer uses a fixed style path rather than WithAutoStyle so
// glamour never queries the terminal while bubbletea owns stdin.
func newMarkdownRenderer(width int, style string) (*markdownRenderer, error) {
	if style == "" {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath(style),
		glamour.WithStylesFromJSONBytes([]byte(noMarginStyle)),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	return &markdownRenderer{r: r, width: width, style: style}, nil
}
