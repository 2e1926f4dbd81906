// Package overlay draws modal content over an already rendered view.
package overlay

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// Position is the anchor for the foreground block.
type Position int

const (
	Center Position = iota
	Top
	Bottom
)

// Config describes the canvas and where the foreground goes on it.
type Config struct {
	Width    int
	Height   int
	Position Position
	PadY     int // rows kept free from the anchored edge (Top and Bottom only)
}

// Place splices fg into bg. Styling on both sides of the foreground survives
// because cutting is done with ANSI-aware truncation.
func Place(cfg Config, fg, bg string) string {
	rows := strings.Split(bg, "\n")
	for len(rows) < cfg.Height {
		rows = append(rows, strings.Repeat(" ", cfg.Width))
	}

	block := strings.Split(fg, "\n")
	x, y := origin(cfg, lipgloss.Width(fg), len(block))

	for i, line := range block {
		if y+i >= len(rows) {
			break
		}
		rows[y+i] = splice(rows[y+i], line, x)
	}
	return strings.Join(rows, "\n")
}

func splice(row, insert string, x int) string {
	left := ansi.Truncate(row, x, "")
	if w := ansi.StringWidth(left); w < x {
		left += strings.Repeat(" ", x-w)
	}
	end := x + ansi.StringWidth(insert)
	right := ""
	if end < ansi.StringWidth(row) {
		right = ansi.TruncateLeft(row, end, "")
	}
	return left + insert + right
}

func origin(cfg Config, w, h int) (x, y int) {
	x = max((cfg.Width-w)/2, 0)
	switch cfg.Position {
	case Top:
		y = cfg.PadY
	case Bottom:
		y = cfg.Height - h - cfg.PadY
	default:
		y = (cfg.Height - h) / 2
	}
	return x, max(y, 0)
}
