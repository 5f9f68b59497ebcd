package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/mmr-tortoise/devlaunch/internal/model"
)

// styles are bound to one writer, so colors only appear on a terminal.
type styles struct {
	label lipgloss.Style
	ok    lipgloss.Style
	muted lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		label: r.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		ok:    r.NewStyle().Foreground(lipgloss.Color("46")),
		muted: r.NewStyle().Foreground(lipgloss.Color("245")),
	}
}

// printRows prints aligned "Label: value" lines.
func (s styles) printRows(w io.Writer, rows [][2]string) {
	width := 0
	for _, row := range rows {
		if len(row[0]) > width {
			width = len(row[0])
		}
	}
	for _, row := range rows {
		label := s.label.Render(fmt.Sprintf("%-*s", width+1, row[0]+":"))
		fmt.Fprintf(w, "%s %s\n", label, row[1])
	}
}

// FormatContainerTable renders containers as a fixed-width table:
//
//	SESSION                     CONTAINER                   STATUS
//	devlaunch-api-3f9a1c        devlaunch-api-3f9a1c        exited
func FormatContainerTable(containers []model.ContainerInfo) string {
	out := fmt.Sprintf("%-28s %-28s %s\n", "SESSION", "CONTAINER", "STATUS")
	for _, c := range containers {
		session := c.SessionID
		if session == "" {
			session = "-"
		}
		out += fmt.Sprintf("%-28s %-28s %s\n", session, c.ContainerName, c.Status)
	}
	return out
}
