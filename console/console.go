// Package console prints received chat lines for the user.
package console

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/pankaj/minechat/protocol"
)

// Printer writes chat lines and status notices to a terminal or pipe.
// Colour is applied only when the writer is a terminal.
type Printer struct {
	w      io.Writer
	layout string
	now    func() time.Time

	stamp  lipgloss.Style
	notice lipgloss.Style
}

// New returns a Printer that prefixes each line with its receipt time
// formatted with layout.
func New(w io.Writer, layout string) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:      w,
		layout: layout,
		now:    time.Now,
		stamp:  r.NewStyle().Foreground(lipgloss.Color("8")),
		notice: r.NewStyle().Foreground(lipgloss.Color("3")).Italic(true),
	}
}

// Print writes one chat line.
func (p *Printer) Print(line protocol.ChatLine) error {
	var err error
	if p.layout == "" {
		_, err = fmt.Fprintln(p.w, line.Text)
	} else {
		stamp := p.stamp.Render("[" + line.ReceivedAt.Format(p.layout) + "]")
		_, err = fmt.Fprintf(p.w, "%s %s\n", stamp, line.Text)
	}
	if err != nil {
		return fmt.Errorf("printing line: %w", err)
	}
	return nil
}

// Notice writes a status message such as "connection established".
func (p *Printer) Notice(msg string) error {
	var stamp string
	if p.layout != "" {
		stamp = p.stamp.Render("["+p.now().Format(p.layout)+"]") + " "
	}
	if _, err := fmt.Fprintf(p.w, "%s%s\n", stamp, p.notice.Render(msg)); err != nil {
		return fmt.Errorf("printing notice: %w", err)
	}
	return nil
}
