// Package report renders command results for the terminal.
//
// A Printer writes styled output when its writer is a terminal and plain
// text otherwise, so results piped to a file or another program carry no
// escape sequences.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"golang.org/x/term"
)

// MaxCellWidth is the widest a table cell may render before it is truncated.
const MaxCellWidth = 40

// Palette colors, matching the default dark theme.
var (
	colorPrimary = lipgloss.Color("#A78BFA") // Purple (violet-400)
	colorSuccess = lipgloss.Color("#10B981") // Green
	colorWarning = lipgloss.Color("#F59E0B") // Amber
	colorError   = lipgloss.Color("#F87171") // Red (red-400)
	colorMuted   = lipgloss.Color("#9CA3AF") // Gray
)

// Printer writes titled sections, label/value fields and tables.
type Printer struct {
	w      io.Writer
	styled bool

	title  lipgloss.Style
	label  lipgloss.Style
	header lipgloss.Style
	ok     lipgloss.Style
	warn   lipgloss.Style
	fail   lipgloss.Style
}

// New returns a Printer for w. Output is styled only when w is a terminal.
func New(w io.Writer) *Printer {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return newPrinter(w, true)
	}
	return newPrinter(w, false)
}

// Plain returns a Printer that never styles its output.
func Plain(w io.Writer) *Printer {
	return newPrinter(w, false)
}

func newPrinter(w io.Writer, styled bool) *Printer {
	p := &Printer{w: w, styled: styled}
	if !styled {
		return p
	}
	r := lipgloss.NewRenderer(w)
	p.title = r.NewStyle().Bold(true).Foreground(colorPrimary)
	p.label = r.NewStyle().Foreground(colorMuted)
	p.header = r.NewStyle().Bold(true).Underline(true)
	p.ok = r.NewStyle().Bold(true).Foreground(colorSuccess)
	p.warn = r.NewStyle().Foreground(colorWarning)
	p.fail = r.NewStyle().Bold(true).Foreground(colorError)
	return p
}

// Styled reports whether the Printer emits styled output.
func (p *Printer) Styled() bool {
	return p.styled
}

// Writer returns the underlying writer.
func (p *Printer) Writer() io.Writer {
	return p.w
}

// Title writes a section heading followed by a rule.
func (p *Printer) Title(s string) {
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, p.render(p.title, strings.ToUpper(s)))
	fmt.Fprintln(p.w, p.render(p.label, strings.Repeat("─", 50)))
}

// Field writes one "label: value" line.
func (p *Printer) Field(label string, value any) {
	fmt.Fprintf(p.w, "%s %v\n", p.render(p.label, fmt.Sprintf("%-12s", label+":")), value)
}

// Status writes a pass or fail verdict.
func (p *Printer) Status(ok bool, msg string) {
	if ok {
		fmt.Fprintf(p.w, "%s %s\n", p.render(p.ok, "PASS"), msg)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", p.render(p.fail, "FAIL"), msg)
}

// Warn writes a highlighted warning line.
func (p *Printer) Warn(msg string) {
	fmt.Fprintln(p.w, p.render(p.warn, "warning: "+msg))
}

// Error writes a highlighted error line.
func (p *Printer) Error(msg string) {
	fmt.Fprintln(p.w, p.render(p.fail, "error: "+msg))
}

// Table writes rows under headers with columns padded to their widest cell.
// Cells wider than MaxCellWidth are truncated.
func (p *Printer) Table(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	cells := make([][]string, len(rows))
	for r, row := range rows {
		cells[r] = make([]string, len(headers))
		for i := range headers {
			if i >= len(row) {
				continue
			}
			c := Truncate(row[i], MaxCellWidth)
			cells[r][i] = c
			widths[i] = max(widths[i], lipgloss.Width(c))
		}
	}

	line := make([]string, len(headers))
	for i, h := range headers {
		line[i] = p.render(p.header, h) + pad(h, widths[i])
	}
	fmt.Fprintln(p.w, strings.TrimRight(strings.Join(line, "  "), " "))
	for _, row := range cells {
		for i, c := range row {
			line[i] = c + pad(c, widths[i])
		}
		fmt.Fprintln(p.w, strings.TrimRight(strings.Join(line, "  "), " "))
	}
}

func (p *Printer) render(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

func pad(s string, width int) string {
	if n := width - lipgloss.Width(s); n > 0 {
		return strings.Repeat(" ", n)
	}
	return ""
}

// Truncate shortens s to maxWidth visual columns, adding "..." if truncated.
// ANSI escape codes and wide characters are accounted for.
func Truncate(s string, maxWidth int) string {
	if maxWidth <= 3 {
		return "..."
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	return ansi.Truncate(s, maxWidth, "...")
}
