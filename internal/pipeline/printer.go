package pipeline

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

const maxOutputLines = 3

// Printer renders human-readable step progress. It is purely
// observational: nothing here affects control flow.
type Printer struct {
	out   io.Writer
	ok    lipgloss.Style
	fail  lipgloss.Style
	warn  lipgloss.Style
	title lipgloss.Style
	dim   lipgloss.Style
}

// ColorEnabled reports whether f is a terminal that should get styled
// output.
func ColorEnabled(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// NewPrinter creates a Printer writing to out. With color disabled all
// styles render as plain text.
func NewPrinter(out io.Writer, color bool) *Printer {
	p := &Printer{
		out:   out,
		ok:    lipgloss.NewStyle(),
		fail:  lipgloss.NewStyle(),
		warn:  lipgloss.NewStyle(),
		title: lipgloss.NewStyle(),
		dim:   lipgloss.NewStyle(),
	}
	if color {
		p.ok = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
		p.fail = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
		p.warn = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
		p.title = lipgloss.NewStyle().Bold(true)
		p.dim = lipgloss.NewStyle().Faint(true)
	}
	return p
}

// StepHeader announces a step about to run. Index is 1-based.
func (p *Printer) StepHeader(index int, name string) {
	fmt.Fprintf(p.out, "\n%s\n", p.title.Render(fmt.Sprintf("Step %d: %s", index, name)))
	fmt.Fprintln(p.out, p.dim.Render(strings.Repeat("-", 50)))
}

// Attempt announces one candidate invocation.
func (p *Printer) Attempt(description, line string) {
	fmt.Fprintf(p.out, "  %s\n", description)
	fmt.Fprintf(p.out, "  %s\n", p.dim.Render("$ "+line))
}

// Success records a successful attempt with its truncated output.
func (p *Printer) Success(description, output string) {
	fmt.Fprintf(p.out, "  %s %s\n", p.ok.Render("✓"), description)
	p.printOutput(output)
}

// Failure records a failed attempt with its truncated stderr.
func (p *Printer) Failure(description, stderr string) {
	fmt.Fprintf(p.out, "  %s %s\n", p.fail.Render("✗"), description)
	p.printOutput(stderr)
}

// Degraded records a non-fatal optional-step failure.
func (p *Printer) Degraded(name, hint string) {
	fmt.Fprintf(p.out, "  %s %s failed, continuing without it\n", p.warn.Render("!"), name)
	if hint != "" {
		fmt.Fprintf(p.out, "  %s\n", p.dim.Render(hint))
	}
}

// Aborted records the step that halted the run.
func (p *Printer) Aborted(name, stderr string) {
	fmt.Fprintf(p.out, "\n%s %s\n", p.fail.Render("✗"), p.title.Render("Run aborted at step: "+name))
	p.printOutput(stderr)
}

// Interrupted records a user-requested cancellation.
func (p *Printer) Interrupted() {
	fmt.Fprintf(p.out, "\n%s\n", p.warn.Render("Run interrupted by user"))
}

// Summary prints the aggregated verdict counts.
func (p *Printer) Summary(s RunSummary) {
	fmt.Fprintf(p.out, "\nSuccessful steps: %d/%d\n", s.Succeeded, s.Total)
	if s.Total > 0 {
		fmt.Fprintf(p.out, "Success rate: %.1f%%\n", s.Ratio()*100)
	}
}

// Println writes a plain line through the printer's writer.
func (p *Printer) Println(line string) {
	fmt.Fprintln(p.out, line)
}

func (p *Printer) printOutput(text string) {
	lines := splitOutput(text)
	if len(lines) == 0 {
		return
	}
	shown := lines
	if len(shown) > maxOutputLines {
		shown = shown[:maxOutputLines]
	}
	for _, line := range shown {
		fmt.Fprintf(p.out, "    %s\n", p.dim.Render(line))
	}
	if rest := len(lines) - len(shown); rest > 0 {
		fmt.Fprintf(p.out, "    %s\n", p.dim.Render(fmt.Sprintf("... and %d more lines", rest)))
	}
}

func splitOutput(text string) []string {
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		if line = strings.TrimRight(line, "\r"); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
