package monitor

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Reporter renders a human-readable health report per tick.
type Reporter struct {
	out   io.Writer
	ok    lipgloss.Style
	bad   lipgloss.Style
	title lipgloss.Style
	dim   lipgloss.Style
}

// NewReporter creates a Reporter writing to out.
func NewReporter(out io.Writer, color bool) *Reporter {
	r := &Reporter{
		out:   out,
		ok:    lipgloss.NewStyle(),
		bad:   lipgloss.NewStyle(),
		title: lipgloss.NewStyle(),
		dim:   lipgloss.NewStyle(),
	}
	if color {
		r.ok = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
		r.bad = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
		r.title = lipgloss.NewStyle().Bold(true)
		r.dim = lipgloss.NewStyle().Faint(true)
	}
	return r
}

// Report writes the formatted snapshot.
func (r *Reporter) Report(s Snapshot, t Thresholds) {
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, r.dim.Render(strings.Repeat("=", 60)))
	fmt.Fprintln(r.out, r.title.Render("SYSTEM HEALTH REPORT - "+s.Timestamp.Format(time.RFC3339)))
	fmt.Fprintln(r.out, r.dim.Render(strings.Repeat("=", 60)))

	fmt.Fprintf(r.out, "%s CPU usage: %.1f%%\n", r.mark(s.CPUPercent <= t.CPU), s.CPUPercent)
	fmt.Fprintf(r.out, "%s Memory usage: %.1f%% (%.2fGB / %.2fGB)\n",
		r.mark(s.Memory.Percent <= t.Memory), s.Memory.Percent, s.Memory.UsedGB, s.Memory.TotalGB)
	if s.Disk != nil {
		fmt.Fprintf(r.out, "%s Disk usage (%s): %.1f%% (%.2fGB / %.2fGB)\n",
			r.mark(s.Disk.Percent <= t.Disk), s.Disk.Path, s.Disk.Percent, s.Disk.UsedGB, s.Disk.TotalGB)
	}

	if len(s.Processes) > 0 {
		fmt.Fprintln(r.out, "\nTop CPU processes:")
		for i, p := range s.Processes {
			if i == 5 {
				break
			}
			fmt.Fprintf(r.out, "  %d. %s (PID %d) - CPU %.1f%%, Memory %.1f%%\n",
				i+1, p.Name, p.PID, p.CPUPercent, p.MemoryPercent)
		}
	}
}

func (r *Reporter) mark(healthy bool) string {
	if healthy {
		return r.ok.Render("●")
	}
	return r.bad.Render("●")
}
