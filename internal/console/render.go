// Package console renders the views as text tables and drives a review
// from a line-oriented prompt.
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/prenatal/agenda/internal/domain/appointment"
	"github.com/prenatal/agenda/internal/views"
	"github.com/prenatal/agenda/internal/workflow"
)

// Renderer writes every snapshot it receives to w.
type Renderer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewRenderer(w io.Writer) *Renderer {
	return &Renderer{w: w}
}

func (r *Renderer) Render(s views.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch s.Kind {
	case views.KindAgenda:
		fmt.Fprintln(r.w, "== Agenda ==")
	case views.KindHistory:
		fmt.Fprintln(r.w, "== History ==")
		if f := describeFilter(s.Filter); f != "" {
			fmt.Fprintln(r.w, "Filter: "+f)
		}
	case views.KindCalendar:
		fmt.Fprintf(r.w, "== %s %d ==\n", s.Month.Month(), s.Month.Year())
	default:
		return
	}

	if s.Err != "" {
		fmt.Fprintln(r.w, "Error loading appointments: "+s.Err)
		return
	}
	if s.Kind == views.KindCalendar {
		r.calendar(s)
		if s.ExpandedDay == "" {
			return
		}
		fmt.Fprintf(r.w, "\n-- %s --\n", appointment.FormatDate(s.ExpandedDay))
	}
	r.rows(s.Rows, s.Kind == views.KindAgenda)
}

func describeFilter(f views.HistoryFilter) string {
	var parts []string
	if f.Status != "" {
		parts = append(parts, "status="+f.Status)
	}
	if f.From != "" {
		parts = append(parts, "from="+appointment.FormatDate(f.From))
	}
	if f.To != "" {
		parts = append(parts, "to="+appointment.FormatDate(f.To))
	}
	return strings.Join(parts, " ")
}

func (r *Renderer) calendar(s views.Snapshot) {
	tw := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DAY\tAPPOINTMENTS\tPENDING\t")
	for _, d := range s.Days {
		if d.Count == 0 && !d.Today {
			continue
		}
		day := fmt.Sprintf("%02d", d.Day)
		if d.Today {
			day += " (today)"
		}
		pending := ""
		if d.Pending > 0 {
			pending = fmt.Sprintf("%d", d.Pending)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t\n", day, d.Count, pending)
	}
	tw.Flush()
}

// rows prints one line per appointment. Pending rows carry the action hint
// with the id to pass to the review command.
func (r *Renderer) rows(rows []views.Row, flagLate bool) {
	if len(rows) == 0 {
		fmt.Fprintln(r.w, "No appointments.")
		return
	}
	tw := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tTIME\tPATIENT\tUNIT\tTYPE\tSTATUS\t\t")
	for _, row := range rows {
		a := row.Appointment
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			appointment.FormatDate(a.Date),
			appointment.FormatTime(a.Time),
			orNotInformed(a.PatientName),
			orNotInformed(a.HealthUnit),
			appointment.TypeLabel(a.Type),
			a.Status.Label(),
			flag(row, flagLate),
		)
	}
	tw.Flush()
}

func flag(row views.Row, flagLate bool) string {
	var parts []string
	switch row.Classification.Badge {
	case appointment.BadgePending:
		parts = append(parts, "! awaiting review (review "+row.Appointment.ID+")")
	case appointment.BadgeReviewed:
		parts = append(parts, "✓ reviewed")
	}
	if flagLate && row.Classification.Late && row.Classification.Badge == appointment.BadgeNone {
		parts = append(parts, "late")
	}
	return strings.Join(parts, " ")
}

func orNotInformed(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Not informed"
	}
	return s
}

// Notifier prints transient messages on their own line.
type Notifier struct {
	mu sync.Mutex
	w  io.Writer
}

func NewNotifier(w io.Writer) *Notifier {
	return &Notifier{w: w}
}

func (n *Notifier) Notify(level workflow.Level, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	prefix := "[ok]"
	if level == workflow.LevelError {
		prefix = "[error]"
	}
	fmt.Fprintln(n.w, prefix+" "+msg)
}
