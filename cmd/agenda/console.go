package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/prenatal/agenda/internal/client"
	"github.com/prenatal/agenda/internal/config"
	"github.com/prenatal/agenda/internal/console"
	"github.com/prenatal/agenda/internal/domain/appointment"
	"github.com/prenatal/agenda/internal/domain/patient"
	"github.com/prenatal/agenda/internal/platform/logging"
	"github.com/prenatal/agenda/internal/views"
	"github.com/prenatal/agenda/internal/workflow"
)

// openerFunc adapts a function to views.Opener.
type openerFunc func(appointment.Appointment)

func (f openerFunc) Open(a appointment.Appointment) { f(a) }

// session is one console invocation: API client, review controller and
// view synchronizer wired together.
type session struct {
	api    *client.Client
	ctrl   *workflow.Controller
	views  *views.Synchronizer
	prompt *console.Prompt
	out    io.Writer
	// opened receives when the calendar surfaces a review on its own.
	opened chan struct{}
	delay  time.Duration
}

func newSession(cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateClient(); err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return buildSession(cfg, loc, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr()), nil
}

func buildSession(cfg *config.Config, loc *time.Location, in io.Reader, out, errOut io.Writer) *session {
	level := cfg.LogLevel
	if level == "" {
		level = "warn"
	}
	logger := logging.NewWithWriter(zerolog.ConsoleWriter{Out: errOut, TimeFormat: time.Kitchen, NoColor: true}, level).
		With().Str("component", "console").Logger()

	s := &session{out: out, opened: make(chan struct{}, 1), delay: cfg.AutoSurfaceDelay}
	s.api = client.New(cfg.APIBaseURL,
		client.WithToken(cfg.APIToken),
		client.WithTimeout(cfg.APITimeout),
		client.WithLogger(logger),
	)
	notifier := console.NewNotifier(out)
	s.ctrl = workflow.New(s.api, workflow.WithNotifier(notifier), workflow.WithLogger(logger))
	opener := openerFunc(func(a appointment.Appointment) {
		s.ctrl.Open(a)
		select {
		case s.opened <- struct{}{}:
		default:
		}
	})
	s.views = views.New(s.api, opener, console.NewRenderer(out),
		views.WithClock(time.Now, loc),
		views.WithAutoSurfaceDelay(cfg.AutoSurfaceDelay),
		views.WithNotifier(notifier),
		views.WithLogger(logger),
	)
	s.ctrl.SetHooks(s.views.Hooks())
	s.prompt = console.NewPrompt(in, out, s.ctrl)
	return s
}

// waitForSurface blocks until the calendar opens a review or the delay has
// clearly passed.
func (s *session) waitForSurface(ctx context.Context) bool {
	t := time.NewTimer(s.delay + 2*time.Second)
	defer t.Stop()
	select {
	case <-s.opened:
		return true
	case <-t.C:
		return false
	case <-ctx.Done():
		return false
	}
}

func agendaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agenda",
		Short: "List every appointment, flagging the ones awaiting review",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			return s.views.Activate(cmd.Context(), views.KindAgenda)
		},
	}
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past appointments, latest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			var f views.HistoryFilter
			f.Status, _ = cmd.Flags().GetString("status")
			f.From, _ = cmd.Flags().GetString("from")
			f.To, _ = cmd.Flags().GetString("to")

			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			if err := s.views.SetHistoryFilter(f); err != nil {
				return err
			}
			return s.views.Activate(cmd.Context(), views.KindHistory)
		},
	}
	cmd.Flags().String("status", "", "Status filter: pending, agendado, confirmado, realizado, cancelado or falta")
	cmd.Flags().String("from", "", "First date, YYYY-MM-DD")
	cmd.Flags().String("to", "", "Last date, YYYY-MM-DD")
	return cmd
}

func calendarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Show a month; expanding a day surfaces its earliest pending review",
		RunE: func(cmd *cobra.Command, args []string) error {
			month, _ := cmd.Flags().GetString("month")
			day, _ := cmd.Flags().GetString("day")
			ctx := cmd.Context()

			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			m, err := calendarMonth(month, day)
			if err != nil {
				return err
			}
			if !m.IsZero() {
				if err := s.views.SetMonth(ctx, m); err != nil {
					return err
				}
			}
			if err := s.views.Activate(ctx, views.KindCalendar); err != nil {
				return err
			}
			if day == "" {
				return nil
			}
			if err := s.views.ExpandDay(day); err != nil {
				return err
			}
			if !hasActionable(s.views.Snapshot().Rows) {
				return nil
			}
			if !s.waitForSurface(ctx) {
				return nil
			}
			return s.prompt.Run(ctx)
		},
	}
	cmd.Flags().String("month", "", "Month to show, YYYY-MM (default: current)")
	cmd.Flags().String("day", "", "Day to expand, YYYY-MM-DD")
	return cmd
}

// calendarMonth picks the month to show from --month, or from --day when
// only the day is given. Zero means the current month.
func calendarMonth(month, day string) (time.Time, error) {
	var d time.Time
	if day != "" {
		var err error
		if d, err = time.Parse("2006-01-02", day); err != nil {
			return time.Time{}, fmt.Errorf("--day must be YYYY-MM-DD")
		}
	}
	if month == "" {
		return d, nil
	}
	m, err := time.Parse("2006-01", month)
	if err != nil {
		return time.Time{}, fmt.Errorf("--month must be YYYY-MM")
	}
	if day != "" && (d.Year() != m.Year() || d.Month() != m.Month()) {
		return time.Time{}, fmt.Errorf("--day %s is not in %s", day, month)
	}
	return m, nil
}

func hasActionable(rows []views.Row) bool {
	for _, r := range rows {
		if r.Actionable {
			return true
		}
	}
	return false
}

func reviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "review <appointment-id>",
		Short: "Record whether a pending appointment was performed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			if err := s.views.Activate(ctx, views.KindAgenda); err != nil {
				return err
			}
			if err := s.views.OpenReview(args[0]); err != nil {
				return err
			}
			return s.prompt.Run(ctx)
		},
	}
}

func dueSoonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "due-soon",
		Short: "List patients whose due date is near",
		RunE: func(cmd *cobra.Command, args []string) error {
			days, _ := cmd.Flags().GetInt("dias")
			if days <= 0 {
				return fmt.Errorf("--dias must be positive")
			}
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			patients, err := s.api.NearTermPatients(cmd.Context(), days)
			if err != nil {
				return err
			}
			printNearTerm(s.out, patients)
			return nil
		},
	}
	cmd.Flags().Int("dias", patient.DefaultDueWindow, "Window in days")
	return cmd
}

func printNearTerm(w io.Writer, patients []patient.NearTerm) {
	if len(patients) == 0 {
		fmt.Fprintln(w, "No patients due soon.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PATIENT\tUNIT\tDUE DATE\tDAYS")
	for _, p := range patients {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n",
			p.Identification.Name, p.Identification.HealthUnit,
			appointment.FormatDate(p.Assessment.DueDate), p.DaysUntilDue)
	}
	tw.Flush()
}
