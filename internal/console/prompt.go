package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/prenatal/agenda/internal/domain/appointment"
	"github.com/prenatal/agenda/internal/workflow"
)

// Reviewer is the part of *workflow.Controller the prompt drives.
type Reviewer interface {
	Snapshot() workflow.Snapshot
	ConfirmYes(ctx context.Context) error
	ConfirmNo() error
	CancelReason() error
	SubmitReason(ctx context.Context, text string) error
	Escape()
}

// Prompt asks the review questions on out and reads answers from in, one
// per line, until the review closes.
type Prompt struct {
	in  *bufio.Scanner
	out io.Writer
	rev Reviewer
}

func NewPrompt(in io.Reader, out io.Writer, rev Reviewer) *Prompt {
	return &Prompt{in: bufio.NewScanner(in), out: out, rev: rev}
}

const (
	cmdBack   = ":back"
	cmdEscape = ":esc"
)

// Run returns when the review is closed, either resolved or dismissed.
// End of input dismisses it.
func (p *Prompt) Run(ctx context.Context) error {
	for {
		snap := p.rev.Snapshot()
		if snap.State == workflow.Closed || snap.Subject == nil {
			return nil
		}
		if snap.Message != "" {
			fmt.Fprintln(p.out, snap.Message)
		}
		switch snap.State {
		case workflow.AwaitingDecision:
			fmt.Fprintf(p.out, "%s\n[y]es / [n]o / [esc]: ", question(*snap.Subject))
		case workflow.AwaitingReason:
			fmt.Fprintf(p.out, "Why was it not performed? (%s to go back, %s to close): ", cmdBack, cmdEscape)
		default:
			return fmt.Errorf("unexpected review state %s", snap.State)
		}

		line, ok := p.readLine()
		if !ok {
			p.rev.Escape()
			fmt.Fprintln(p.out)
			return p.in.Err()
		}
		if err := p.answer(ctx, snap.State, line); err != nil {
			return err
		}
	}
}

func (p *Prompt) readLine() (string, bool) {
	if !p.in.Scan() {
		return "", false
	}
	return p.in.Text(), true
}

// answer applies one line of input. Failed submissions are not returned:
// the controller keeps the question open with an inline message.
func (p *Prompt) answer(ctx context.Context, state workflow.State, line string) error {
	cmd := strings.ToLower(strings.TrimSpace(line))
	if cmd == "esc" || cmd == cmdEscape {
		p.rev.Escape()
		return nil
	}
	var err error
	switch state {
	case workflow.AwaitingDecision:
		switch cmd {
		case "y", "yes", "s", "sim":
			err = p.rev.ConfirmYes(ctx)
		case "n", "no", "nao", "não":
			err = p.rev.ConfirmNo()
		default:
			fmt.Fprintln(p.out, "Answer y or n, or esc to close.")
			return nil
		}
	case workflow.AwaitingReason:
		if cmd == cmdBack {
			err = p.rev.CancelReason()
		} else {
			err = p.rev.SubmitReason(ctx, line)
		}
	}
	if errors.Is(err, workflow.ErrInvalidTransition) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

func question(a appointment.Appointment) string {
	q := fmt.Sprintf("Was the appointment of %s on %s at %s performed?",
		orNotInformed(a.PatientName), appointment.FormatDate(a.Date), appointment.FormatTime(a.Time))
	if a.Type != "" {
		q += " (" + appointment.TypeLabel(a.Type) + ")"
	}
	return q
}
