package daemon

import (
	"fmt"
	"strings"

	"github.com/stakaya/planday/internal/timer"
)

// FormatStatus renders a StatusPayload for the terminal.
func FormatStatus(p StatusPayload) string {
	var b strings.Builder

	if !p.Loaded {
		b.WriteString("Day plan not loaded (waiting for identity or first snapshot)\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Plan for %s  energy=%s  workout=%s  %d%% done\n",
		p.Plan.Date, p.Plan.EnergyLevel, onOff(p.Plan.WorkoutMode), p.Completion)

	if len(p.Plan.Tasks) == 0 {
		b.WriteString("  (no tasks)\n")
	}
	for _, t := range p.Plan.Tasks {
		mark := " "
		if t.Completed {
			mark = "x"
		}
		fmt.Fprintf(&b, "  [%s] %s  %-30s %-8s %3dm  %s\n",
			mark, t.Time, t.Title, t.Type, t.DisplayMinutes(), t.ID)
	}

	switch p.TimerPhase {
	case string(timer.PhaseRunning):
		fmt.Fprintf(&b, "Timer: %s remaining on %s\n", p.Remaining, p.Timer.ActiveTaskID)
	case string(timer.PhaseExpired):
		fmt.Fprintf(&b, "Timer: expired on %s\n", p.Timer.ActiveTaskID)
	default:
		b.WriteString("Timer: idle\n")
	}
	return b.String()
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
