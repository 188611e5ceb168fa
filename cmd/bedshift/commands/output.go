package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/bedshift/internal/adherence"
	"git.home.luguber.info/inful/bedshift/internal/api"
)

const timeLayout = "Mon 2006-01-02 15:04 MST"

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printState(w io.Writer, ds adherence.DisplayState, asJSON bool) error {
	if asJSON {
		return printJSON(w, ds)
	}
	if !ds.Configured {
		_, err := fmt.Fprintln(w, "No plan yet. Run 'bedshift setup' to start one.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	row := func(k string, format string, args ...any) {
		_, _ = fmt.Fprintf(tw, "%s:\t"+format+"\n", append([]any{k}, args...)...)
	}
	row("Phase", "%s", ds.Phase)
	row("Bedtime", "%s", ds.ProgressBedtime)
	row("Target", "%s", ds.TargetBedtime)
	if ds.RemainingMinutes > 0 {
		row("Remaining", "%d min in steps of %d min", ds.RemainingMinutes, ds.StepMinutes)
	} else {
		row("Remaining", "target reached")
	}
	row("Streak", "%d", ds.ConsecutiveSuccessDays)
	if ds.NextAlarmEpoch != nil {
		row("Next alarm", "%s", ds.NextAlarmEpoch.Local().Format(timeLayout))
	}
	if ds.DeliveryMode != "" {
		row("Delivery", "%s", ds.DeliveryMode)
	}
	if ds.LastOutcome != "" {
		row("Last night", "%s", ds.LastOutcome)
	}
	if ds.ReschedulePending {
		row("Warning", "triggers are not registered, run 'bedshift resume' after granting alarm access")
	}
	if ds.CycleID != "" {
		row("Cycle", "%s", ds.CycleID)
	}
	return tw.Flush()
}

func printHistory(w io.Writer, h api.HistoryResponse, asJSON bool) error {
	if asJSON {
		return printJSON(w, h)
	}
	s := h.Summary
	_, _ = fmt.Fprintf(w, "Confirmed %d, skipped %d, missed %d, denied %d. Streak %d (longest %d).\n",
		s.Confirmed, s.Skipped, s.Missed, s.Denied, s.CurrentStreak, s.LongestStreak)
	if len(h.Events) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "WHEN\tEVENT\tBEDTIME\tTARGET\tSTREAK")
	for _, e := range h.Events {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
			e.At.In(time.Local).Format(timeLayout), e.Type, e.ProgressBedtime, e.TargetBedtime, e.Streak)
	}
	return tw.Flush()
}
