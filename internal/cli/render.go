package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/roach88/casetrail/internal/ir"
)

// renderAggregate writes the human-readable form of a note aggregate.
func renderAggregate(w io.Writer, agg ir.Aggregate) error {
	n := agg.Note
	fmt.Fprintf(w, "Note %s: %s\n", n.ID, n.Title)
	fmt.Fprintf(w, "  submitted: %s\n", yesNo(n.IsSubmitted))
	if n.PublicDetails != "" {
		fmt.Fprintf(w, "  public:    %s\n", n.PublicDetails)
	}
	if n.PrivateDetails != "" {
		fmt.Fprintf(w, "  private:   %s\n", n.PrivateDetails)
	}
	if !n.InteractedAt.IsZero() {
		fmt.Fprintf(w, "  interacted: %s\n", formatTime(n.InteractedAt))
	}
	if !n.UpdatedAt.IsZero() {
		fmt.Fprintf(w, "  updated:   %s\n", formatTime(n.UpdatedAt))
	}

	fmt.Fprintf(w, "Moods (%d)\n", len(agg.Moods))
	for _, m := range agg.Moods {
		fmt.Fprintf(w, "  - %s %s\n", m.ID, m.Descriptor)
	}
	renderTasks(w, "Purposes", agg.Purposes)
	renderTasks(w, "Next steps", agg.NextSteps)
	renderServices(w, "Provided services", agg.ProvidedServices)
	renderServices(w, "Requested services", agg.RequestedServices)
	if fp, err := ir.Fingerprint(agg); err == nil {
		fmt.Fprintf(w, "Fingerprint: %s\n", fp)
	}
	return nil
}

func renderTasks(w io.Writer, heading string, tasks []ir.Task) {
	fmt.Fprintf(w, "%s (%d)\n", heading, len(tasks))
	for _, t := range tasks {
		fmt.Fprintf(w, "  - %s %s [%s]\n", t.ID, t.Title, t.Status)
	}
}

func renderServices(w io.Writer, heading string, reqs []ir.ServiceRequest) {
	fmt.Fprintf(w, "%s (%d)\n", heading, len(reqs))
	for _, r := range reqs {
		fmt.Fprintf(w, "  - %s %s [%s]\n", r.ID, r.Service, r.Status)
	}
}

// renderEvents writes one line per change event.
func renderEvents(w io.Writer, events []EventView) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, ev := range events {
		fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\t%s\n", ev.Seq, ev.Action, ev.Kind, ev.EntityID, ev.Label)
	}
	return tw.Flush()
}

// EventView is the CLI view of a change event.
type EventView struct {
	Seq       int64  `json:"seq"`
	ContextID string `json:"context_id"`
	Label     string `json:"label"`
	Kind      string `json:"kind"`
	EntityID  string `json:"entity_id"`
	Action    string `json:"action"`
	Digest    string `json:"digest"`
}

func eventViews(events []ir.ChangeEvent) []EventView {
	out := make([]EventView, len(events))
	for i, ev := range events {
		digest, _ := ir.PayloadDigest(ev.Payload)
		out[i] = EventView{
			Seq:       ev.Seq,
			ContextID: ev.ContextID,
			Label:     ev.Label,
			Kind:      string(ev.EntityKind),
			EntityID:  ev.EntityID,
			Action:    string(ev.Action),
			Digest:    digest,
		}
	}
	return out
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
