package main

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"agriquest/models"
	"agriquest/tracker"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func newPrinter(tag string) *message.Printer {
	t, err := language.Parse(tag)
	if err != nil {
		t = language.English
	}
	return message.NewPrinter(t)
}

func formatPoints(p *message.Printer, n int64) string {
	return p.Sprintf("%d pts", n)
}

var stateLabels = map[tracker.QuestState]string{
	tracker.QuestNotStarted:   "todo",
	tracker.QuestInProgress:   "doing",
	tracker.QuestReadyToClaim: "ready",
	tracker.QuestClaimed:      "claimed",
}

func stateLabel(s tracker.QuestState) string {
	if l, ok := stateLabels[s]; ok {
		return l
	}
	return string(s)
}

// parseStep turns a 1-based step number into an index.
func parseStep(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("step must be a number starting at 1, got %q", s)
	}
	return n - 1, nil
}

func parseEventKind(s string) (models.EventKind, error) {
	kind := models.EventKind(s)
	if !slices.Contains(models.EventKinds, kind) {
		return "", fmt.Errorf("unknown event kind %q", s)
	}
	return kind, nil
}

// parseEventData reads key=value pairs. Values that parse as booleans or
// numbers are stored as such, matching what a JSON round trip produces.
func parseEventData(pairs []string) (map[string]any, error) {
	data := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", pair)
		}
		if b, err := strconv.ParseBool(value); err == nil {
			data[key] = b
		} else if f, err := strconv.ParseFloat(value, 64); err == nil {
			data[key] = f
		} else {
			data[key] = value
		}
	}
	return data, nil
}

func printProfile(w io.Writer, p *message.Printer, profile models.Profile, total int64) {
	name := "(unnamed)"
	if profile.Name != nil && *profile.Name != "" {
		name = *profile.Name
	}
	fmt.Fprintf(w, "%s  %s\n", name, profile.ID)
	fmt.Fprintf(w, "Points: %s of %s available\n", formatPoints(p, profile.Points), formatPoints(p, total))

	sync := "never synced"
	if profile.LastSyncAt != nil {
		sync = "last sync " + profile.LastSyncAt.Local().Format("2006-01-02 15:04")
	}
	fmt.Fprintf(w, "Queued changes: %d (%s)\n", len(profile.Pending), sync)
}

func printQuest(w io.Writer, p *message.Printer, qp tracker.QuestProgress, steps bool) {
	line := fmt.Sprintf("[%-7s] %-20s %-18s %d/%d  +%s",
		stateLabel(qp.State), qp.Quest.ID, qp.Quest.Title, qp.DoneCount, len(qp.Steps), formatPoints(p, qp.Quest.Reward))
	if qp.Quest.RequiresEvidence {
		status := "none"
		if qp.Evidence != nil {
			status = string(qp.Evidence.Status)
		}
		line += "  evidence: " + status
	}
	fmt.Fprintln(w, line)
	if !steps {
		return
	}
	for _, s := range qp.Steps {
		mark := " "
		switch {
		case s.AutoVerified:
			mark = "a"
		case s.Done:
			mark = "x"
		}
		fmt.Fprintf(w, "    %d. [%s] %s\n", s.Index+1, mark, s.Description)
	}
}

func printRevocations(w io.Writer, revoked []tracker.Revocation) {
	for _, r := range revoked {
		fmt.Fprintf(w, "Reward revoked: %s\n", r)
	}
}

func printEvidence(w io.Writer, items []models.Evidence) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No evidence records.")
		return
	}
	for _, ev := range items {
		fmt.Fprintf(w, "%s  %-8s %-18s %s  %s\n",
			ev.ID, ev.Status, ev.QuestID, ev.ProfileID, ev.CreatedAt.Local().Format("2006-01-02 15:04"))
		if ev.ImageURL != "" {
			fmt.Fprintf(w, "    image: %s\n", ev.ImageURL)
		}
		if ev.Notes != "" {
			fmt.Fprintf(w, "    notes: %s\n", ev.Notes)
		}
	}
}
