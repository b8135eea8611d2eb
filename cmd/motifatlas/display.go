package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/rna3dhub/motifatlas/internal/cluster"
	"github.com/rna3dhub/motifatlas/internal/events"
	"github.com/rna3dhub/motifatlas/internal/release"
)

// printGroupChanges prints the group level change counts with the ids.
func printGroupChanges(c release.GroupChangeSet) {
	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Printf("%s\n", yellow("Motifs:"))
	printIDs("added", c.Added, color.FgGreen)
	printIDs("updated", c.Updated, color.FgCyan)
	printIDs("removed", c.Removed, color.FgRed)
	fmt.Printf("  %-9s %d\n", "unchanged", len(c.Unchanged))
	fmt.Println()
}

func printSetChanges(title string, c release.SetChangeSet) {
	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Printf("%s\n", yellow(title+":"))
	fmt.Printf("  %-9s %d\n", "added", len(c.Added))
	fmt.Printf("  %-9s %d\n", "removed", len(c.Removed))
	fmt.Printf("  %-9s %d\n", "unchanged", len(c.Unchanged))
	fmt.Println()
}

func printIDs(label string, ids []string, attr color.Attribute) {
	fmt.Printf("  %-9s %d\n", label, len(ids))
	if len(ids) == 0 {
		return
	}
	c := color.New(attr)
	fmt.Printf("            %s\n", c.Sprint(truncateString(strings.Join(ids, " "), 68)))
}

func formatCodes(r cluster.PairResult) string {
	names := make([]string, len(r.Codes))
	for i, c := range r.Codes {
		names[i] = c.String()
	}
	return strings.Join(names, ", ")
}

// displayEvent prints one pipeline event on two lines.
func displayEvent(event *events.PipelineEvent) {
	severityColor := getSeverityColor(event.Severity)
	timestamp := event.Timestamp.Format("15:04:05")

	stage := color.New(color.FgGreen).Sprint(event.Stage)
	eventType := color.New(color.FgMagenta).Sprint(event.Type)

	maxMessageLen := 60 - len(event.Stage) - len(string(event.Type))
	message := truncateString(event.Message, maxMessageLen)

	fmt.Printf("%s [%s] %s %s: %s\n",
		getEventIcon(event),
		timestamp,
		stage,
		eventType,
		severityColor.Sprint(message),
	)

	if metadata := extractEventMetadata(event); metadata != "" {
		gray := color.New(color.FgHiBlack)
		fmt.Printf("  %s\n", gray.Sprint(metadata))
	} else {
		fmt.Println()
	}
}

func getEventIcon(event *events.PipelineEvent) string {
	switch event.Type {
	case events.EventTypeStageStarted:
		return "▶"
	case events.EventTypeStageCompleted:
		return "✓"
	case events.EventTypeStageFailed:
		return "✗"
	case events.EventTypeStageSkipped:
		return "↷"
	case events.EventTypeReleaseCreated:
		return "★"
	}
	return "•"
}

func getSeverityColor(severity events.EventSeverity) *color.Color {
	switch severity {
	case events.SeverityInfo:
		return color.New(color.FgCyan)
	case events.SeverityWarning:
		return color.New(color.FgYellow)
	case events.SeverityError:
		return color.New(color.FgRed)
	case events.SeverityCritical:
		return color.New(color.FgRed, color.Bold)
	default:
		return color.New(color.FgWhite)
	}
}

// extractEventMetadata returns the key data fields of an event, pipe
// separated.
func extractEventMetadata(event *events.PipelineEvent) string {
	var fields []string
	switch event.Type {
	case events.EventTypeStageCompleted, events.EventTypeStageFailed, events.EventTypeStageSkipped:
		data, err := event.GetStageData()
		if err != nil {
			return ""
		}
		if data.Items > 0 {
			fields = append(fields, fmt.Sprintf("%d items", data.Items))
		}
		if data.Duration > 0 {
			fields = append(fields, formatDuration(data.Duration))
		}
		if data.Error != "" {
			fields = append(fields, "error: "+truncateString(data.Error, 50))
		}
	case events.EventTypeReleaseCreated:
		data, err := event.GetReleaseCreatedData()
		if err != nil {
			return ""
		}
		fields = append(fields,
			fmt.Sprintf("%s %s", data.LoopType, data.ReleaseID),
			fmt.Sprintf("%d motifs", data.Motifs),
			fmt.Sprintf("%d new", data.New),
			fmt.Sprintf("%d updated", data.Updated),
			fmt.Sprintf("%d exact", data.Exact),
		)
	}
	return strings.Join(fields, " | ")
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return s[:maxLen-3] + "..."
}
