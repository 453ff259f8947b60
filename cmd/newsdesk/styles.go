package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"newsdesk/schedule"
	"newsdesk/types"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

const (
	colorPrimary = "#7D56F4"
	colorSuccess = "#04B575"
	colorError   = "#FF0000"
	colorInfo    = "#626262"
	colorBorder  = "#874BFD"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorPrimary)).
			MarginBottom(1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorSuccess))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorError))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorInfo))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().
			Padding(0, 1)
)

// renderTriggers prints the trigger table with each entry's next fire time after now
func renderTriggers(triggers map[string]schedule.Trigger, now time.Time) string {
	names := make([]string, 0, len(triggers))
	for name := range triggers {
		names = append(names, name)
	}
	sort.Strings(names)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(colorBorder))).
		Headers("TASK", "CLIENT", "SCHEDULE", "NEXT").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, name := range names {
		tr := triggers[name]
		t.Row(name, tr.ClientID, tr.Fields.String(), tr.Schedule.Next(now).Format(time.RFC3339))
	}
	return titleStyle.Render(fmt.Sprintf("%d trigger(s)", len(triggers))) + "\n" + t.Render()
}

func renderRejected(rejected []error) string {
	if len(rejected) == 0 {
		return ""
	}
	var b strings.Builder
	for _, err := range rejected {
		b.WriteString(errorStyle.Render("rejected: "+err.Error()) + "\n")
	}
	return b.String()
}

// renderRun summarises a finished run
func renderRun(snap types.RunSnapshot) string {
	var b strings.Builder
	state := statusStyle.Render(string(snap.State))
	if snap.State == types.StateFailed {
		state = errorStyle.Render(string(snap.State))
	}
	fmt.Fprintf(&b, "%s %s\n", titleStyle.Render("run "+snap.RunID), state)
	fmt.Fprintf(&b, "%s\n", infoStyle.Render(fmt.Sprintf(
		"client=%s fetched=%d added=%d annotated=%d delivered=%d",
		snap.ClientID, snap.Fetched, snap.Added, snap.Annotated, snap.Delivered)))
	for _, st := range types.Stages {
		if n := snap.Attempts[st]; n > 0 {
			fmt.Fprintf(&b, "%s\n", infoStyle.Render(fmt.Sprintf("%s attempts: %d", st, n)))
		}
	}
	if snap.Error != "" {
		fmt.Fprintf(&b, "%s\n", errorStyle.Render(snap.Error))
	}
	return b.String()
}
