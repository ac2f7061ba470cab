package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/openmined/syftnotes/internal/client/handlers"
)

var (
	// https://github.com/muesli/termenv/blob/master/ansicolors.go
	// https://github.com/fidian/ansi
	red       = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	green     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	yellow    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	cyan      = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	gray      = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	lightGray = lipgloss.NewStyle().Foreground(lipgloss.Color("248"))
	bold      = lipgloss.NewStyle().Bold(true)
)

func printKV(w io.Writer, key string, value any) {
	fmt.Fprintf(w, "%s %v\n", lightGray.Render(fmt.Sprintf("%-14s", key+":")), value)
}

func printReport(w io.Writer, r *handlers.SyncReport) {
	printKV(w, "imported", fmt.Sprintf("%d local, %d remote", r.Imported.Local, r.Imported.Remote))
	printKV(w, "committed", green.Render(joinOrDash(r.Committed)))
	printKV(w, "skipped", gray.Render(joinOrDash(r.Skipped)))
	if len(r.Failed) > 0 {
		printKV(w, "failed", red.Render(strings.Join(r.Failed, ", ")))
		for _, id := range r.Failed {
			if msg, ok := r.Errors[id]; ok {
				fmt.Fprintf(w, "  %s %s\n", cyan.Render(id), msg)
			}
		}
	}
	printKV(w, "commands", r.Commands)
	printKV(w, "dropped", r.Dropped)
	printKV(w, "duration", fmt.Sprintf("%dms", r.DurationMs))
	if r.Cancelled {
		fmt.Fprintln(w, yellow.Render("pass cancelled before visiting every note"))
	}
}

func joinOrDash(s []string) string {
	if len(s) == 0 {
		return "-"
	}
	return strings.Join(s, ", ")
}
