package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/openmined/syftnotes/internal/client/controlplane"
	"github.com/openmined/syftnotes/internal/client/handlers"
	"github.com/openmined/syftnotes/internal/merge"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newConflictsCmd())
}

func newConflictsCmd() *cobra.Command {
	conflictsCmd := &cobra.Command{
		Use:     "conflicts",
		Aliases: []string{"conflict"},
		Short:   "Inspect and resolve conflicts held by the daemon",
		Long:    "Inspect and resolve conflicts held by the daemon. Conflicts are only recorded with the manual merge strategy.",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withControlPlane(cmd, func(ctx context.Context, cp *controlplane.Client) error {
				conflicts, err := cp.Conflicts(ctx)
				if err != nil {
					return err
				}
				printConflicts(cmd.OutOrStdout(), conflicts)
				return nil
			})
		},
	}

	conflictsCmd.AddCommand(
		newConflictsShowCmd(),
		newConflictsResolveCmd(),
		newConflictsWatchCmd(),
		newConflictsUICmd(),
	)
	return conflictsCmd
}

func withControlPlane(cmd *cobra.Command, fn func(ctx context.Context, cp *controlplane.Client) error) error {
	cmd.SilenceUsage = true

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return fn(cmd.Context(), controlplane.New(cfg.ControlPlaneURL(), cfg.ControlPlane.Token))
}

func printConflicts(w io.Writer, conflicts []handlers.ConflictSummary) {
	if len(conflicts) == 0 {
		fmt.Fprintln(w, gray.Render("no conflicts"))
		return
	}
	for _, c := range conflicts {
		fmt.Fprintf(w, "%s  %s  %s\n", cyan.Render(c.NoteID), gray.Render(humanize.Time(c.DetectedAt)), strings.Join(c.Differences, ", "))
		if c.Choice != "" {
			fmt.Fprintf(w, "  %s %s\n", lightGray.Render("resolved:"), green.Render(c.Choice))
		}
	}
}

func printConflictDetail(w io.Writer, c *handlers.ConflictDetail) {
	printKV(w, "note", cyan.Render(c.NoteID))
	printKV(w, "detected", humanize.Time(c.DetectedAt))
	if c.Choice != "" {
		printKV(w, "resolved", green.Render(c.Choice))
	}
	printKV(w, "events", fmt.Sprintf("%d local, %d remote", c.LocalEvents, c.RemoteEvents))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%-12s %-28s %-28s %s\n", "", bold.Render("base"), bold.Render("local"), bold.Render("remote"))
	rows := []struct {
		name                string
		base, local, remote string
	}{
		{"revision", fmt.Sprint(c.Base.Revision), fmt.Sprint(c.Local.Revision), fmt.Sprint(c.Remote.Revision)},
		{"exists", fmt.Sprint(c.Base.Exists), fmt.Sprint(c.Local.Exists), fmt.Sprint(c.Remote.Exists)},
		{"title", c.Base.Title, c.Local.Title, c.Remote.Title},
		{"path", c.Base.Path, c.Local.Path, c.Remote.Path},
		{"content", humanize.Bytes(uint64(len(c.Base.Content))), humanize.Bytes(uint64(len(c.Local.Content))), humanize.Bytes(uint64(len(c.Remote.Content)))},
		{"attachments", fmt.Sprint(len(c.Base.Attachments)), fmt.Sprint(len(c.Local.Attachments)), fmt.Sprint(len(c.Remote.Attachments))},
	}
	for _, r := range rows {
		local, remote := r.local, r.remote
		if local != remote {
			local, remote = yellow.Render(local), yellow.Render(remote)
		}
		fmt.Fprintf(w, "%-12s %-28s %-28s %s\n", lightGray.Render(r.name), r.base, local, remote)
	}
	fmt.Fprintln(w)
	printKV(w, "differences", strings.Join(c.Differences, ", "))
}

func newConflictsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <note-id>",
		Short: "Show the three versions of a conflicted note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withControlPlane(cmd, func(ctx context.Context, cp *controlplane.Client) error {
				detail, err := cp.Conflict(ctx, args[0])
				if err != nil {
					return err
				}
				printConflictDetail(cmd.OutOrStdout(), detail)
				return nil
			})
		},
	}
}

func newConflictsResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "resolve <note-id> <local|remote|both>",
		Short:     "Record how a conflict should be resolved",
		Long:      "Record how a conflict should be resolved. The choice is applied by the next synchronization pass.",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(merge.ChoiceLocal), string(merge.ChoiceRemote), string(merge.ChoiceBoth)},
		RunE: func(cmd *cobra.Command, args []string) error {
			choice := merge.Choice(args[1])
			if !choice.IsValid() {
				return fmt.Errorf("invalid choice %q, want local, remote or both", args[1])
			}
			return withControlPlane(cmd, func(ctx context.Context, cp *controlplane.Client) error {
				if err := cp.Resolve(ctx, args[0], choice); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", green.Render("resolved"), cyan.Render(args[0]), choice)
				return nil
			})
		},
	}
}

func newConflictsWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print conflict changes as they happen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withControlPlane(cmd, func(ctx context.Context, cp *controlplane.Client) error {
				w := cmd.OutOrStdout()
				return cp.Watch(ctx, func(msg handlers.ConflictEventMessage) {
					style := yellow
					if msg.Type != string(merge.ConflictOpened) {
						style = green
					}
					fmt.Fprintf(w, "%s %s\n", style.Render(msg.Type), cyan.Render(msg.NoteID))
				})
			})
		},
	}
}

func newConflictsUICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ui",
		Short: "Resolve conflicts interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withControlPlane(cmd, func(ctx context.Context, cp *controlplane.Client) error {
				return RunConflictsTUI(ConflictsTUIOpts{
					List: func() ([]handlers.ConflictSummary, error) {
						return cp.Conflicts(ctx)
					},
					Resolve: func(noteID string, choice merge.Choice) error {
						return cp.Resolve(ctx, noteID, choice)
					},
				})
			})
		},
	}
}
