package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/openmined/syftnotes/internal/client/controlplane"
	"github.com/openmined/syftnotes/internal/client/handlers"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newStatusCmd())
}

func newStatusCmd() *cobra.Command {
	var watch time.Duration

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status of the running daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cp := controlplane.New(cfg.ControlPlaneURL(), cfg.ControlPlane.Token)

			for {
				status, err := cp.Status(cmd.Context())
				if err != nil {
					return err
				}
				printStatus(cmd.OutOrStdout(), status)
				if watch <= 0 {
					return nil
				}

				select {
				case <-cmd.Context().Done():
					return nil
				case <-time.After(watch):
					fmt.Fprintln(cmd.OutOrStdout())
				}
			}
		},
	}

	statusCmd.Flags().DurationVarP(&watch, "watch", "w", 0, "Refresh the status at this interval")

	return statusCmd
}

func printStatus(w io.Writer, s *handlers.StatusResponse) {
	printKV(w, "status", green.Render(s.Status))
	printKV(w, "version", fmt.Sprintf("%s (%s)", s.Version, s.Revision))
	printKV(w, "server", s.ServerURL)
	printKV(w, "strategy", s.MergeStrategy)
	printKV(w, "pending", fmt.Sprintf("%d local, %d remote", s.Pending.Local, s.Pending.Remote))

	conflicts := gray.Render("0")
	if s.Conflicts > 0 {
		conflicts = yellow.Render(fmt.Sprintf("%d", s.Conflicts))
	}
	printKV(w, "conflicts", conflicts)
	if p := s.Process; p != nil {
		uptime := time.Duration(p.Uptime) * time.Millisecond
		printKV(w, "process", fmt.Sprintf("pid %d, %s rss, %.1f%% cpu, up %s", p.PID, humanize.Bytes(p.MemoryRSS), p.CPUPercent, uptime.Truncate(time.Second)))
	}

	if s.LastSync == nil {
		printKV(w, "last sync", gray.Render("never"))
		return
	}
	printKV(w, "last sync", humanize.Time(s.LastSync.StartedAt))
	fmt.Fprintln(w)
	printReport(w, s.LastSync)
}
