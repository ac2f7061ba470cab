package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/goccy/go-json"
	"github.com/openmined/syftnotes/internal/client"
	"github.com/openmined/syftnotes/internal/client/config"
	"github.com/openmined/syftnotes/internal/client/controlplane"
	"github.com/openmined/syftnotes/internal/client/handlers"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newSyncCmd())
}

func newSyncCmd() *cobra.Command {
	var asJSON bool

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one synchronization pass",
		Long:  "Run one synchronization pass. When a daemon owns the data directory the pass runs in the daemon.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			report, err := runSync(cmd, cfg)
			if err != nil {
				return err
			}

			if asJSON {
				data, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}
			printReport(cmd.OutOrStdout(), report)
			if len(report.Failed) > 0 {
				return fmt.Errorf("%d note(s) failed to synchronize", len(report.Failed))
			}
			return nil
		},
	}

	syncCmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as json")
	syncCmd.Flags().String("strategy", "", "Merge strategy (equality, keep-both, manual)")

	return syncCmd
}

func runSync(cmd *cobra.Command, cfg *config.Config) (*handlers.SyncReport, error) {
	c, err := client.New(cfg)
	if errors.Is(err, client.ErrDataDirLocked) {
		slog.Debug("data dir locked, delegating to daemon", "addr", cfg.ControlPlane.Addr)
		return controlplane.New(cfg.ControlPlaneURL(), cfg.ControlPlane.Token).Sync(cmd.Context())
	}
	if err != nil {
		return nil, err
	}
	defer c.Close()

	res, err := c.SyncNow(cmd.Context())
	if err != nil {
		return nil, err
	}
	return handlers.NewSyncReport(res), nil
}
