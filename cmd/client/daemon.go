package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/openmined/syftnotes/internal/client"
	"github.com/openmined/syftnotes/internal/client/config"
	"github.com/openmined/syftnotes/internal/utils"
	"github.com/openmined/syftnotes/internal/version"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newDaemonCmd())
}

func newDaemonCmd() *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Start the SyftNotes client daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			closer, err := utils.SetupLogger(utils.LogConfig{
				Level:    slog.LevelDebug,
				Console:  os.Stdout,
				FilePath: config.DefaultLogFilePath,
			})
			if err != nil {
				return err
			}
			defer closer.Close()

			showHeader()
			slog.Info("syftnotes", "version", version.Version, "revision", version.Revision, "build", version.BuildDate)
			slog.Info("daemon using config", "path", cfg.Path, "datadir", cfg.DataDir, "server", cfg.ServerURL, "strategy", cfg.MergeStrategy)

			daemon, err := client.NewClientDaemon(cfg)
			if err != nil {
				return err
			}

			defer slog.Info("Bye!")
			if err := daemon.Start(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("daemon start", "error", err)
				return err
			}
			return nil
		},
	}

	daemonCmd.Flags().StringP("http-addr", "a", config.DefaultControlPlaneAddr, "Address to bind the local http server")
	daemonCmd.Flags().StringP("http-token", "t", "", "Access token for the local http server")
	daemonCmd.Flags().DurationP("interval", "i", config.DefaultSyncInterval, "Time between synchronization passes")
	daemonCmd.Flags().String("strategy", string(config.DefaultMergeStrategy), "Merge strategy (equality, keep-both, manual)")

	return daemonCmd
}
