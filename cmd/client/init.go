package main

import (
	"fmt"

	"github.com/openmined/syftnotes/internal/utils"
	"github.com/spf13/cobra"
)

const controlPlaneTokenLength = 32

func init() {
	rootCmd.AddCommand(newInitCmd())
}

func newInitCmd() *cobra.Command {
	var force bool

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a SyftNotes config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			path := resolveConfigPath(cmd)
			if utils.FileExists(path) && !force {
				return fmt.Errorf("config already exists at %s, use --force to overwrite", path)
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.ControlPlane.Token == "" {
				if cfg.ControlPlane.Token, err = utils.RandBase34(controlPlaneTokenLength); err != nil {
					return err
				}
			}
			if err := utils.EnsureDir(cfg.DataDir); err != nil {
				return fmt.Errorf("failed to create data dir: %w", err)
			}
			if err := cfg.Save(path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, green.Render("SyftNotes initialized"))
			printKV(w, "config", path)
			printKV(w, "datadir", cfg.DataDir)
			printKV(w, "server", cfg.ServerURL)
			printKV(w, "strategy", cfg.MergeStrategy)
			printKV(w, "control plane", cfg.ControlPlaneURL())
			printKV(w, "token", utils.MaskSecret(cfg.ControlPlane.Token))
			return nil
		},
	}

	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config")
	initCmd.Flags().String("strategy", "", "Merge strategy (equality, keep-both, manual)")
	initCmd.Flags().Duration("interval", 0, "Time between synchronization passes")
	initCmd.Flags().StringP("http-addr", "a", "", "Address of the local http server")
	initCmd.Flags().StringP("http-token", "t", "", "Access token for the local http server, generated when empty")

	return initCmd
}
