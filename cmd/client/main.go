package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/openmined/syftnotes/internal/client/config"
	"github.com/openmined/syftnotes/internal/merge"
	"github.com/openmined/syftnotes/internal/utils"
	"github.com/openmined/syftnotes/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "SYFTNOTES"

var home, _ = os.UserHomeDir()

var rootCmd = &cobra.Command{
	Use:           "syftnotes",
	Short:         "SyftNotes CLI",
	Version:       version.Detailed(),
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().SortFlags = false
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "SyftNotes config file")
	rootCmd.PersistentFlags().StringP("datadir", "d", config.DefaultDataDir, "SyftNotes data directory")
	rootCmd.PersistentFlags().StringP("server", "s", config.DefaultServerURL, "SyftNotes server")
}

func main() {
	closer, err := utils.SetupLogger(utils.LogConfig{Level: slog.LevelWarn, Console: os.Stderr})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to setup logging: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = rootCmd.ExecuteContext(ctx)
	stop()
	closer.Close()

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", red.Render("ERROR"), err)
		os.Exit(1)
	}
}

// configFlags maps config keys to the flags that override them. Flags a
// command does not define are skipped.
var configFlags = map[string]string{
	"data_dir":            "datadir",
	"server_url":          "server",
	"merge_strategy":      "strategy",
	"sync_interval":       "interval",
	"control_plane.addr":  "http-addr",
	"control_plane.token": "http-token",
}

// loadConfig merges, in increasing priority, the config file, SYFTNOTES_*
// environment variables and explicitly set flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()

	path := resolveConfigPath(cmd)
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, os.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config read '%s': %w", path, err)
		}
	}

	for key, name := range configFlags {
		if f := lookupFlag(cmd, name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &config.Config{
		Path:          path,
		DataDir:       v.GetString("data_dir"),
		ServerURL:     v.GetString("server_url"),
		SyncInterval:  v.GetDuration("sync_interval"),
		MergeStrategy: merge.Name(v.GetString("merge_strategy")),
		ControlPlane: config.ControlPlaneConfig{
			Addr:  v.GetString("control_plane.addr"),
			Token: v.GetString("control_plane.token"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func lookupFlag(cmd *cobra.Command, name string) *pflag.Flag {
	if f := cmd.Flags().Lookup(name); f != nil {
		return f
	}
	return cmd.Root().PersistentFlags().Lookup(name)
}

func showHeader() {
	color.New(color.FgHiCyan, color.Bold).Println(syftNotesArt)
}

const syftNotesArt = `
 ____         __ _   _   _       _
/ ___| _   _ / _| |_| \ | | ___ | |_ ___  ___
\___ \| | | | |_| __|  \| |/ _ \| __/ _ \/ __|
 ___) | |_| |  _| |_| |\  | (_) | ||  __/\__ \
|____/ \__, |_|  \__|_| \_|\___/ \__\___||___/
       |___/`
