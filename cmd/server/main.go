package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/openmined/syftnotes/internal/server"
	"github.com/openmined/syftnotes/internal/utils"
	"github.com/openmined/syftnotes/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix   = "SYFTNOTES"
	logFileName = "server.log"
)

var rootCmd = &cobra.Command{
	Use:     "syftnotes-server",
	Short:   "SyftNotes Server CLI",
	Version: version.Detailed(),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		logCfg := utils.LogConfig{Level: slog.LevelDebug, Console: os.Stdout}
		if cfg.LogDir != "" {
			logCfg.FilePath = filepath.Join(cfg.LogDir, logFileName)
		}
		closer, err := utils.SetupLogger(logCfg)
		if err != nil {
			return err
		}
		defer closer.Close()

		slog.Info("syftnotes server", "version", version.Version, "revision", version.Revision, "build", version.BuildDate)

		srv, err := server.New(cfg)
		if err != nil {
			return err
		}
		defer slog.Info("Bye!")
		return srv.Start(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	addFlags(rootCmd.Flags())
}

func addFlags(flags *pflag.FlagSet) {
	flags.StringP("config", "f", "", "Path to the config file (json or yaml)")
	flags.StringP("bind", "b", server.DefaultAddr, "Address to bind the server")
	flags.StringP("cert", "c", "", "Path to the certificate file")
	flags.StringP("key", "k", "", "Path to the key file")
	flags.String("db", server.DefaultDbPath, "Path to the event log database")
	flags.String("rate-limit", server.DefaultRateLimit, "Requests per client, e.g. 100-S or 1000-M")
	flags.String("log-dir", "", "Also write logs to this directory")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

var configFlags = map[string]string{
	"http.addr":      "bind",
	"http.cert_file": "cert",
	"http.key_file":  "key",
	"db_path":        "db",
	"rate_limit":     "rate-limit",
	"log_dir":        "log-dir",
}

// loadConfig merges, in increasing priority, the config file, SYFTNOTES_*
// environment variables and explicitly set flags.
func loadConfig(cmd *cobra.Command) (*server.Config, error) {
	v := viper.New()

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config read '%s': %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/syftnotes/")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config read: %w", err)
			}
		}
	}

	for key, name := range configFlags {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return nil, err
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg server.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
