package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func TestConfigPathCommand(t *testing.T) {
	cmd := &cobra.Command{Use: "syftnotes"}
	cmd.PersistentFlags().StringP("config", "c", "", "path to config file")
	cmd.AddCommand(newConfigPathCmd())

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"config-path", "--config", "/tmp/notes/config.json"})

	require.NoError(t, cmd.Execute())
	require.Equal(t, "/tmp/notes/config.json", strings.TrimSpace(out.String()))
}
