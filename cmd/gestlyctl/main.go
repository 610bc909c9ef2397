// Command gestlyctl is the operator CLI: schema migrations, API key
// management and plan inspection.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/gestly/gestly/internal/config"
	"github.com/gestly/gestly/pkg/logger"
)

var Version = "dev"

var (
	envFile  string
	logLevel string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gestlyctl",
		Short:         "Gestly operator tooling",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env", ".env", "path to an optional .env file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")

	root.AddCommand(migrateCmd())
	root.AddCommand(apiKeyCmd())
	root.AddCommand(plansCmd())
	return root
}

func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Read(envFile)
	if err != nil {
		return nil, nil, err
	}
	logCfg := cfg.Logging.Logger()
	logCfg.Level = logLevel
	logCfg.Output = "stderr"
	return cfg, logger.New(logCfg), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
