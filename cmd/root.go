// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/internal/config"
	"github.com/xkilldash9x/formpilot/internal/observability"
)

// flagKeys maps command line flags onto the config keys they override.
var flagKeys = map[string]string{
	"sheet-url":     "source.sheet_url",
	"credentials":   "source.credentials_file",
	"csv":           "source.csv_path",
	"report":        "report.output",
	"format":        "report.format",
	"headless":      "browser.headless",
	"fallback-file": "repair.fallback_file",
	"ledger":        "ledger.driver",
}

// app holds the state shared by one invocation of the command tree.
type app struct {
	cfgFile string
	v       *viper.Viper
	cfg     *config.Config
}

// newRootCmd builds the command tree. Each call returns a fresh tree with
// its own viper instance.
func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:           "formpilot",
		Short:         "formpilot drives web signup and account forms from a spreadsheet.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// This function runs before any command, setting up config and logging.
			if err := a.initializeConfig(cmd); err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "formpilot"})
				return err
			}
			observability.InitializeLogger(a.cfg.Logger)
			observability.GetLogger().Debug("Starting formpilot", zap.String("version", Version))
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(
		newSignupCmd(a),
		newRepairCmd(a),
		newPasswordsCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the command tree and returns the process exit code.
func Execute(ctx context.Context) int {
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "aborted")
			return 130
		}
		observability.GetLogger().Error("Command execution failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

// initializeConfig reads the config file, FORMPILOT_ environment variables
// and the flags of cmd, in increasing order of precedence.
func (a *app) initializeConfig(cmd *cobra.Command) error {
	v := viper.New()
	config.SetDefaults(v)

	if a.cfgFile != "" {
		v.SetConfigFile(a.cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("FORMPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults/env vars
	}

	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}
	if f := cmd.Flags().Lookup("csv"); f != nil && f.Changed {
		v.Set("source.kind", "csv")
	}

	cfg, err := config.NewConfigFromViper(v)
	if err != nil {
		return err
	}
	a.v, a.cfg = v, cfg
	return nil
}
