// Command iibd runs the interlock interface board protection engine: it
// samples the board, latches interlocks and alarms, drives the relays and
// reports over CAN, MQTT and HTTP.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sweeney/iib-interlock/internal/config"
	"github.com/sweeney/iib-interlock/internal/log"
)

func main() {
	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

type globalOptions struct {
	configPath string
	logLevel   string
}

func newRootCommand(out io.Writer) *cobra.Command {
	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:          "iibd",
		Short:        "Interlock interface board protection engine",
		SilenceUsage: true,
	}
	cmd.SetOut(out)
	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newVariantsCommand())
	cmd.AddCommand(newStatusCommand(opts))
	cmd.AddCommand(newHistoryCommand(opts))
	cmd.AddCommand(newClearCommand(opts))
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultPath, "Configuration file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", fmt.Sprintf("Log level. %s", log.HelpLevels))
	return cmd
}

// load reads the configuration and sets up logging. --log-level wins over
// the file.
func (o *globalOptions) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if err := log.Init(cmd.ErrOrStderr(), cfg.Log.Level); err != nil {
		return nil, err
	}
	return cfg, nil
}
