package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vitalvas/mqttlite/internal/config"
)

type globalFlags struct {
	configPath string
	url        string
	clientID   string
	username   string
	password   string
	keepAlive  time.Duration
	logLevel   string
	noColor    bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:          "mqttlite",
		Short:        "Lightweight MQTT 3.1.1 client",
		SilenceUsage: true,
		Long: `Publish and subscribe against an MQTT 3.1.1 broker.

Settings come from an optional YAML file (--config), then MQTTLITE_*
environment variables, then command line flags.

Broker URL schemes: tcp, mqtt, tls, ssl, mqtts, ws, wss, quic, unix.`,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "path to YAML config file")
	pf.StringVarP(&flags.url, "url", "u", "", "broker URL, e.g. mqtt://localhost:1883")
	pf.StringVarP(&flags.clientID, "id", "i", "", "client identifier")
	pf.StringVar(&flags.username, "username", "", "user name")
	pf.StringVar(&flags.password, "password", "", "password")
	pf.DurationVarP(&flags.keepAlive, "keep-alive", "k", 0, "keep-alive interval, 0 disables")
	pf.StringVar(&flags.logLevel, "log-level", "", "debug, info, warn, error or none")
	pf.BoolVar(&flags.noColor, "no-color", false, "disable colored output")

	cmd.AddCommand(newPubCmd(flags), newSubCmd(flags))

	return cmd
}

// load merges the config file, environment and flags that were set.
func (f *globalFlags) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}

	pf := cmd.Flags()
	if pf.Changed("url") {
		cfg.Broker.URL = f.url
	}
	if pf.Changed("id") {
		cfg.Client.ID = f.clientID
	}
	if pf.Changed("username") {
		cfg.Client.Username = f.username
	}
	if pf.Changed("password") {
		cfg.Client.Password = f.password
	}
	if pf.Changed("keep-alive") {
		cfg.Client.KeepAlive = f.keepAlive
	}
	if pf.Changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating flags: %w", err)
	}

	return cfg, nil
}

func (f *globalFlags) printer(cmd *cobra.Command) *printer {
	return newPrinter(cmd.OutOrStdout(), f.noColor || os.Getenv("NO_COLOR") != "")
}
