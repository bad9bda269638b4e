package main

import (
	"os"

	"fuzzctl/infra/config"
	"fuzzctl/infra/conn/tcp"
	"fuzzctl/infra/utils/logger"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configFile string

	v   *viper.Viper
	cfg config.Config
)

func main() {
	v = config.New()

	rootCmd := &cobra.Command{
		Use:           "fuzzctl",
		Short:         "Fuzz controller talking to a monitor agent over TCP",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if cfg, err = config.Load(v, configFile); err != nil {
				return err
			}
			logger.SetLevel(cfg.LogLevel)
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Configuration file path")
	flags.String("log-level", "info", "Logging level (debug, info, warn, error)")
	flags.String("host", "127.0.0.1", "Monitor host")
	flags.Int("port", 4444, "Monitor port")
	flags.Duration("connect-timeout", tcp.DefaultConnectTimeout, "Monitor connect timeout")
	flags.Duration("io-timeout", tcp.DefaultIOTimeout, "Timeout of one exchange with monitor")
	flags.Uint64("protocol-version", tcp.DefaultVersion, "Protocol version expected from monitor")
	flags.String("metrics", "", "Address to serve /metrics on, empty to disable")
	flags.String("crashes", "crashes", "Directory for saved crashes")

	for key, name := range map[string]string{
		config.KeyLogLevel:              "log-level",
		config.KeyMonitorHost:           "host",
		config.KeyMonitorPort:           "port",
		config.KeyMonitorConnectTimeout: "connect-timeout",
		config.KeyMonitorIOTimeout:      "io-timeout",
		config.KeyMonitorVersion:        "protocol-version",
		config.KeyMetricsAddr:           "metrics",
		config.KeyCrashesDir:            "crashes",
	} {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			logger.Fatalf("failed to bind flag %s: %v", name, err)
		}
	}

	rootCmd.AddCommand(
		newPingCmd(),
		newParamsCmd(),
		newTriggerCmd(),
		newRunCmd(),
		newAgentCmd(),
		newCrashesCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}

// connect - коннектор на адрес из конфига, уже после AYT
func connect(opts ...tcp.Option) (*tcp.Connector, error) {
	conn := tcp.NewConnector(cfg.Connector(), opts...)
	conn.SetAddress(cfg.Monitor.Host, cfg.Monitor.Port)
	if err := conn.Connect(); err != nil {
		return nil, errors.WithMessagef(err, "monitor %s:%d", cfg.Monitor.Host, cfg.Monitor.Port)
	}
	return conn, nil
}
