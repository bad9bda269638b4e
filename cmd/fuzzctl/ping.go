package main

import (
	"fmt"

	"fuzzctl/infra/conn/tcp"
	"fuzzctl/infra/utils/logger"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that monitor is reachable and speaks our protocol version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn := tcp.NewConnector(cfg.Connector(), tcp.WithLogger(logger.Default()))
			conn.SetAddress(cfg.Monitor.Host, cfg.Monitor.Port)
			addr, ok := conn.Address()
			if !ok {
				return tcp.ErrNoAddress
			}
			defer conn.Disconnect()
			if !conn.IsReachable() {
				return errors.Errorf("monitor %v is not reachable", addr)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "monitor %v is alive, protocol version %d\n", addr, cfg.Monitor.Version)
			return nil
		},
	}
}
