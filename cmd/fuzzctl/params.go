package main

import (
	"fmt"
	"sort"
	"strings"

	"fuzzctl/infra/conn/tcp"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// параметры живут в сессии монитора, поэтому каждая команда
// сначала выставляет campaign.params, а потом делает свое

func newParamsCmd() *cobra.Command {
	paramsCmd := &cobra.Command{
		Use:   "params",
		Short: "Set, remove and read monitor parameters",
	}

	paramsCmd.AddCommand(
		&cobra.Command{
			Use:   "get KEY...",
			Short: "Print values monitor holds for keys",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withConfigured(nil, func(conn *tcp.Connector) error {
					return printParams(cmd, conn, args)
				})
			},
		},
		&cobra.Command{
			Use:   "set KEY=VALUE...",
			Short: "Set parameters and print them back",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				set := make(map[string]string, len(args))
				keys := make([]string, 0, len(args))
				for _, arg := range args {
					k, val, ok := strings.Cut(arg, "=")
					if !ok {
						return errors.Errorf("%q is not KEY=VALUE", arg)
					}
					set[k] = val
					keys = append(keys, k)
				}
				return withConfigured(set, func(conn *tcp.Connector) error {
					return printParams(cmd, conn, keys)
				})
			},
		},
		&cobra.Command{
			Use:   "rm KEY...",
			Short: "Remove parameters from monitor",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withConfigured(nil, func(conn *tcp.Connector) error {
					if err := conn.RemoveParameters(args...); err != nil {
						return err
					}
					return printParams(cmd, conn, args)
				})
			},
		},
	)
	return paramsCmd
}

// withConfigured - подключается и выставляет campaign.params вместе с extra
func withConfigured(extra map[string]string, fn func(conn *tcp.Connector) error) error {
	conn, err := connect()
	if err != nil {
		return err
	}
	defer conn.Disconnect()

	params := make(map[string]string, len(cfg.Campaign.Params)+len(extra))
	for k, val := range cfg.Campaign.Params {
		params[k] = val
	}
	for k, val := range extra {
		params[k] = val
	}
	if err = conn.SetParameters(params); err != nil {
		return err
	}
	return fn(conn)
}

func printParams(cmd *cobra.Command, conn *tcp.Connector, keys []string) error {
	got, err := conn.GetParameters(keys...)
	if err != nil {
		return err
	}
	sort.Strings(keys)
	for _, k := range keys {
		if val, ok := got[k]; ok {
			fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", k, val)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s is not set\n", k)
		}
	}
	return nil
}
