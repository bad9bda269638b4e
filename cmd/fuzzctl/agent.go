package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fuzzctl/infra/config"
	"fuzzctl/infra/conn/tcp"
	"fuzzctl/infra/metrics"
	"fuzzctl/infra/target"
	"fuzzctl/infra/utils/logger"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent [-- TARGET ARGS...]",
		Short: "Run monitor agent next to the target",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			path, targetArgs := cfg.Agent.Target, cfg.Agent.Args
			if len(args) != 0 {
				path, targetArgs = args[0], args[1:]
			}
			if path == "" {
				return errors.New("target is not set, pass it after -- or in agent.target")
			}
			proc, err := target.NewProcess(path, targetArgs, cfg.Agent.Timeout)
			if err != nil {
				return err
			}

			srv, err := tcp.NewSrv(cfg.Agent.Listen, tcp.SrvConfig{
				Version:       cfg.Monitor.Version,
				Target:        proc,
				AllowedParams: cfg.Agent.AllowedParams,
				IOTimeout:     cfg.Monitor.IOTimeout,
			}, logger.Default().With("agent", cfg.Agent.Listen))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "monitor agent for %s listening on %v\n", path, srv.Addr())

			go func() {
				if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
					logger.Errorf(err, "metrics are not served")
				}
			}()

			<-ctx.Done()
			srv.Close()
			logger.Infof("monitor agent closed")
			return nil
		},
	}
	flags := cmd.Flags()
	flags.String("listen", "127.0.0.1:4444", "Address to accept controllers on")
	flags.Duration("target-timeout", target.DefaultTimeout, "Target run timeout, counted as crash when exceeded")
	flags.StringSlice("allow", nil, "Accept only these parameter keys")
	for key, name := range map[string]string{
		config.KeyAgentListen:  "listen",
		config.KeyAgentTimeout: "target-timeout",
		config.KeyAgentParams:  "allow",
	} {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			logger.Fatalf("failed to bind flag %s: %v", name, err)
		}
	}
	return cmd
}
