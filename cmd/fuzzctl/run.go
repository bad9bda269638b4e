package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"fuzzctl/core/campaign"
	"fuzzctl/core/infodb"
	"fuzzctl/core/monitoring"
	"fuzzctl/entities"
	"fuzzctl/infra/config"
	"fuzzctl/infra/conn/tcp"
	"fuzzctl/infra/metrics"
	"fuzzctl/infra/utils/logger"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	eventChanBuf    = 256
	eventBufferSize = 64
	flushTimeout    = time.Second
)

func newRunCmd() *cobra.Command {
	var reconnects int
	cmd := &cobra.Command{
		Use:   "run PATH...",
		Short: "Run every file (directories are walked) through target, save crashes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			files, err := collectInputs(args)
			if err != nil {
				return err
			}

			db, err := infodb.New(cfg.CrashesDir)
			if err != nil {
				return err
			}

			go func() {
				if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
					logger.Errorf(err, "metrics are not served")
				}
			}()

			runID := uuid.NewString()
			events := make(chan entities.Event, eventChanBuf)
			mon := monitoring.New(events, db, monitoring.NewLogSink(logger.Default()), eventBufferSize, flushTimeout)
			go mon.Run()

			conn := tcp.NewConnector(cfg.Connector(),
				tcp.WithLogger(logger.Default().With("monitor", fmt.Sprintf("%s:%d", cfg.Monitor.Host, cfg.Monitor.Port))),
				tcp.WithEvents(events),
				tcp.WithRunID(runID),
			)
			conn.SetAddress(cfg.Monitor.Host, cfg.Monitor.Port)

			runner := campaign.New(conn, campaign.Config{
				RunID:      runID,
				Params:     cfg.Campaign.Params,
				Reconnects: cfg.Campaign.Reconnects,
			}, events, logger.Default())

			stats, err := runner.Run(ctx, readInputs(ctx, files))
			mon.Close()

			fmt.Fprintln(cmd.OutOrStdout(), stats)
			fmt.Fprintf(cmd.OutOrStdout(), "crashes in %s: %d\n", cfg.CrashesDir, db.Count())
			return err
		},
	}
	cmd.Flags().IntVar(&reconnects, "reconnects", campaign.DefaultReconnects, "Reconnect attempts before giving up on monitor")
	if err := v.BindPFlag(config.KeyCampaignReconnects, cmd.Flags().Lookup("reconnects")); err != nil {
		logger.Fatalf("failed to bind flag reconnects: %v", err)
	}
	return cmd
}

func collectInputs(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		err := filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.Type().IsRegular() {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to collect inputs from %s", p)
		}
	}
	if len(files) == 0 {
		return nil, errors.New("no input files")
	}
	return files, nil
}

// readInputs - читает файлы по одному, канал закрывается когда файлы кончились
func readInputs(ctx context.Context, files []string) <-chan []byte {
	inputs := make(chan []byte)
	go func() {
		defer close(inputs)
		for _, f := range files {
			data, err := os.ReadFile(f)
			if err != nil {
				logger.Errorf(err, "skip input %s", f)
				continue
			}
			select {
			case inputs <- data:
			case <-ctx.Done():
				return
			}
		}
	}()
	return inputs
}
