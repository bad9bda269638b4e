package main

import (
	"fmt"
	"os"

	"fuzzctl/infra/conn/tcp"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newTriggerCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "trigger [DATA]",
		Short: "Send one input to target, without data only checks that target is alive",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			switch {
			case file != "" && len(args) != 0:
				return errors.New("pass either DATA or --file")
			case file != "":
				raw, err := os.ReadFile(file)
				if err != nil {
					return errors.Wrapf(err, "failed to read input %s", file)
				}
				data = raw
			case len(args) != 0:
				data = []byte(args[0])
			}

			return withConfigured(nil, func(conn *tcp.Connector) error {
				outcome, err := conn.TriggerTarget(data)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), outcome)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read input from file")
	return cmd
}
