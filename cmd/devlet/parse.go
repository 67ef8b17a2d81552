package main

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/devlet/pkg/calls"
	"github.com/jingkaihe/devlet/pkg/logger"
)

var parseCmd = &cobra.Command{
	Use:   "parse [file|-]",
	Short: "Print the tool calls found in a model reply as JSON",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = os.Stdin
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return errors.Wrap(err, "failed to open reply")
			}
			defer f.Close()
			r = f
		}
		text, err := io.ReadAll(r)
		if err != nil {
			return errors.Wrap(err, "failed to read reply")
		}

		result := calls.NewParser(viper.GetString("calls.tag")).ParseDetailed(string(text))
		for _, span := range result.Unterminated {
			logger.G(cmd.Context()).WithFields(logrus.Fields{
				"operation": span.Operation,
				"offset":    span.Offset,
			}).Warn("ignoring unterminated call")
		}
		records := result.Records
		if records == nil {
			records = []calls.Record{}
		}
		return printJSON(cmd.OutOrStdout(), records)
	},
}
