package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bft-labs/simreplay/internal/app"
	"github.com/bft-labs/simreplay/pkg/log"
)

func newInspectCmd(logger *zerolog.Logger) *cobra.Command {
	var opts app.InspectOptions

	cmd := &cobra.Command{
		Use:          "inspect PATH",
		Short:        "Print the header, schema and optionally frames of a log",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Logger = log.NewZerologAdapterWithLogger(logger.Level(zerolog.WarnLevel))
			return app.Inspect(args[0], cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().IntVar(&opts.Frames, "frames", 0, "number of leading frames to print")
	cmd.Flags().BoolVar(&opts.Verify, "verify", false, "read every frame and check its checksum")
	return cmd
}
