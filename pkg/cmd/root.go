package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/safeops/postureboard/pkg/postureboard"
)

func NewRootCmd(buildInfo postureboard.BuildInfo, args []string, outWriter io.Writer, errWriter io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "postureboard",
		Short:         "Security posture dashboard and report generator for CI/CD pipelines",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.AddCommand(NewVersionCmd(buildInfo, outWriter))
	rootCmd.AddCommand(NewServeCmd(buildInfo))
	rootCmd.AddCommand(NewReportCmd(buildInfo, outWriter))
	rootCmd.AddCommand(NewSARIFCmd(buildInfo, outWriter))
	rootCmd.AddCommand(NewSchemaCmd(outWriter))

	rootCmd.SetArgs(args[1:])
	rootCmd.SetOut(outWriter)
	rootCmd.SetErr(errWriter)

	return rootCmd
}

// Run is the entry point of the postureboard CLI. It runs the specified
// command based on the specified args.
func Run(buildInfo postureboard.BuildInfo, args []string, outWriter io.Writer, errWriter io.Writer) error {
	return NewRootCmd(buildInfo, args, outWriter, errWriter).Execute()
}
