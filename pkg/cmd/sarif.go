package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/safeops/postureboard/pkg/artifact"
	"github.com/safeops/postureboard/pkg/postureboard"
)

func NewSARIFCmd(buildInfo postureboard.BuildInfo, outWriter io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sarif PIPELINE",
		Short: "Print the SARIF 2.1.0 log of a pipeline without storing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := artifact.ValidateIdentifier(args[0]); err != nil {
				return err
			}
			mode, err := getMode(cmd)
			if err != nil {
				return err
			}
			c, err := newComponents(buildInfo)
			if err != nil {
				return err
			}
			defer c.Close()

			page, err := c.builder.Build(cmd.Context(), args[0], mode)
			if err != nil {
				return err
			}
			data, err := c.exporter.Marshal(page.Pipeline, page.Findings())
			if err != nil {
				return err
			}
			_, err = outWriter.Write(append(data, '\n'))
			return err
		},
	}
	registerModeFlag(cmd.Flags())
	return cmd
}
