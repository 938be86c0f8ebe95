package cmd

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/safeops/postureboard/pkg/artifact"
	"github.com/safeops/postureboard/pkg/postureboard"
)

func NewReportCmd(buildInfo postureboard.BuildInfo, outWriter io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report PIPELINE",
		Short: "Generate the HTML, PDF and SARIF reports of a pipeline",
		Long: `Generate the HTML, PDF and SARIF reports of a pipeline and replace the
stored ones. The generation summary is printed as JSON.`,
		Args: cobra.ExactArgs(1),
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

			generation, err := c.artifacts.Generate(cmd.Context(), args[0], mode)
			if err != nil {
				return err
			}
			encoder := json.NewEncoder(outWriter)
			encoder.SetIndent("", "  ")
			return encoder.Encode(generation)
		},
	}
	registerModeFlag(cmd.Flags())
	return cmd
}
