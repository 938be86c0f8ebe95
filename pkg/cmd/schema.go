package cmd

import (
	"io"

	"github.com/spf13/cobra"

	schema "github.com/safeops/postureboard"
)

func NewSchemaCmd(outWriter io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the reference DDL of the relations read by postureboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := outWriter.Write(schema.SchemaDDL())
			return err
		},
	}
}
