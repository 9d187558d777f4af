package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bigkaa/goartstore/model-catalog/internal/domain/ingest"
)

func newFormatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "Показать поддерживаемые форматы моделей",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "EXTENSION\tMIME TYPE")
			for _, ext := range ingest.Extensions() {
				mimeType, _ := ingest.MIMEType(ext)
				fmt.Fprintf(tw, "%s\t%s\n", ext, mimeType)
			}
			return tw.Flush()
		},
	}
}
