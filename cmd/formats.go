package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mogden/flux2imd/format"
)

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List the known disk formats (read-only introspection of the format table)",
	RunE:  runFormats,
}

func init() {
	rootCmd.AddCommand(formatsCmd)
}

func runFormats(cmd *cobra.Command, args []string) error {
	tw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tENCODING\tSECTORS\tSIZE\tDESCRIPTION")
	for _, info := range format.Table {
		if info.HiddenTrial {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n",
			info.Name, info.Encoding, info.SectorsPerTrack, info.SectorBytes(), info.Description)
	}
	return tw.Flush()
}
