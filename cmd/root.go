package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "flux2imd",
	Short: "Decode captured floppy flux into ImageDisk/raw sector images",
	Long:  "flux2imd turns captured floppy flux (KryoFlux .raw streams, SuperCard Pro .scp files, or .zip containers of either) into ImageDisk (.imd) and flat raw (.img) disk images.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}
