package commands

import (
	"os"

	"forkmap-backend/lib/serviceutil"

	"github.com/spf13/cobra"
)

var exportOut *string

func init() {
	exportOut = exportCmd.Flags().String("out", "", "Write the export to a file instead of stdout.")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export [--out <path/to/export.json>]",
	Short: "Exports every live restaurant record as a json array.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		st, database := openStore(cfg)
		defer database.Close()

		out := os.Stdout
		if *exportOut != "" {
			f, err := os.Create(*exportOut)
			if err != nil {
				serviceutil.Fatal("failed to create output file", err)
			}
			defer f.Close()
			out = f
		}

		if err := st.ExportJSON(cmd.Context(), out); err != nil {
			serviceutil.Fatal("failed to export records", err)
		}
	},
}
