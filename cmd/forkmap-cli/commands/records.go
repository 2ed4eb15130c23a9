package commands

import (
	"os"
	"strings"

	"forkmap-backend/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(recordsCmd)
}

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Prints every live restaurant record.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		st, database := openStore(cfg)
		defer database.Close()

		restaurants, err := st.Scan(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to scan records", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Id", "Name", "Neighborhood", "Confidence", "Tags", "Last updated"})
		for _, r := range restaurants {
			neighborhood := r.Neighborhood
			if r.LocationUnresolved {
				neighborhood = "(unresolved)"
			}
			t.AppendRow(table.Row{
				r.RestaurantID,
				r.DisplayName,
				neighborhood,
				r.LocationConfidence,
				strings.Join(r.CuisineTags, ", "),
				r.LastUpdatedAt.Format("2006-01-02"),
			})
		}
		t.Render()
	},
}
