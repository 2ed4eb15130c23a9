package commands

import (
	"log/slog"

	"forkmap-backend/lib/serviceutil"

	"github.com/spf13/cobra"
)

var (
	tombstoneConfirm *bool
	tombstoneReason  *string
)

func init() {
	tombstoneConfirm = tombstoneCmd.Flags().Bool("confirm", false, "Required. Confirms the removal is intentional.")
	tombstoneReason = tombstoneCmd.Flags().String("reason", "", "Why the record is being removed.")
	rootCmd.AddCommand(tombstoneCmd)
}

var tombstoneCmd = &cobra.Command{
	Use:   "tombstone <restaurant-id> --confirm [--reason <text>]",
	Short: "Marks a restaurant record as intentionally removed.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		st, database := openStore(cfg)
		defer database.Close()

		err := st.Tombstone(cmd.Context(), args[0], *tombstoneReason, *tombstoneConfirm)
		if err != nil {
			serviceutil.Fatal("failed to tombstone record", err)
		}
		slog.Info("record tombstoned", "restaurant_id", args[0])
	},
}
