package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Lllllllleong/contractsigning/internal/app"
	"github.com/Lllllllleong/contractsigning/internal/models"
	"github.com/spf13/cobra"
)

func sweepCmd() *cobra.Command {
	var retention time.Duration
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete contracts older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("retention") {
				cfg.Cleanup.Retention = retention
			}
			ctx := context.Background()
			sw, closeFn, err := app.NewSweeper(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			report, err := sw.Sweep(ctx, time.Now())
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(models.CleanupResponse{
				Success:      true,
				DeletedCount: report.DeletedCount,
				Results:      report.Results,
			})
		},
	}
	cmd.Flags().DurationVar(&retention, "retention", 0, "override the configured retention (0 deletes everything)")
	return cmd
}
