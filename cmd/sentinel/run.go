package main

import (
	"os/signal"
	"syscall"

	"github.com/dushixiang/sentinel/internal/app"
	"github.com/spf13/cobra"
)

func newRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "前台运行",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(*configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.Run(ctx)
		},
	}
}
