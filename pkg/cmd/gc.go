package cmd

import (
	"github.com/spf13/cobra"

	"github.com/yeisme/skelvault/pkg/configs"
	"github.com/yeisme/skelvault/pkg/internal/jobs"
	"github.com/yeisme/skelvault/pkg/internal/service"
	"github.com/yeisme/skelvault/pkg/internal/storage"
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "run a single blob gc sweep in this process",
}

func sweepCmd(sweep, short string) *cobra.Command {
	return &cobra.Command{
		Use:   sweep,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistry(cmd.Context(), func(_ *configs.AppConfig, _ *storage.Manager, reg *service.Registry) error {
				return jobs.RunSweep(cmd.Context(), reg.GC, sweep)
			})
		},
	}
}

// registerGCCommands 注册手动回收命令.
func registerGCCommands() {
	rootCmd.AddCommand(gcCmd)
	gcCmd.AddCommand(sweepCmd(service.SweepScan, "stage unreferenced blobs for deletion"))
	gcCmd.AddCommand(sweepCmd(service.SweepCleanup, "process staged deletion markers"))
}
