package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yeisme/skelvault/pkg/configs"
	"github.com/yeisme/skelvault/pkg/internal/model"
	"github.com/yeisme/skelvault/pkg/internal/service"
	"github.com/yeisme/skelvault/pkg/internal/storage"
)

var (
	dbCmd = &cobra.Command{
		Use:   "db",
		Short: "Database related commands",
	}

	// 启动时也会迁移，这里便于在部署前单独执行.
	dbMigrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "create or update all tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistry(cmd.Context(), func(_ *configs.AppConfig, _ *storage.Manager, _ *service.Registry) error {
				for _, m := range model.All() {
					fmt.Fprintf(cmd.OutOrStdout(), " - %T\n", m)
				}

				return nil
			})
		},
	}
)

// registerDBCommands 注册数据库相关命令.
func registerDBCommands() {
	rootCmd.AddCommand(dbCmd)

	dbCmd.AddCommand(dbMigrateCmd)
}
