// Package cmd contains the command line applications for the project.
package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/yeisme/skelvault/pkg/app"
	"github.com/yeisme/skelvault/pkg/configs"
	"github.com/yeisme/skelvault/pkg/internal/service"
	"github.com/yeisme/skelvault/pkg/internal/storage"
)

var (
	// configPath 配置文件或配置目录.
	configPath string
	// debug 打印 viper 的调试信息.
	debug bool

	rootCmd = &cobra.Command{
		Use:           "skelvault",
		Short:         "Permission-gated CRUD modules and file tree over a transactional store",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".", "config file or directory")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "print viper debug output")

	registerServeCommands()
	registerConfigsCommands()
	registerDBCommands()
	registerKVCommands()
	registerMQCommands()
	registerBackendsCommands()
	registerBlobCommands()
	registerUserCommands()
	registerFileCommands()
	registerModulesCommands()
	registerGCCommands()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// withRegistry 初始化存储与模块后执行 fn，结束时关闭连接.
func withRegistry(ctx context.Context, fn func(cfg *configs.AppConfig, mgr *storage.Manager, reg *service.Registry) error) error {
	cfg, mgr, reg, err := app.Bootstrap(ctx, configPath)
	if err != nil {
		return err
	}

	defer func() { _ = mgr.Close() }()

	return fn(cfg, mgr, reg)
}
