package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yeisme/skelvault/pkg/configs"
	"github.com/yeisme/skelvault/pkg/internal/service"
	"github.com/yeisme/skelvault/pkg/internal/storage"
)

var (
	kvCmd = &cobra.Command{
		Use:     "kv",
		Short:   "Key-Value store related commands",
		Aliases: []string{"keyvalue"},
	}

	// 列出匹配的键，例如 skey:* 查看未使用的 skey.
	kvKeysCmd = &cobra.Command{
		Use:   "keys [pattern]",
		Short: "list keys matching a glob pattern",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern := "*"
			if len(args) == 1 {
				pattern = args[0]
			}

			return withRegistry(cmd.Context(), func(_ *configs.AppConfig, mgr *storage.Manager, _ *service.Registry) error {
				keys, err := mgr.KV.Keys(cmd.Context(), pattern)
				if err != nil {
					return err
				}

				for _, k := range keys {
					fmt.Fprintln(cmd.OutOrStdout(), k)
				}

				return nil
			})
		},
	}
)

// registerKVCommands 注册 KV 相关命令.
func registerKVCommands() {
	rootCmd.AddCommand(kvCmd)
	kvCmd.AddCommand(kvKeysCmd)
}
