package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yeisme/skelvault/pkg/queue"
)

var (
	mqCmd = &cobra.Command{
		Use:     "mq",
		Short:   "Message queue related commands",
		Aliases: []string{"messagequeue"},
	}

	mqTopicsCmd = &cobra.Command{
		Use:   "topics",
		Short: "list the topics published and consumed by the service",
		Run: func(cmd *cobra.Command, args []string) {
			for _, t := range queue.AllTopics() {
				fmt.Fprintln(cmd.OutOrStdout(), t)
			}
		},
	}
)

// registerMQCommands 注册 MQ 相关命令.
func registerMQCommands() {
	rootCmd.AddCommand(mqCmd)
	mqCmd.AddCommand(mqTopicsCmd)
}
