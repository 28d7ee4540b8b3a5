package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yeisme/skelvault/pkg/configs"
	"github.com/yeisme/skelvault/pkg/internal/storage/blob"
	"github.com/yeisme/skelvault/pkg/internal/storage/db"
	"github.com/yeisme/skelvault/pkg/internal/storage/kv"
	"github.com/yeisme/skelvault/pkg/internal/storage/mq"
)

// backendsCmd 列出编译进来的存储后端，当前配置选用的标 *.
var backendsCmd = &cobra.Command{
	Use:     "backends",
	Short:   "list the compiled-in db, blob, kv and mq backends",
	Aliases: []string{"drivers"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := configs.InitConfig(configPath); err != nil {
			return err
		}

		cfg := configs.GetConfig()

		rows := []struct {
			concern string
			active  string
			types   []string
		}{
			{"db", string(cfg.DB.Dialect()), names(db.GetRegisteredDBTypes())},
			{"blob", string(cfg.Blob.Type), names(blob.GetRegisteredTypes())},
			{"kv", string(cfg.KV.Type), names(kv.GetRegisteredKVTypes())},
			{"mq", string(cfg.MQ.Type), names(mq.GetRegisteredMQTypes())},
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CONCERN\tBACKEND\tACTIVE")

		for _, r := range rows {
			for _, t := range r.types {
				mark := ""
				if t == r.active {
					mark = "*"
				}

				fmt.Fprintf(w, "%s\t%s\t%s\n", r.concern, t, mark)
			}
		}

		return w.Flush()
	},
}

func names[T ~string](types []T) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}

	return out
}

func registerBackendsCommands() {
	rootCmd.AddCommand(backendsCmd)
}
