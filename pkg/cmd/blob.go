package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yeisme/skelvault/pkg/configs"
	"github.com/yeisme/skelvault/pkg/internal/service"
	"github.com/yeisme/skelvault/pkg/internal/storage"
)

var blobLimit int

var (
	blobCmd = &cobra.Command{
		Use:   "blob",
		Short: "Blob service related commands",
	}

	blobListCmd = &cobra.Command{
		Use:     "list",
		Short:   "list stored blobs",
		Aliases: []string{"ls", "l"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistry(cmd.Context(), func(_ *configs.AppConfig, mgr *storage.Manager, _ *service.Registry) error {
				infos, err := mgr.Blob.List(cmd.Context(), blobLimit)
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "KEY\tSIZE\tTYPE\tFILENAME")

				for _, i := range infos {
					fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", i.Key, i.Size, i.ContentType, i.Filename)
				}

				return w.Flush()
			})
		},
	}
)

// registerBlobCommands 注册 blob 相关命令.
func registerBlobCommands() {
	blobListCmd.Flags().IntVarP(&blobLimit, "limit", "n", 100, "maximum number of blobs to list")

	rootCmd.AddCommand(blobCmd)
	blobCmd.AddCommand(blobListCmd)
}
