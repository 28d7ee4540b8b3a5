package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/disiqueira/gotree/v3"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/yeisme/skelvault/pkg/configs"
	"github.com/yeisme/skelvault/pkg/internal/service"
	"github.com/yeisme/skelvault/pkg/internal/storage"
	"github.com/yeisme/skelvault/pkg/skeleton"
)

var (
	fileCmd = &cobra.Command{
		Use:   "file",
		Short: "inspect the file module",
	}

	fileTreeCmd = &cobra.Command{
		Use:   "tree <email>",
		Short: "print the personal file tree of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistry(cmd.Context(), func(_ *configs.AppConfig, _ *storage.Manager, reg *service.Registry) error {
				ctx := cmd.Context()

				u, err := reg.Users.Resolve(ctx, args[0], false)
				if err != nil {
					return err
				}

				fm := reg.File

				root, err := reg.Store.Get(ctx, fm.Nodes.Factory, service.RootNodeKey(u.Key))
				if errors.Is(err, service.ErrNotFound) {
					fmt.Fprintf(cmd.OutOrStdout(), "%s has no files\n", u.Name)

					return nil
				}

				if err != nil {
					return err
				}

				tree := gotree.New(fmt.Sprintf("%s [%s]", root.String(service.BoneName), root.Key))
				if err := addChildren(ctx, fm.Tree, tree, root.Key); err != nil {
					return err
				}

				fmt.Fprint(cmd.OutOrStdout(), tree.Print())

				return nil
			})
		},
	}
)

// addChildren 递归把目录与文件加入 gotree.
func addChildren(ctx context.Context, t *service.Tree, parent gotree.Tree, key string) error {
	nodes, leaves, err := t.Children(ctx, key)
	if err != nil {
		return err
	}

	for _, n := range nodes {
		if err := addChildren(ctx, t, parent.Add(n.String(service.BoneName)+"/"), n.Key); err != nil {
			return err
		}
	}

	for _, l := range leaves {
		parent.Add(leafLabel(l))
	}

	return nil
}

func leafLabel(l *skeleton.Skeleton) string {
	return fmt.Sprintf("%s (%s, %s)", l.String(service.BoneName),
		humanize.IBytes(uint64(l.Float(service.BoneSize))), l.String(service.BoneMimeType))
}

// registerFileCommands 注册文件模块命令.
func registerFileCommands() {
	rootCmd.AddCommand(fileCmd)
	fileCmd.AddCommand(fileTreeCmd)
}
