package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	appcache "github.com/yeisme/skelvault/pkg/cache"
	"github.com/yeisme/skelvault/pkg/configs"
	"github.com/yeisme/skelvault/pkg/internal/access"
	"github.com/yeisme/skelvault/pkg/internal/service"
	"github.com/yeisme/skelvault/pkg/internal/storage"
	"github.com/yeisme/skelvault/pkg/rule"
)

var (
	userCmd = &cobra.Command{
		Use:   "user",
		Short: "manage users and their access rights",
	}

	userAddCmd = &cobra.Command{
		Use:   "add <email> [right...]",
		Short: "create a user with the given rights",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rule.ValidateVar(args[0], "required,email"); err != nil {
				return fmt.Errorf("invalid user name %q: %w", args[0], err)
			}

			return withRegistry(cmd.Context(), func(_ *configs.AppConfig, _ *storage.Manager, reg *service.Registry) error {
				u, err := reg.Users.Add(cmd.Context(), args[0], args[1:]...)
				if err != nil {
					return err
				}

				printUser(cmd, u)

				return nil
			})
		},
	}

	userGrantCmd = &cobra.Command{
		Use:   "grant <email> <right...>",
		Short: "grant additional rights, unknown rights are ignored",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistry(cmd.Context(), func(_ *configs.AppConfig, mgr *storage.Manager, reg *service.Registry) error {
				for _, r := range args[1:] {
					if !reg.Table.Known(r) {
						fmt.Fprintf(cmd.ErrOrStderr(), "unknown right %q ignored\n", r)
					}
				}

				u, err := reg.Users.Grant(cmd.Context(), args[0], args[1:]...)
				if err != nil {
					return err
				}

				forgetUser(cmd, mgr, u.Name)
				printUser(cmd, u)

				return nil
			})
		},
	}

	userRevokeCmd = &cobra.Command{
		Use:   "revoke <email> <right...>",
		Short: "revoke rights from a user",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistry(cmd.Context(), func(_ *configs.AppConfig, mgr *storage.Manager, reg *service.Registry) error {
				u, err := reg.Users.Revoke(cmd.Context(), args[0], args[1:]...)
				if err != nil {
					return err
				}

				forgetUser(cmd, mgr, u.Name)
				printUser(cmd, u)

				return nil
			})
		},
	}

	userListCmd = &cobra.Command{
		Use:     "list",
		Short:   "list users",
		Aliases: []string{"ls", "l"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistry(cmd.Context(), func(_ *configs.AppConfig, _ *storage.Manager, reg *service.Registry) error {
				users, err := reg.Users.List(cmd.Context())
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "KEY\tNAME\tACCESS")

				for _, u := range users {
					fmt.Fprintf(w, "%s\t%s\t%s\n", u.Key, u.Name, strings.Join(u.Access, ","))
				}

				return w.Flush()
			})
		},
	}
)

// forgetUser 删除身份缓存，KV 为共享后端时运行中的服务立即看到新权限.
func forgetUser(cmd *cobra.Command, mgr *storage.Manager, name string) {
	if err := appcache.NewCache(mgr.KV).Delete(cmd.Context(), appcache.UserKey(name)); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: drop cached identity: %v\n", err)
	}
}

func printUser(cmd *cobra.Command, u *access.User) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%s): %s\n", u.Name, u.Key, strings.Join(u.Access, ","))
}

// registerUserCommands 注册用户管理命令.
func registerUserCommands() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userGrantCmd)
	userCmd.AddCommand(userRevokeCmd)
	userCmd.AddCommand(userListCmd)
}
