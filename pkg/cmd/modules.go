package cmd

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/yeisme/skelvault/pkg/configs"
	"github.com/yeisme/skelvault/pkg/internal/service"
	"github.com/yeisme/skelvault/pkg/internal/storage"
	"github.com/yeisme/skelvault/pkg/skeleton"
)

type kindDoc struct {
	Module    string               `yaml:"module"`
	Kind      string               `yaml:"kind"`
	Structure []skeleton.Structure `yaml:"structure"`
}

type modulesDoc struct {
	Modules []string  `yaml:"modules"`
	Rights  []string  `yaml:"rights"`
	Kinds   []kindDoc `yaml:"kinds"`
}

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "print the capability table and the skeleton structures as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRegistry(cmd.Context(), func(_ *configs.AppConfig, _ *storage.Manager, reg *service.Registry) error {
			doc := modulesDoc{
				Modules: reg.Table.Modules(),
				Rights:  reg.Table.Rights(),
			}

			for _, f := range reg.Factories() {
				doc.Kinds = append(doc.Kinds, kindDoc{Module: f.Module(), Kind: f.Kind(), Structure: f.Structure()})
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)

			if err := enc.Encode(doc); err != nil {
				return err
			}

			return enc.Close()
		})
	},
}

// registerModulesCommands 注册模块声明查看命令.
func registerModulesCommands() {
	rootCmd.AddCommand(modulesCmd)
}
