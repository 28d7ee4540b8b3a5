package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/yeisme/skelvault/pkg/configs"
	"github.com/yeisme/skelvault/pkg/rule"
)

const maskedValue = "******"

// secretKeys 字段名包含这些片段时 show 默认打码.
var secretKeys = []string{"password", "secret", "jwt", "seed"}

var (
	showFormat string
	showReveal bool

	configCmd = &cobra.Command{
		Use:   "config",
		Short: "inspect and validate configuration",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return configs.InitConfig(configPath)
		},
	}

	pathCmd = &cobra.Command{
		Use:   "path",
		Short: "print the config file in use",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := configs.GetViper().ConfigFileUsed()
			if f == "" {
				f = "no config file used (defaults and environment only)"
			}

			fmt.Fprintln(cmd.OutOrStdout(), f)

			return nil
		},
	}

	showCmd = &cobra.Command{
		Use:     "show",
		Short:   "print the effective config after defaults and environment",
		Aliases: []string{"debug"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if debug {
				configs.GetViper().Debug()
			}

			tree, err := configTree(configs.GetConfig(), !showReveal)
			if err != nil {
				return err
			}

			var out []byte
			switch showFormat {
			case "yaml":
				out, err = yaml.Marshal(tree)
			default:
				out, err = sonic.ConfigStd.MarshalIndent(tree, "", "  ")
			}

			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(string(out), "\n"))

			return nil
		},
	}

	validateCmd = &cobra.Command{
		Use:   "validate",
		Short: "load the config and report every invalid field",
		// 覆盖父命令，加载失败要在 RunE 中逐项输出
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			err := configs.InitConfig(configPath)
			if err == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "config ok")

				return nil
			}

			fields := rule.Errors(err)
			if len(fields) == 0 {
				return err
			}

			names := make([]string, 0, len(fields))
			for name := range fields {
				names = append(names, name)
			}

			sort.Strings(names)

			for _, name := range names {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", name, fields[name])
			}

			return fmt.Errorf("%d invalid field(s)", len(fields))
		},
	}
)

// configTree 把配置转为通用的 map，mask 为 true 时隐藏凭据.
func configTree(cfg *configs.AppConfig, mask bool) (map[string]any, error) {
	b, err := sonic.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	var tree map[string]any
	if err := sonic.Unmarshal(b, &tree); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if mask {
		maskSecrets(tree)
	}

	return tree, nil
}

func maskSecrets(v any) {
	switch node := v.(type) {
	case map[string]any:
		for k, child := range node {
			if s, ok := child.(string); ok && s != "" && isSecretKey(k) {
				node[k] = maskedValue

				continue
			}

			maskSecrets(child)
		}
	case []any:
		for _, child := range node {
			maskSecrets(child)
		}
	}
}

func isSecretKey(k string) bool {
	k = strings.ToLower(k)
	for _, s := range secretKeys {
		if strings.Contains(k, s) {
			return true
		}
	}

	return false
}

func registerConfigsCommands() {
	showCmd.Flags().StringVarP(&showFormat, "format", "f", "json", "output format: json or yaml")
	showCmd.Flags().BoolVar(&showReveal, "reveal", false, "print credentials in clear text")

	configCmd.AddCommand(pathCmd, showCmd, validateCmd)
	rootCmd.AddCommand(configCmd)
}
