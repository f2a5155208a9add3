package main

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func registryCommand(configPath *string) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "列出规范字段、别名与阈值",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configPath, false)
			if err != nil {
				return err
			}
			defer a.Close()

			reg, err := a.cfg.BuildRegistry()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch format {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return eris.Wrap(enc.Encode(reg.Summary()), "failed to encode registry")
			case "yaml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(reg.Summary()); err != nil {
					return eris.Wrap(err, "failed to encode registry")
				}
				return eris.Wrap(enc.Close(), "failed to flush yaml")
			default:
				return eris.Errorf("unknown format %q", format)
			}
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "输出格式: json, yaml")
	return cmd
}
