package main

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/lucifer2f/sld-design-sub001/internal/store"
)

// settingsCommand 查看与修改保存在 SQLite 中的运行设置
func settingsCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "列出已保存的设置",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configPath, true)
			if err != nil {
				return err
			}
			defer a.Close()

			all, err := a.store.AllSettings(cmd.Context())
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(all))
			for k := range all {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			for _, k := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", k, all[k])
			}
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set KEY VALUE",
		Short: "保存设置项",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			if key == store.SettingAcceptanceFloor {
				f, err := strconv.ParseFloat(value, 64)
				if err != nil || f <= 0 || f > 1 {
					return eris.Errorf("%s must be a number in (0, 1], got %q", key, value)
				}
			}
			a, err := newApp(*configPath, true)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.store.SetSetting(cmd.Context(), key, value)
		},
	})
	return cmd
}
