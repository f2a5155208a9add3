package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// rootCommand 根命令与全局参数
func rootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "sldimport",
		Short:         "电气设备清单导入工具",
		Long:          "将负载、电缆、母线、变压器清单工作簿识别、映射、抽取并校验为规范化记录。",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径 (默认可执行文件同目录的 config.toml)")

	rootCmd.AddCommand(
		importCommand(&configPath),
		serveCommand(&configPath),
		registryCommand(&configPath),
		settingsCommand(&configPath),
	)
	return rootCmd
}
