package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lucifer2f/sld-design-sub001/internal/api"
	"github.com/lucifer2f/sld-design-sub001/internal/server"
)

func serveCommand(configPath *string) *cobra.Command {
	var (
		port    int
		devMode bool
		dataDir string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 导入服务",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configPath, false)
			if err != nil {
				return err
			}
			defer a.Close()

			// 命令行参数覆盖配置；config.toml 显式配置的端口优先
			if port > 0 && !a.info.PortSpecified {
				a.cfg.Server.Port = port
			}
			if devMode {
				a.cfg.Server.DevMode = true
			}
			if dataDir != "" {
				a.cfg.Data.DataDir = dataDir
			}
			if err := a.openStore(); err != nil {
				return err
			}

			c, err := a.coordinator(coordinatorOptions{})
			if err != nil {
				return err
			}
			srv := server.NewServer(a.cfg, api.NewHandler(c, a.store, a.logger), a.metrics.Registry(), a.logger)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			addr := fmt.Sprintf(":%d", a.cfg.Server.Port)
			a.logger.Info("starting server",
				zap.String("url", fmt.Sprintf("http://localhost:%d/api/status", a.cfg.Server.Port)),
				zap.Bool("embedding", a.cfg.Embedding.Enabled),
				zap.Bool("advisor", a.cfg.Advisor.Enabled))
			err = srv.Run(ctx, addr)
			a.logger.Info("server stopped")
			return err
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "服务端口 (config.toml 优先；仅当未显式配置 port 时生效)")
	cmd.Flags().BoolVar(&devMode, "dev", false, "开发模式")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "数据目录 (覆盖配置文件)")
	return cmd
}
