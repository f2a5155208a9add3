package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lucifer2f/sld-design-sub001/internal/capability"
	"github.com/lucifer2f/sld-design-sub001/internal/config"
	"github.com/lucifer2f/sld-design-sub001/internal/importer"
	"github.com/lucifer2f/sld-design-sub001/internal/logging"
	"github.com/lucifer2f/sld-design-sub001/internal/metrics"
	"github.com/lucifer2f/sld-design-sub001/internal/model"
	"github.com/lucifer2f/sld-design-sub001/internal/store"
)

// app 一次命令执行所需的依赖
type app struct {
	cfg     *config.AppConfig
	info    config.LoadConfigInfo
	logger  *zap.Logger
	store   *store.Store
	metrics *metrics.ImportMetrics
}

// newApp 加载配置并初始化日志；persist 为 true 时打开 SQLite
func newApp(configPath string, persist bool) (*app, error) {
	if configPath == "" {
		configPath = config.DefaultPath()
	}
	cfg, info, err := config.LoadFile(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, info: info, logger: logger}
	if info.Found {
		logger.Debug("config loaded", zap.String("path", info.Path))
	} else {
		logger.Debug("config not found, using defaults", zap.String("path", info.Path))
	}

	a.metrics, err = metrics.NewImportMetrics(prometheus.NewRegistry())
	if err != nil {
		return nil, err
	}

	if persist {
		if err := a.openStore(); err != nil {
			_ = logger.Sync()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) openStore() error {
	dataDir, err := config.EnsureDataDir(a.cfg)
	if err != nil {
		return err
	}
	dbPath := config.DatabasePath(a.cfg, dataDir)
	st, err := store.New(dbPath)
	if err != nil {
		return err
	}
	a.logger.Info("store opened", zap.String("path", dbPath))
	a.store = st
	return nil
}

// coordinatorOptions 命令行可关闭的能力
type coordinatorOptions struct {
	noEmbedding bool
	noAdvisor   bool
	onSheetDone func(model.SheetReport)
}

// coordinator 按配置构建导入协调器
func (a *app) coordinator(opts coordinatorOptions) (*importer.Coordinator, error) {
	reg, err := a.cfg.BuildRegistry()
	if err != nil {
		return nil, err
	}
	p := a.cfg.Pipeline
	o := importer.Options{
		Registry:        reg,
		EnableEmbedding: a.cfg.Embedding.Enabled && !opts.noEmbedding,
		EnableAdvisor:   a.cfg.Advisor.Enabled && !opts.noAdvisor,
		Workers:         p.Workers,
		RowWorkers:      p.RowWorkers,
		SampleRows:      p.SampleRows,
		AcceptanceFloor: a.acceptanceFloor(context.Background(), p.AcceptanceFloor),
		Sizing:          p.Sizing,
		Store:           a.store,
		Metrics:         a.metrics,
		Logger:          a.logger,
		OnSheetDone:     opts.onSheetDone,
	}
	if o.EnableEmbedding {
		o.Embedder = capability.NewHTTPEmbedder(a.cfg.Embedding.HTTP())
	}
	if o.EnableAdvisor {
		o.Advisor = capability.NewHTTPAdvisor(a.cfg.Advisor.HTTP())
	}
	return importer.NewCoordinator(o)
}

// acceptanceFloor SQLite 中保存的阈值优先于配置文件；取值无效时忽略
func (a *app) acceptanceFloor(ctx context.Context, configured float64) float64 {
	if a.store == nil {
		return configured
	}
	f, err := a.store.GetSettingFloat(ctx, store.SettingAcceptanceFloor)
	switch {
	case eris.Is(err, store.ErrSettingNotFound):
		return configured
	case err != nil:
		a.logger.Warn("ignoring stored acceptance floor", zap.Error(err))
		return configured
	case f <= 0 || f > 1:
		a.logger.Warn("stored acceptance floor outside (0, 1]", zap.Float64("value", f))
		return configured
	}
	return f
}

// Close 释放存储并刷新日志
func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close store", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
