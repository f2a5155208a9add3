package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lucifer2f/sld-design-sub001/internal/capability"
	"github.com/lucifer2f/sld-design-sub001/internal/enhancer"
	"github.com/lucifer2f/sld-design-sub001/internal/extractor"
	"github.com/lucifer2f/sld-design-sub001/internal/metrics"
	"github.com/lucifer2f/sld-design-sub001/internal/model"
	"github.com/lucifer2f/sld-design-sub001/internal/parser"
	"github.com/lucifer2f/sld-design-sub001/internal/provenance"
	"github.com/lucifer2f/sld-design-sub001/internal/registry"
	"github.com/lucifer2f/sld-design-sub001/internal/store"
	"github.com/lucifer2f/sld-design-sub001/internal/validator"
)

const (
	defaultWorkers    = 4
	defaultSampleRows = 5

	CapabilityEmbedding = "embedding"
	CapabilityAdvisor   = "advisor"

	RuleUnrecognized = "classify.unrecognized"
	RuleMalformed    = "sheet.malformed"
	RuleCapability   = "capability.unavailable"
)

// Options 协调器配置
type Options struct {
	Registry        *registry.Registry
	Embedder        capability.Embedder
	Advisor         capability.Advisor
	EnableEmbedding bool
	EnableAdvisor   bool
	Workers         int     // 并行处理的 sheet 数
	RowWorkers      int     // 单个 sheet 内并行提取的行数
	SampleRows      int     // 参与语义分类的样本行数
	AcceptanceFloor float64 // 0 表示默认值
	Sizing          extractor.Sizing
	Store           *store.Store
	Metrics         *metrics.ImportMetrics
	Logger          *zap.Logger
	// OnSheetDone 每个 sheet 处理完成后回调，可能被并发调用
	OnSheetDone func(model.SheetReport)
}

// Coordinator 导入协调器：分类、映射、提取、增强、校验
type Coordinator struct {
	opts    Options
	reg     *registry.Registry
	store   *store.Store
	metrics *metrics.ImportMetrics
	logger  *zap.Logger
}

// NewCoordinator 创建导入协调器；配置非法时返回 ErrInvalidConfig
func NewCoordinator(opts Options) (*Coordinator, error) {
	if opts.AcceptanceFloor < 0 || opts.AcceptanceFloor > 1 {
		return nil, eris.Wrapf(model.ErrInvalidConfig, "acceptance floor %.2f outside (0, 1]", opts.AcceptanceFloor)
	}
	if opts.AcceptanceFloor == 0 {
		opts.AcceptanceFloor = validator.DefaultAcceptanceFloor
	}
	if opts.Workers < 0 || opts.RowWorkers < 0 {
		return nil, eris.Wrap(model.ErrInvalidConfig, "worker counts must not be negative")
	}
	if opts.Workers == 0 {
		opts.Workers = defaultWorkers
	}
	if opts.SampleRows <= 0 {
		opts.SampleRows = defaultSampleRows
	}
	if len(opts.Sizing.Ampacity) == 0 {
		opts.Sizing = extractor.DefaultSizing()
	}
	if opts.Registry == nil {
		reg, err := registry.New(registry.Options{})
		if err != nil {
			return nil, eris.Wrap(err, "failed to build registry")
		}
		opts.Registry = reg
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Coordinator{
		opts:    opts,
		reg:     opts.Registry,
		store:   opts.Store,
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}, nil
}

// Registry 当前使用的字段注册表
func (c *Coordinator) Registry() *registry.Registry {
	return c.reg
}

// Capabilities 配置中启用的外部能力
func (c *Coordinator) Capabilities() map[string]bool {
	return map[string]bool{
		CapabilityEmbedding: c.opts.EnableEmbedding && c.opts.Embedder != nil,
		CapabilityAdvisor:   c.opts.EnableAdvisor && c.opts.Advisor != nil,
	}
}

// AcceptanceFloor 记录接受下限
func (c *Coordinator) AcceptanceFloor() float64 {
	return c.opts.AcceptanceFloor
}

// pipeline 单次运行的全部状态，运行之间不共享
type pipeline struct {
	runID      string
	log        *provenance.Log
	cache      *provenance.SimilarityCache
	embedding  *capability.Guard
	advisor    *capability.Guard
	classifier *parser.SheetClassifier
	mapper     *parser.ColumnMapper
	extractor  *extractor.Extractor
	enhancer   *enhancer.Enhancer
	validator  *validator.Validator
}

func (c *Coordinator) newPipeline(runID string) *pipeline {
	logger := c.logger.With(zap.String("run_id", runID))
	p := &pipeline{
		runID: runID,
		log:   provenance.NewLog(),
		cache: provenance.NewSimilarityCache(),
	}
	p.embedding = capability.NewGuard(CapabilityEmbedding, c.opts.EnableEmbedding, logger, p.log)
	p.advisor = capability.NewGuard(CapabilityAdvisor, c.opts.EnableAdvisor, logger, p.log)

	env := parser.Env{
		Registry:   c.reg,
		Cache:      p.cache,
		Log:        p.log,
		Embeddings: capability.NewEmbeddings(c.opts.Embedder, p.cache, p.embedding),
		Advice:     capability.NewAdvice(c.opts.Advisor, p.advisor),
		Logger:     logger,
	}
	p.classifier = parser.NewSheetClassifier(env, c.opts.SampleRows)
	p.mapper = parser.NewColumnMapper(env)
	p.extractor = extractor.New(c.reg, p.log, logger, c.opts.RowWorkers)
	p.enhancer = enhancer.New(c.opts.Sizing, p.log, logger)
	p.validator = validator.New(c.reg, c.opts.Sizing, c.opts.AcceptanceFloor, p.log, logger)
	return p
}

// Run 同步处理一组 sheet
func (c *Coordinator) Run(ctx context.Context, sheets []model.Sheet) (*model.ProcessingReport, error) {
	return c.run(ctx, uuid.NewString(), sheets, nil)
}

// sheetOutcome 单个 sheet 的阶段一结果
type sheetOutcome struct {
	report model.SheetReport
	entity model.EntityType
}

func (c *Coordinator) run(ctx context.Context, runID string, sheets []model.Sheet, progress func(ProgressEvent)) (*model.ProcessingReport, error) {
	if sheets == nil {
		c.metrics.ObserveFailure()
		return nil, eris.Wrap(model.ErrNilInput, "no sheets supplied")
	}
	start := time.Now()
	p := c.newPipeline(runID)
	if progress == nil {
		progress = func(ProgressEvent) {}
	}

	outcomes := make([]sheetOutcome, len(sheets))
	for i, sh := range sheets {
		outcomes[i].report = model.SheetReport{
			Index:     i,
			Name:      sh.Name,
			Status:    model.SheetNotProcessed,
			RowsTotal: len(sh.Rows),
		}
	}

	// 阶段一：各 sheet 并行分类、映射、提取
	var g errgroup.Group
	g.SetLimit(c.opts.Workers)
	for i := range sheets {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			outcomes[i] = c.processSheet(ctx, p, i, sheets[i])
			sr := outcomes[i].report
			progress(sheetDoneEvent(sr))
			if c.opts.OnSheetDone != nil {
				c.opts.OnSheetDone(sr)
			}
			return nil
		})
	}
	_ = g.Wait()

	report := &model.ProcessingReport{
		RunID:        runID,
		StartedAt:    start,
		Capabilities: make(map[string]bool),
	}

	// 阶段二：整批增强（跨 sheet 引用需要看到全部记录）
	var all []*model.ExtractedRecord
	for i := range outcomes {
		if outcomes[i].report.Status == model.SheetProcessed {
			all = append(all, outcomes[i].report.Records...)
		}
	}
	enh := p.enhancer.Enhance(all)
	offset := 0
	var inputs []validator.SheetInput
	var owners []int
	for i := range outcomes {
		sr := &outcomes[i].report
		if sr.Status != model.SheetProcessed {
			continue
		}
		n := len(sr.Records)
		sr.Records = enh.Records[offset : offset+n]
		offset += n
		owners = append(owners, i)
		inputs = append(inputs, validator.SheetInput{
			Index:    i,
			Name:     sr.Name,
			Entity:   outcomes[i].entity,
			Mappings: sr.Mappings,
			Records:  sr.Records,
		})
	}

	// 阶段三：校验与质量评分
	out := p.validator.Validate(inputs, enh.Synthesized, enh.Corrections)
	// 按输入位置回填，同名 sheet 互不影响
	for k, in := range inputs {
		sr := &outcomes[owners[k]].report
		sr.Mappings = in.Mappings
		sr.Issues = append(sr.Issues, out.SheetIssues[k]...)
		sr.Quality = out.SheetQuality[k]
	}

	cancelled := false
	for i := range outcomes {
		sr := outcomes[i].report
		if sr.Status == model.SheetNotProcessed {
			cancelled = true
		}
		report.Sheets = append(report.Sheets, sr)
		report.Issues = append(report.Issues, sr.Issues...)
	}
	report.Cancelled = cancelled
	for _, rec := range enh.Synthesized {
		report.Issues = append(report.Issues, rec.Issues...)
	}
	report.Synthesized = enh.Synthesized
	report.Corrections = enh.Corrections
	report.Quality = out.Quality

	for _, cp := range []struct {
		name    string
		guard   *capability.Guard
		enabled bool
	}{
		{CapabilityEmbedding, p.embedding, c.opts.EnableEmbedding},
		{CapabilityAdvisor, p.advisor, c.opts.EnableAdvisor},
	} {
		up := cp.guard.Available()
		report.Capabilities[cp.name] = up
		if cp.enabled && !up {
			report.Issues = append(report.Issues, model.ValidationIssue{
				Severity: model.SeverityWarning,
				Kind:     model.KindCapabilityUnavailable,
				Field:    cp.name,
				Message:  fmt.Sprintf("%s capability unavailable, results use reduced signals", cp.name),
				RuleID:   RuleCapability,
			})
		}
	}

	if cancelled {
		p.log.Append(model.ProvenanceEntry{
			Stage:    model.StagePipeline,
			Decision: "cancelled",
			Detail:   eris.Wrap(ctx.Err(), "run interrupted").Error(),
		})
	}
	report.FinishedAt = time.Now()
	report.Provenance = p.log.Entries()

	elapsed := time.Since(start)
	c.metrics.ObserveRun(report, elapsed, p.cache.Stats())
	sum := report.Summarize()
	c.logger.Info("importer: run finished",
		zap.String("run_id", runID),
		zap.Int("sheets", sum.Sheets),
		zap.Int("processed", sum.Processed),
		zap.Int("records", sum.Records),
		zap.Int("accepted", sum.Accepted),
		zap.Int("corrections", sum.Corrections),
		zap.Float64("quality", report.Quality),
		zap.Bool("cancelled", cancelled),
		zap.Duration("duration", elapsed))
	return report, nil
}

// processSheet 阶段一；sheet 内的 panic 被隔离为 failed
func (c *Coordinator) processSheet(ctx context.Context, p *pipeline, idx int, sheet model.Sheet) (out sheetOutcome) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("importer: sheet panicked",
				zap.String("run_id", p.runID),
				zap.String("sheet", sheet.Name),
				zap.Any("panic", r))
			out = sheetOutcome{report: failedSheet(idx, sheet, fmt.Sprintf("internal error: %v", r))}
			p.log.Append(model.ProvenanceEntry{
				Stage:    model.StagePipeline,
				Sheet:    sheet.Name,
				Decision: string(model.SheetFailed),
				Duration: time.Since(start),
				Detail:   out.report.Error,
			})
		}
	}()

	if sheet.NonEmptyHeaders() == 0 {
		out.report = failedSheet(idx, sheet, "sheet has no header row")
		return out
	}

	sr := model.SheetReport{Index: idx, Name: sheet.Name, RowsTotal: len(sheet.Rows)}
	cls := p.classifier.Classify(ctx, sheet)
	sr.Classification = &cls

	entity, ok := cls.Type.Entity()
	if !ok {
		sr.Status = model.SheetUnrecognized
		sr.Mappings = parser.Unmapped(sheet)
		sr.Issues = []model.ValidationIssue{{
			Severity: model.SeverityWarning,
			Kind:     model.KindUnrecognizedSheetType,
			Sheet:    sheet.Name,
			Message:  fmt.Sprintf("sheet %q not recognized (%s, best score %.2f)", sheet.Name, cls.Reason, cls.Confidence),
			RuleID:   RuleUnrecognized,
		}}
		out.report = sr
		return out
	}

	sr.Mappings = p.mapper.Map(ctx, sheet, entity)
	res := p.extractor.Extract(sheet, entity, sr.Mappings)
	for _, rec := range res.Records {
		rec.Source.SheetIndex = idx
	}
	sr.Records = res.Records
	sr.RowsSkipped = res.Skipped
	sr.Issues = res.Issues
	sr.Status = model.SheetProcessed

	c.logger.Debug("importer: sheet processed",
		zap.String("run_id", p.runID),
		zap.String("sheet", sheet.Name),
		zap.String("type", string(cls.Type)),
		zap.Int("records", len(res.Records)),
		zap.Duration("duration", time.Since(start)))
	return sheetOutcome{report: sr, entity: entity}
}

func failedSheet(idx int, sheet model.Sheet, msg string) model.SheetReport {
	return model.SheetReport{
		Index:     idx,
		Name:      sheet.Name,
		Status:    model.SheetFailed,
		Error:     msg,
		RowsTotal: len(sheet.Rows),
		Issues: []model.ValidationIssue{{
			Severity: model.SeverityError,
			Kind:     model.KindMalformedSheet,
			Sheet:    sheet.Name,
			Message:  msg,
			RuleID:   RuleMalformed,
		}},
	}
}
