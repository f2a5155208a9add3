package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/rotisserie/eris"

	"github.com/lucifer2f/sld-design-sub001/internal/capability"
	"github.com/lucifer2f/sld-design-sub001/internal/extractor"
	"github.com/lucifer2f/sld-design-sub001/internal/model"
	"github.com/lucifer2f/sld-design-sub001/internal/registry"
)

// FileName 配置文件名
const FileName = "config.toml"

// AppConfig 应用配置
type AppConfig struct {
	Server     ServerConfig     `toml:"server"`
	Data       DataConfig       `toml:"data"`
	Pipeline   PipelineConfig   `toml:"pipeline"`
	Thresholds ThresholdsConfig `toml:"thresholds"`
	Registry   RegistryConfig   `toml:"registry"`
	Embedding  CapabilityConfig `toml:"embedding"`
	Advisor    CapabilityConfig `toml:"advisor"`
	Logging    LoggingConfig    `toml:"logging"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port    int  `toml:"port"`
	DevMode bool `toml:"dev_mode"`
}

// DataConfig 数据配置
type DataConfig struct {
	DataDir  string `toml:"data_dir"`
	Database string `toml:"database"`
}

// PipelineConfig 处理流水线配置
type PipelineConfig struct {
	AcceptanceFloor float64          `toml:"acceptance_floor"`
	Workers         int              `toml:"workers"`
	RowWorkers      int              `toml:"row_workers"`
	SampleRows      int              `toml:"sample_rows"`
	Sizing          extractor.Sizing `toml:"sizing"`
}

// ThresholdsConfig τ/margin 覆盖；未配置的分类沿用默认值
type ThresholdsConfig struct {
	Sheet      *registry.ThresholdPolicy `toml:"sheet,omitempty"`
	Identifier *registry.ThresholdPolicy `toml:"identifier,omitempty"`
	Numeric    *registry.ThresholdPolicy `toml:"numeric,omitempty"`
	Enum       *registry.ThresholdPolicy `toml:"enum,omitempty"`
	Text       *registry.ThresholdPolicy `toml:"text,omitempty"`
}

// RegistryConfig 别名表配置
type RegistryConfig struct {
	AliasFile string `toml:"alias_file"`
}

// CapabilityConfig 外部能力（Ollama 兼容服务）
type CapabilityConfig struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// HTTP 转换为适配器配置
func (c CapabilityConfig) HTTP() capability.HTTPConfig {
	return capability.HTTPConfig{
		Endpoint: c.Endpoint,
		Model:    c.Model,
		Timeout:  time.Duration(c.TimeoutSeconds) * time.Second,
	}
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `toml:"level"`  // debug/info/warn/error
	Format string `toml:"format"` // console/json
}

// LoadConfigInfo 配置加载元信息
type LoadConfigInfo struct {
	Path          string
	Found         bool
	PortSpecified bool
}

// DefaultConfig 默认配置
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:    20261,
			DevMode: false,
		},
		Data: DataConfig{
			DataDir:  "data",
			Database: "sldimport.db",
		},
		Pipeline: PipelineConfig{
			AcceptanceFloor: 0.6,
			Workers:         4,
			RowWorkers:      4,
			SampleRows:      5,
			Sizing:          extractor.DefaultSizing(),
		},
		Embedding: CapabilityConfig{
			Enabled:        false,
			Endpoint:       "http://localhost:11434",
			Model:          "nomic-embed-text",
			TimeoutSeconds: 10,
		},
		Advisor: CapabilityConfig{
			Enabled:        false,
			Endpoint:       "http://localhost:11434",
			Model:          "qwen2.5:7b",
			TimeoutSeconds: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate 校验配置取值
func (c *AppConfig) Validate() error {
	if f := c.Pipeline.AcceptanceFloor; f <= 0 || f > 1 {
		return eris.Wrapf(model.ErrInvalidConfig, "pipeline.acceptance_floor %.2f outside (0, 1]", f)
	}
	if c.Pipeline.Workers < 0 || c.Pipeline.RowWorkers < 0 || c.Pipeline.SampleRows < 0 {
		return eris.Wrap(model.ErrInvalidConfig, "pipeline worker and sample counts must not be negative")
	}
	if len(c.Pipeline.Sizing.Ampacity) == 0 {
		return eris.Wrap(model.ErrInvalidConfig, "pipeline.sizing.ampacity must not be empty")
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return eris.Wrapf(model.ErrInvalidConfig, "logging.format %q must be console or json", c.Logging.Format)
	}
	_, err := c.Policies()
	return err
}

// Policies 默认策略叠加 [thresholds] 覆盖
func (c *AppConfig) Policies() (*registry.Policies, error) {
	p := registry.DefaultPolicies()
	t := c.Thresholds
	if t.Sheet != nil {
		p.Sheet = *t.Sheet
	}
	for kind, pol := range map[model.ValueKind]*registry.ThresholdPolicy{
		model.KindIdentifier: t.Identifier,
		model.KindNumeric:    t.Numeric,
		model.KindEnum:       t.Enum,
		model.KindText:       t.Text,
	} {
		if pol != nil {
			p.SetClass(kind, *pol)
		}
	}
	if err := p.Validate(); err != nil {
		return nil, eris.Wrap(err, "thresholds")
	}
	return &p, nil
}

// BuildRegistry 按配置构建字段注册表（含别名覆盖文件）
func (c *AppConfig) BuildRegistry() (*registry.Registry, error) {
	policies, err := c.Policies()
	if err != nil {
		return nil, err
	}
	opts := registry.Options{Policies: policies}
	if c.Registry.AliasFile != "" {
		extra, err := registry.LoadAliasFile(c.Registry.AliasFile)
		if err != nil {
			return nil, err
		}
		opts.ExtraAliases = extra
	}
	return registry.New(opts)
}

func isPortSpecifiedInToml(data []byte) bool {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return false
	}

	serverAny, ok := raw["server"]
	if !ok {
		return false
	}

	serverMap, ok := serverAny.(map[string]any)
	if !ok {
		return false
	}

	_, ok = serverMap["port"]
	return ok
}

// GetExeDir 获取可执行文件所在目录
func GetExeDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", eris.Wrap(err, "failed to locate executable")
	}
	return filepath.Dir(exe), nil
}

// DefaultPath 可执行文件同目录下的 config.toml
func DefaultPath() string {
	exeDir, err := GetExeDir()
	if err != nil {
		// 无法获取可执行文件目录，使用当前目录
		exeDir = "."
	}
	return filepath.Join(exeDir, FileName)
}

// LoadFile 从指定路径加载配置；文件不存在时返回默认配置
func LoadFile(path string) (*AppConfig, LoadConfigInfo, error) {
	info := LoadConfigInfo{Path: path}
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// 配置文件不存在，使用默认配置
			applyEnv(config)
			return config, info, nil
		}
		return nil, info, eris.Wrapf(err, "failed to read %s", path)
	}
	info.Found = true
	info.PortSpecified = isPortSpecifiedInToml(data)

	if err := toml.Unmarshal(data, config); err != nil {
		return nil, info, eris.Wrapf(err, "failed to parse %s", path)
	}
	if config.Registry.AliasFile != "" && !filepath.IsAbs(config.Registry.AliasFile) {
		config.Registry.AliasFile = filepath.Join(filepath.Dir(path), config.Registry.AliasFile)
	}
	applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, info, eris.Wrapf(err, "invalid %s", path)
	}
	return config, info, nil
}

// applyEnv 环境变量覆盖（用于容器 / 本地运行）
func applyEnv(config *AppConfig) {
	if v := os.Getenv("SLDIMPORT_EMBEDDING_ENDPOINT"); v != "" {
		config.Embedding.Endpoint = v
	}
	if v := os.Getenv("SLDIMPORT_ADVISOR_ENDPOINT"); v != "" {
		config.Advisor.Endpoint = v
	}
	if v := os.Getenv("SLDIMPORT_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

// LoadConfigWithInfo 从可执行文件同目录的 config.toml 加载配置并返回元信息
func LoadConfigWithInfo() (*AppConfig, LoadConfigInfo, error) {
	return LoadFile(DefaultPath())
}

// LoadConfig 从 config.toml 加载配置
// 配置文件位于可执行文件同目录下
func LoadConfig() (*AppConfig, error) {
	config, _, err := LoadConfigWithInfo()
	return config, err
}

// SaveConfig 保存配置到指定路径
func SaveConfig(config *AppConfig, path string) error {
	data, err := toml.Marshal(config)
	if err != nil {
		return eris.Wrap(err, "failed to encode config")
	}
	return eris.Wrapf(os.WriteFile(path, data, 0644), "failed to write %s", path)
}

// EnsureDataDir 确保数据目录存在；相对路径基于可执行文件目录
func EnsureDataDir(config *AppConfig) (string, error) {
	dataDir := config.Data.DataDir
	if !filepath.IsAbs(dataDir) {
		exeDir, err := GetExeDir()
		if err != nil {
			exeDir = "."
		}
		dataDir = filepath.Join(exeDir, dataDir)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", eris.Wrapf(err, "failed to create %s", dataDir)
	}

	// 创建子目录
	subdirs := []string{"uploads", "exports"}
	for _, subdir := range subdirs {
		path := filepath.Join(dataDir, subdir)
		if err := os.MkdirAll(path, 0755); err != nil {
			return "", eris.Wrapf(err, "failed to create %s", path)
		}
	}

	return dataDir, nil
}

// DatabasePath 数据库文件路径
func DatabasePath(config *AppConfig, dataDir string) string {
	if filepath.IsAbs(config.Data.Database) {
		return config.Data.Database
	}
	return filepath.Join(dataDir, config.Data.Database)
}
