package registry

import (
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/lucifer2f/sld-design-sub001/internal/model"
)

// ThresholdPolicy τ + margin 接受策略
type ThresholdPolicy struct {
	Tau    float64 `json:"tau" toml:"tau" yaml:"tau"`
	Margin float64 `json:"margin" toml:"margin" yaml:"margin"`
}

// Validate 校验 0 ≤ τ ≤ 1 且 margin ≥ 0
func (p ThresholdPolicy) Validate() error {
	if p.Tau < 0 || p.Tau > 1 {
		return eris.Wrapf(model.ErrInvalidConfig, "tau %.3f out of [0,1]", p.Tau)
	}
	if p.Margin < 0 {
		return eris.Wrapf(model.ErrInvalidConfig, "margin %.3f must be non-negative", p.Margin)
	}
	return nil
}

// Accepts 判断得分与领先差是否满足策略
func (p ThresholdPolicy) Accepts(score, runnerUp float64) bool {
	return score >= p.Tau && score-runnerUp >= p.Margin
}

// Policies 全部阈值策略
type Policies struct {
	Sheet    ThresholdPolicy
	perClass map[policyKey]ThresholdPolicy
}

type policyKey struct {
	entity model.EntityType
	kind   model.ValueKind
}

// 默认字段分类阈值
var defaultClassPolicies = map[model.ValueKind]ThresholdPolicy{
	model.KindIdentifier: {Tau: 0.80, Margin: 0.08},
	model.KindNumeric:    {Tau: 0.72, Margin: 0.05},
	model.KindEnum:       {Tau: 0.72, Margin: 0.05},
	model.KindText:       {Tau: 0.70, Margin: 0.05},
}

// DefaultSheetPolicy 默认 sheet 分类阈值
var DefaultSheetPolicy = ThresholdPolicy{Tau: 0.60, Margin: 0.15}

// DefaultPolicies 默认策略集合
func DefaultPolicies() Policies {
	p := Policies{Sheet: DefaultSheetPolicy, perClass: make(map[policyKey]ThresholdPolicy)}
	for _, e := range model.AllEntityTypes() {
		for kind, pol := range defaultClassPolicies {
			p.perClass[policyKey{e, kind}] = pol
		}
	}
	return p
}

// For 查询 (实体, 字段分类) 对应策略
func (p Policies) For(entity model.EntityType, kind model.ValueKind) ThresholdPolicy {
	if pol, ok := p.perClass[policyKey{entity, kind}]; ok {
		return pol
	}
	return defaultClassPolicies[kind]
}

// Set 覆盖单个 (实体, 字段分类) 策略
func (p *Policies) Set(entity model.EntityType, kind model.ValueKind, pol ThresholdPolicy) {
	if p.perClass == nil {
		p.perClass = make(map[policyKey]ThresholdPolicy)
	}
	p.perClass[policyKey{entity, kind}] = pol
}

// SetClass 对所有实体覆盖某字段分类的策略
func (p *Policies) SetClass(kind model.ValueKind, pol ThresholdPolicy) {
	for _, e := range model.AllEntityTypes() {
		p.Set(e, kind, pol)
	}
}

// Validate 校验全部策略
func (p Policies) Validate() error {
	if err := p.Sheet.Validate(); err != nil {
		return eris.Wrap(err, "sheet policy")
	}
	for k, pol := range p.perClass {
		if err := pol.Validate(); err != nil {
			return eris.Wrap(err, fmt.Sprintf("%s/%s policy", k.entity, k.kind))
		}
	}
	return nil
}
