package registry

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/lucifer2f/sld-design-sub001/internal/model"
)

// Options 构建选项
type Options struct {
	ExtraAliases map[model.EntityType]AliasSet // 追加别名（如 YAML 覆盖文件）
	Policies     *Policies                     // 为空使用默认策略
}

// Registry 规范字段、别名表与阈值策略（构建后只读，可并发访问）
type Registry struct {
	fields   map[model.EntityType][]model.CanonicalField
	byID     map[model.EntityType]map[string]model.CanonicalField
	aliases  map[model.EntityType]map[string]string   // 规范化别名 -> 字段
	byField  map[model.EntityType]map[string][]string // 字段 -> 规范化别名
	sheets   []SheetDescriptor
	policies Policies
}

// New 构建注册表；同一实体内规范化后重复且指向不同字段的别名视为构建错误
func New(opts Options) (*Registry, error) {
	policies := DefaultPolicies()
	if opts.Policies != nil {
		policies = *opts.Policies
	}
	if err := policies.Validate(); err != nil {
		return nil, err
	}

	r := &Registry{
		fields:   builtinFields(),
		byID:     make(map[model.EntityType]map[string]model.CanonicalField),
		aliases:  make(map[model.EntityType]map[string]string),
		byField:  make(map[model.EntityType]map[string][]string),
		sheets:   builtinSheets(),
		policies: policies,
	}

	for entity, fields := range r.fields {
		r.byID[entity] = make(map[string]model.CanonicalField, len(fields))
		r.aliases[entity] = make(map[string]string)
		r.byField[entity] = make(map[string][]string)
		for _, f := range fields {
			r.byID[entity][f.ID] = f
			// 字段 ID 本身也是别名
			if err := r.addAlias(entity, f.ID, f.ID); err != nil {
				return nil, err
			}
		}
	}

	for _, set := range []map[model.EntityType]AliasSet{builtinAliases(), opts.ExtraAliases} {
		for entity, aliasSet := range set {
			if _, ok := r.byID[entity]; !ok {
				return nil, eris.Wrapf(model.ErrInvalidConfig, "unknown entity type %q in alias table", entity)
			}
			for _, field := range sortedKeys(aliasSet) {
				for _, alias := range aliasSet[field] {
					if err := r.addAlias(entity, field, alias); err != nil {
						return nil, err
					}
				}
			}
		}
	}
	return r, nil
}

// MustNew 使用默认选项构建，失败直接 panic（内置表出错属于编程错误）
func MustNew() *Registry {
	r, err := New(Options{})
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) addAlias(entity model.EntityType, field, alias string) error {
	if _, ok := r.byID[entity][field]; !ok {
		return eris.Wrapf(model.ErrInvalidConfig, "alias %q references unknown field %s.%s", alias, entity, field)
	}
	key := Normalize(alias)
	if key == "" {
		return eris.Wrapf(model.ErrInvalidConfig, "alias %q for %s.%s is empty after normalization", alias, entity, field)
	}
	if existing, ok := r.aliases[entity][key]; ok {
		if existing != field {
			return eris.Wrapf(model.ErrInvalidConfig, "alias %q of %s is claimed by both %s and %s", key, entity, existing, field)
		}
		return nil
	}
	r.aliases[entity][key] = field
	r.byField[entity][field] = append(r.byField[entity][field], key)
	return nil
}

// Fields 实体的全部规范字段
func (r *Registry) Fields(entity model.EntityType) []model.CanonicalField {
	return r.fields[entity]
}

// Field 按 ID 查询规范字段
func (r *Registry) Field(entity model.EntityType, id string) (model.CanonicalField, bool) {
	f, ok := r.byID[entity][id]
	return f, ok
}

// LookupAlias 精确别名查找（参数需已规范化）
func (r *Registry) LookupAlias(entity model.EntityType, normalized string) (string, bool) {
	field, ok := r.aliases[entity][normalized]
	return field, ok
}

// Aliases 字段的全部规范化别名（含字段 ID）
func (r *Registry) Aliases(entity model.EntityType, field string) []string {
	return r.byField[entity][field]
}

// AliasCount 实体别名总数
func (r *Registry) AliasCount(entity model.EntityType) int {
	return len(r.aliases[entity])
}

// Policy 字段对应的阈值策略
func (r *Registry) Policy(entity model.EntityType, kind model.ValueKind) ThresholdPolicy {
	return r.policies.For(entity, kind)
}

// SheetPolicy sheet 分类阈值策略
func (r *Registry) SheetPolicy() ThresholdPolicy {
	return r.policies.Sheet
}

// SheetDescriptors 全部工作表描述
func (r *Registry) SheetDescriptors() []SheetDescriptor {
	return r.sheets
}

// Descriptor 按类型查询工作表描述
func (r *Registry) Descriptor(t model.SheetType) (SheetDescriptor, bool) {
	for _, d := range r.sheets {
		if d.Type == t {
			return d, true
		}
	}
	return SheetDescriptor{}, false
}

// EntitySummary 实体目录摘要（API / CLI 展示用）
type EntitySummary struct {
	Entity model.EntityType `json:"entity" yaml:"entity"`
	Fields []FieldSummary   `json:"fields" yaml:"fields"`
}

// FieldSummary 字段摘要
type FieldSummary struct {
	ID      string          `json:"id" yaml:"id"`
	Kind    model.ValueKind `json:"kind" yaml:"kind"`
	Unit    string          `json:"unit,omitempty" yaml:"unit,omitempty"`
	Tau     float64         `json:"tau" yaml:"tau"`
	Margin  float64         `json:"margin" yaml:"margin"`
	Aliases []string        `json:"aliases" yaml:"aliases"`
}

// Summary 导出目录摘要
func (r *Registry) Summary() []EntitySummary {
	out := make([]EntitySummary, 0, len(r.fields))
	for _, entity := range model.AllEntityTypes() {
		es := EntitySummary{Entity: entity}
		for _, f := range r.fields[entity] {
			pol := r.Policy(entity, f.Kind)
			es.Fields = append(es.Fields, FieldSummary{
				ID:      f.ID,
				Kind:    f.Kind,
				Unit:    f.Unit,
				Tau:     pol.Tau,
				Margin:  pol.Margin,
				Aliases: r.Aliases(entity, f.ID),
			})
		}
		out = append(out, es)
	}
	return out
}

func sortedKeys(m AliasSet) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
