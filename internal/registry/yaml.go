package registry

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/lucifer2f/sld-design-sub001/internal/model"
)

// aliasFile 别名覆盖文件格式：
//
//	load:
//	  power_factor: ["cos fi", "fp"]
//	cable:
//	  size_mm2: ["sq mm"]
type aliasFile map[string]map[string][]string

// LoadAliasFile 读取 YAML 别名覆盖文件
func LoadAliasFile(path string) (map[model.EntityType]AliasSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read alias file %s", path)
	}
	return ParseAliases(data)
}

// ParseAliases 解析 YAML 别名表
func ParseAliases(data []byte) (map[model.EntityType]AliasSet, error) {
	var raw aliasFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(model.ErrInvalidConfig, "failed to parse alias yaml: "+err.Error())
	}
	out := make(map[model.EntityType]AliasSet, len(raw))
	for entity, fields := range raw {
		set := make(AliasSet, len(fields))
		for field, aliases := range fields {
			set[field] = aliases
		}
		out[model.EntityType(entity)] = set
	}
	return out, nil
}
