package locations

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed reference.yaml
var embeddedReference []byte

// 文档注释：参考数据（基线州列表、区县覆盖表、字面兜底表）
// 背景：上游来源不完整，靠人工维护的表补齐；表以 YAML 资源形式维护，便于审计与扩展，解析逻辑中不出现字面地名。
// 约束：启动时加载一次，之后只读；外部文件整体替换内嵌默认值而非逐项合并。
type Reference struct {
	BaselineStates       []string                                  `yaml:"baseline_states"`
	DistrictOverrides    map[string][]string                       `yaml:"district_overrides"`
	FallbackDistricts    map[string][]string                       `yaml:"fallback_districts"`
	FallbackSubDistricts map[string]map[string][]string            `yaml:"fallback_sub_districts"`
	FallbackVillages     map[string]map[string]map[string][]string `yaml:"fallback_villages"`
	FallbackPinCodes     []string                                  `yaml:"fallback_pin_codes"`
}

// ParseReference：解析 YAML 参考数据；基线州列表为空视为非法
func ParseReference(b []byte) (*Reference, error) {
	var r Reference
	if err := yaml.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("reference: %w", err)
	}
	if len(r.BaselineStates) == 0 {
		return nil, errors.New("reference: baseline_states is empty")
	}
	return &r, nil
}

// LoadReference：path 为空时返回内嵌默认值
func LoadReference(path string) (*Reference, error) {
	if path == "" {
		return DefaultReference(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseReference(b)
}

// DefaultReference：内嵌参考数据；内嵌文件损坏属于构建错误，直接 panic
func DefaultReference() *Reference {
	r, err := ParseReference(embeddedReference)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Reference) subDistricts(state, district string) []string {
	return r.FallbackSubDistricts[state][district]
}

func (r *Reference) villages(state, district, subDistrict string) []string {
	return r.FallbackVillages[state][district][subDistrict]
}
