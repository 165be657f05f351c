package locations

import (
	"encoding/json"
	"errors"
)

// CacheKey：数据集快照的固定版本化键；形状变化时递增版本
const CacheKey = "india_states_districts_cache_v1"

// 文档注释：州与区县聚合数据集
// 背景：冷启动时由后端州列表、公共数据集与基线列表合并构建，序列化后写入持久缓存；之后只读共享。
// 约束：States 与每个区县列表均已去重排序；FailedSources 记录构建时失败的来源，供降级判断与定期刷新。
type Dataset struct {
	States           []string            `json:"states"`
	DistrictsByState map[string][]string `json:"districtsByState"`
	FailedSources    []string            `json:"failedSources,omitempty"`
}

var errBadShape = errors.New("dataset: unexpected shape")

// decodeDataset：缓存值必须是合法 JSON 且 states 为非空字符串数组，否则视为损坏
func decodeDataset(b []byte) (*Dataset, error) {
	var ds Dataset
	if err := json.Unmarshal(b, &ds); err != nil {
		return nil, err
	}
	if len(ds.States) == 0 {
		return nil, errBadShape
	}
	if ds.DistrictsByState == nil {
		ds.DistrictsByState = map[string][]string{}
	}
	return &ds, nil
}

func (d *Dataset) encode() ([]byte, error) { return json.Marshal(d) }

// districts：返回副本，避免调用方修改共享快照
func (d *Dataset) districts(state string) []string {
	return append([]string(nil), d.DistrictsByState[state]...)
}
