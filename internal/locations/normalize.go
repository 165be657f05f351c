package locations

import "encoding/json"

// 文档注释：归一化后的公共数据集
// 背景：各公共数据集形状各异，统一转换为“名称集合 + 名称到子级集合”的规范形状再参与合并。
// 约束：Names 与各子级列表均已去重排序；子级为空的名称不出现在 ChildrenByName 中；形状 (b) 中 ChildrenByName 的键可以不在 Names 里。
type Normalized struct {
	Names          []string
	ChildrenByName map[string][]string
}

func (n Normalized) Empty() bool { return len(n.Names) == 0 }

// 文档注释：公共数据集归一化
// 支持的形状：
// (a) [{"state": "...", "districts": [...]}, ...]
// (b) {"states": [...], "districts": {"<state>": [...]}}
// (b') {"states": [{"state": "...", "districts": [...]}]}
// (c) {"<state>": [...], ...}
// 约束：无法识别的形状、非字符串元素、非数组的值一律忽略；整体无法识别时返回空结果。
func Normalize(raw []byte) Normalized {
	acc := newAccumulator()
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return acc.done()
	}
	switch t := v.(type) {
	case []any:
		acc.entries(t)
	case map[string]any:
		if states, ok := t["states"].([]any); ok {
			acc.entries(states)
			for _, s := range states {
				if name, ok := s.(string); ok {
					acc.add(name, nil)
				}
			}
			// 州名只取自 states；districts 的键只提供子级
			if districts, ok := t["districts"].(map[string]any); ok {
				for name, children := range districts {
					if arr, ok := children.([]any); ok {
						acc.addChildren(name, arr)
					}
				}
			}
			break
		}
		for name, children := range t {
			if arr, ok := children.([]any); ok {
				acc.add(name, arr)
			}
		}
	}
	return acc.done()
}

type accumulator struct {
	names    []string
	children map[string][]string
}

func newAccumulator() *accumulator {
	return &accumulator{children: map[string][]string{}}
}

// entries：处理 {state, districts} 对象数组；非对象元素跳过
func (a *accumulator) entries(list []any) {
	for _, e := range list {
		obj, ok := e.(map[string]any)
		if !ok {
			continue
		}
		name, _ := obj["state"].(string)
		arr, _ := obj["districts"].([]any)
		a.add(name, arr)
	}
}

func (a *accumulator) add(name string, children []any) {
	if name == "" {
		return
	}
	a.names = append(a.names, name)
	a.addChildren(name, children)
}

func (a *accumulator) addChildren(name string, children []any) {
	if name == "" {
		return
	}
	for _, c := range children {
		if s, ok := c.(string); ok && s != "" {
			a.children[name] = append(a.children[name], s)
		}
	}
}

func (a *accumulator) done() Normalized {
	out := Normalized{Names: sortNames(a.names), ChildrenByName: map[string][]string{}}
	for name, list := range a.children {
		if len(list) > 0 {
			out.ChildrenByName[name] = sortNames(list)
		}
	}
	return out
}
