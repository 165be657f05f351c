package locations

import (
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// uniq：按精确字符串相等去重，保留首次出现顺序；丢弃空串
func uniq(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, l := range lists {
		for _, s := range l {
			if s == "" {
				continue
			}
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	if out == nil {
		out = []string{}
	}
	return out
}

// sortNames：去重后按英语区域规则排序
// 约束：Collator 非并发安全，每次调用新建
func sortNames(lists ...[]string) []string {
	out := uniq(lists...)
	collate.New(language.English).SortStrings(out)
	return out
}

// Less：与 sortNames 相同的区域比较规则，供调用方校验顺序
func Less(a, b string) bool {
	return collate.New(language.English).CompareString(a, b) < 0
}
