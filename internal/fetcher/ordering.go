package fetcher

import (
	"math"
	"sort"
	"strconv"
)

// asObject 将任意 JSON 值归一为对象
// null -> nil（不存在）；非对象 -> 空对象（存在但格式不对，由 mapper 补默认值）
func asObject(raw any) map[string]any {
	if raw == nil {
		return nil
	}
	if m, ok := raw.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// entriesFromObject 把对象按 key 排序后取最后 limit 个
// 连续整数 key 的节点会以数组形式返回，此时下标即 key，null 元素跳过
func entriesFromObject(raw any, limit int) []Entry {
	var m map[string]any
	switch v := raw.(type) {
	case map[string]any:
		m = v
	case []any:
		m = make(map[string]any, len(v))
		for i, item := range v {
			if item != nil {
				m[strconv.Itoa(i)] = item
			}
		}
	}
	if len(m) == 0 {
		return []Entry{}
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sortKeys(keys)

	if limit > 0 && len(keys) > limit {
		keys = keys[len(keys)-limit:]
	}

	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		out = append(out, Entry{Key: k, Value: m[k]})
	}
	return out
}

// sortKeys 与 Realtime Database orderByKey 一致：32 位整数键按数值在前，其余按字典序
func sortKeys(keys []string) {
	sort.SliceStable(keys, func(i, j int) bool {
		ni, iok := intKey(keys[i])
		nj, jok := intKey(keys[j])
		switch {
		case iok && jok:
			return ni < nj
		case iok:
			return true
		case jok:
			return false
		default:
			return keys[i] < keys[j]
		}
	})
}

func intKey(k string) (int64, bool) {
	n, err := strconv.ParseInt(k, 10, 64)
	if err != nil || n < math.MinInt32 || n > math.MaxInt32 {
		return 0, false
	}
	// "007" 之类不是规范整数表示，按字符串处理
	if strconv.FormatInt(n, 10) != k {
		return 0, false
	}
	return n, true
}
