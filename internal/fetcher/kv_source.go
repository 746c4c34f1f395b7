package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"vitalmesh/internal/store"
)

// KVSource 以 JSON 文档形式存放在 KV 中的镜像（联调环境使用）
// 键为 prefix + path，如 "vitalmesh:rtdb:sensors/actual/GPS"
type KVSource struct {
	kv     store.KV
	prefix string
}

// NewKVSource 创建 KV 数据源
func NewKVSource(kv store.KV, prefix string) *KVSource {
	return &KVSource{kv: kv, prefix: prefix}
}

// Read 读取 path 处的对象
func (s *KVSource) Read(ctx context.Context, path string) (map[string]any, error) {
	raw, err := s.load(ctx, path)
	if err != nil {
		return nil, err
	}
	return asObject(raw), nil
}

// ReadOrdered 读取整份历史对象后排序截断
func (s *KVSource) ReadOrdered(ctx context.Context, path string, limit int) ([]Entry, error) {
	raw, err := s.load(ctx, path)
	if err != nil {
		return nil, err
	}
	return entriesFromObject(raw, limit), nil
}

func (s *KVSource) load(ctx context.Context, path string) (any, error) {
	val, err := s.kv.Get(ctx, s.prefix+path)
	if err != nil {
		if errors.Is(err, store.ErrMiss) {
			return nil, nil
		}
		return nil, fmt.Errorf("kv get %s: %w", path, err)
	}

	var raw any
	if err := json.Unmarshal([]byte(val), &raw); err != nil {
		return nil, fmt.Errorf("kv decode %s: %w", path, err)
	}
	return raw, nil
}
