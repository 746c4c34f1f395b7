package fetcher

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/db"
)

// RTDBSource 基于 Firebase Admin SDK 的 Realtime Database 读取
type RTDBSource struct {
	client *db.Client
}

// NewRTDBSource 创建 Realtime Database 数据源
func NewRTDBSource(client *db.Client) *RTDBSource {
	return &RTDBSource{client: client}
}

// Read 读取 path 处的对象
func (s *RTDBSource) Read(ctx context.Context, path string) (map[string]any, error) {
	var raw any
	if err := s.client.NewRef(path).Get(ctx, &raw); err != nil {
		return nil, fmt.Errorf("rtdb get %s: %w", path, err)
	}
	return asObject(raw), nil
}

// ReadOrdered orderByKey + limitToLast
func (s *RTDBSource) ReadOrdered(ctx context.Context, path string, limit int) ([]Entry, error) {
	q := s.client.NewRef(path).OrderByKey()
	if limit > 0 {
		q = q.LimitToLast(limit)
	}
	nodes, err := q.GetOrdered(ctx)
	if err != nil {
		return nil, fmt.Errorf("rtdb ordered get %s: %w", path, err)
	}

	entries := make([]Entry, 0, len(nodes))
	for _, n := range nodes {
		var v any
		if err := n.Unmarshal(&v); err != nil {
			return nil, fmt.Errorf("rtdb decode %s/%s: %w", path, n.Key(), err)
		}
		entries = append(entries, Entry{Key: n.Key(), Value: v})
	}
	return entries, nil
}
