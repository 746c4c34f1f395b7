package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// RESTSource 通过 Realtime Database REST 接口读取（<base>/<path>.json）
type RESTSource struct {
	client *resty.Client
	secret string
}

// NewRESTSource 创建 REST 数据源
// secret 不为空时作为 auth 查询参数附带
func NewRESTSource(baseURL, secret string, timeout time.Duration) *RESTSource {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Accept", "application/json")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &RESTSource{client: client, secret: secret}
}

// Read 读取 path 处的对象
func (s *RESTSource) Read(ctx context.Context, path string) (map[string]any, error) {
	raw, err := s.get(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	return asObject(raw), nil
}

// ReadOrdered REST 返回的是无序对象，本地再排序截断
func (s *RESTSource) ReadOrdered(ctx context.Context, path string, limit int) ([]Entry, error) {
	params := map[string]string{"orderBy": `"$key"`}
	if limit > 0 {
		params["limitToLast"] = strconv.Itoa(limit)
	}
	raw, err := s.get(ctx, path, params)
	if err != nil {
		return nil, err
	}
	return entriesFromObject(raw, limit), nil
}

func (s *RESTSource) get(ctx context.Context, path string, params map[string]string) (any, error) {
	req := s.client.R().SetContext(ctx)
	if s.secret != "" {
		req.SetQueryParam("auth", s.secret)
	}
	if len(params) > 0 {
		req.SetQueryParams(params)
	}

	resp, err := req.Get("/" + strings.Trim(path, "/") + ".json")
	if err != nil {
		return nil, fmt.Errorf("rtdb rest request %s: %w", path, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("rtdb rest %s: status %d: %s", path, resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	var raw any
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return nil, fmt.Errorf("rtdb rest decode %s: %w", path, err)
	}
	return raw, nil
}
