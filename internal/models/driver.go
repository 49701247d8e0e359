package models

import (
	"context"
	"time"
)

// BodyFetcher 读取响应体
// 可能因网络错误、响应体已被消费等原因失败
type BodyFetcher func(ctx context.Context) ([]byte, error)

// ResponseEvent 浏览器观察到的一次HTTP响应
type ResponseEvent struct {
	URL        string
	StatusCode int
	Headers    map[string]string
	FetchBody  BodyFetcher
}

// ContentType 返回Content-Type头部(大小写不敏感)
func (e ResponseEvent) ContentType() string {
	return HeaderValue(e.Headers, "Content-Type")
}

// ResponseHandler 每观察到一次响应调用一次
type ResponseHandler func(ResponseEvent)

// BrowserDriver 浏览器驱动契约
// 负责启动浏览器、导航并为每个响应回调handler;核心只消费事件流
type BrowserDriver interface {
	// Launch 启动浏览器,失败返回BrowserError
	Launch(ctx context.Context) error

	// Navigate 导航到url并阻塞直到页面加载完成,超时返回NavigationError
	Navigate(ctx context.Context, url string, onResponse ResponseHandler, timeout time.Duration) error

	// Close 释放浏览器资源
	Close() error
}
