package core

import (
	"github.com/RecoveryAshes/webgrab/internal/utils"
)

// ResourceFilter 决定一个观察到的响应是否需要读取并保留
type ResourceFilter interface {
	ShouldCapture(url, contentType string, statusCode int) bool
}

// FilterFunc 函数形式的过滤器
type FilterFunc func(url, contentType string, statusCode int) bool

// ShouldCapture 实现ResourceFilter接口
func (f FilterFunc) ShouldCapture(url, contentType string, statusCode int) bool {
	return f(url, contentType, statusCode)
}

// DefaultFilter 默认过滤策略
// 状态码不在[200,400)内或URL为伪协议时拒绝,3xx按成功处理
type DefaultFilter struct{}

// ShouldCapture 实现ResourceFilter接口
func (DefaultFilter) ShouldCapture(url, contentType string, statusCode int) bool {
	if statusCode < 200 || statusCode >= 400 {
		return false
	}
	return !utils.IsSkippable(url)
}

// CompositeFilter 组合过滤器,所有子过滤器都接受时才接受
// 空列表接受一切
type CompositeFilter struct {
	filters []ResourceFilter
}

// NewCompositeFilter 创建组合过滤器
func NewCompositeFilter(filters ...ResourceFilter) *CompositeFilter {
	return &CompositeFilter{filters: filters}
}

// ShouldCapture 按顺序求值,遇到拒绝立即返回
func (c *CompositeFilter) ShouldCapture(url, contentType string, statusCode int) bool {
	for _, f := range c.filters {
		if !f.ShouldCapture(url, contentType, statusCode) {
			return false
		}
	}
	return true
}
