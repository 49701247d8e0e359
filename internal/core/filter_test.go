package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultFilter(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		status   int
		expected bool
	}{
		{"200正常资源", "https://example.com/app.js", 200, true},
		{"204无内容", "https://example.com/ping", 204, true},
		{"3xx按成功处理", "https://example.com/old", 301, true},
		{"399边界", "https://example.com/a", 399, true},
		{"400拒绝", "https://example.com/a", 400, false},
		{"404拒绝", "https://example.com/missing.png", 404, false},
		{"500拒绝", "https://example.com/a", 500, false},
		{"1xx拒绝", "https://example.com/a", 101, false},
		{"data协议", "data:image/png;base64,AAAA", 200, false},
		{"blob协议", "blob:https://example.com/uuid", 200, false},
		{"chrome扩展", "chrome-extension://abc/script.js", 200, false},
	}

	f := DefaultFilter{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, f.ShouldCapture(tt.url, "", tt.status))
		})
	}
}

func TestCompositeFilter(t *testing.T) {
	onlyJS := FilterFunc(func(url, contentType string, statusCode int) bool {
		return contentType == "application/javascript"
	})

	t.Run("空列表接受一切", func(t *testing.T) {
		assert.True(t, NewCompositeFilter().ShouldCapture("https://example.com/x", "", 500))
	})

	t.Run("所有子过滤器都接受", func(t *testing.T) {
		f := NewCompositeFilter(DefaultFilter{}, onlyJS)
		assert.True(t, f.ShouldCapture("https://example.com/app.js", "application/javascript", 200))
	})

	t.Run("任一拒绝即拒绝", func(t *testing.T) {
		f := NewCompositeFilter(DefaultFilter{}, onlyJS)
		assert.False(t, f.ShouldCapture("https://example.com/app.css", "text/css", 200))
		assert.False(t, f.ShouldCapture("https://example.com/app.js", "application/javascript", 404))
	})

	t.Run("短路求值", func(t *testing.T) {
		called := false
		spy := FilterFunc(func(string, string, int) bool {
			called = true
			return true
		})
		f := NewCompositeFilter(DefaultFilter{}, spy)
		assert.False(t, f.ShouldCapture("https://example.com/a", "", 404))
		assert.False(t, called)
	})
}
