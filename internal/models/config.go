package models

import (
	"fmt"
	"strings"
	"time"
)

// CaptureMode 捕获模式
type CaptureMode string

const (
	ModeDynamic CaptureMode = "dynamic" // 真实浏览器
	ModeStatic  CaptureMode = "static"  // 无浏览器的HTTP抓取
)

// ParseCaptureMode 解析捕获模式字符串
func ParseCaptureMode(s string) (CaptureMode, error) {
	switch CaptureMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeDynamic:
		return ModeDynamic, nil
	case ModeStatic:
		return ModeStatic, nil
	default:
		return "", &ConfigError{Field: "mode", Cause: fmt.Errorf("未知的捕获模式 %q (可选: dynamic, static)", s)}
	}
}

// 默认值
const (
	DefaultViewportWidth  = 1920
	DefaultViewportHeight = 1080
	DefaultTimeoutMs      = 60000
	DefaultQueueSize      = 256
	DefaultFetchWorkers   = 4
	DefaultOutputDir      = "./webgrab_output"
)

// CaptureConfig 捕获配置,构造后不可变
type CaptureConfig struct {
	URL            string            // 目标URL(已规范化)
	WaitTime       int               // 页面加载后额外等待秒数
	TimeoutMs      int               // 导航超时(毫秒)
	Headless       bool              // 无头模式
	UserAgent      string            // 自定义User-Agent,为空使用浏览器默认值
	ViewportWidth  int               // 视口宽度
	ViewportHeight int               // 视口高度
	BypassCSP      bool              // 绕过内容安全策略
	Stealth        bool              // 启用反检测
	Mode           CaptureMode       // 捕获模式
	QueueSize      int               // 事件队列容量
	FetchWorkers   int               // 并发读取响应体的数量
	Headers        map[string]string // 额外请求头部
}

// NewCaptureConfig 校验并补全捕获配置
// 非法取值在任何I/O之前返回ConfigError
func NewCaptureConfig(c CaptureConfig) (CaptureConfig, error) {
	if c.WaitTime < 0 {
		return CaptureConfig{}, &ConfigError{Field: "wait_time", Cause: fmt.Errorf("额外等待时间不能为负数: %d", c.WaitTime)}
	}
	if c.TimeoutMs <= 0 {
		return CaptureConfig{}, &ConfigError{Field: "timeout_ms", Cause: fmt.Errorf("导航超时必须大于0: %d", c.TimeoutMs)}
	}
	if err := ValidateURL(c.URL); err != nil {
		return CaptureConfig{}, err
	}

	if c.ViewportWidth == 0 {
		c.ViewportWidth = DefaultViewportWidth
	}
	if c.ViewportHeight == 0 {
		c.ViewportHeight = DefaultViewportHeight
	}
	if c.ViewportWidth < 0 || c.ViewportHeight < 0 {
		return CaptureConfig{}, &ConfigError{Field: "viewport", Cause: fmt.Errorf("视口尺寸必须为正数: %dx%d", c.ViewportWidth, c.ViewportHeight)}
	}

	mode, err := ParseCaptureMode(string(c.Mode))
	if err != nil {
		return CaptureConfig{}, err
	}
	c.Mode = mode

	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.FetchWorkers <= 0 {
		c.FetchWorkers = DefaultFetchWorkers
	}

	headers := make(map[string]string, len(c.Headers))
	for k, v := range c.Headers {
		headers[k] = v
	}
	c.Headers = headers

	return c, nil
}

// Timeout 导航超时
func (c CaptureConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// ExtraWait 页面加载后的额外等待
func (c CaptureConfig) ExtraWait() time.Duration {
	return time.Duration(c.WaitTime) * time.Second
}

// SaveConfig 保存配置,构造后不可变
type SaveConfig struct {
	OutputDir       string // 输出根目录
	BaseURL         string // 同源判断的基准URL
	IncludeExternal bool   // 是否保存跨域资源
	Overwrite       bool   // 是否覆盖磁盘上已存在的文件
	Manifest        bool   // 是否写入清单文件
}

// NewSaveConfig 校验保存配置
func NewSaveConfig(c SaveConfig) (SaveConfig, error) {
	if strings.TrimSpace(c.OutputDir) == "" {
		return SaveConfig{}, &ConfigError{Field: "output_dir", Cause: fmt.Errorf("输出目录不能为空")}
	}
	if err := ValidateURL(c.BaseURL); err != nil {
		return SaveConfig{}, err
	}
	return c, nil
}
