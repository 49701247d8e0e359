package models

import (
	"errors"
	"fmt"
)

// 错误分类
// 致命错误(配置/浏览器/导航)终止整次运行,可恢复错误(单个资源获取/写入)仅记录
var (
	ErrConfiguration = errors.New("配置错误")
	ErrInvalidURL    = errors.New("无效的URL")
	ErrBrowser       = errors.New("浏览器错误")
	ErrNavigation    = errors.New("页面导航失败")
	ErrResourceFetch = errors.New("资源获取失败")
	ErrFileWrite     = errors.New("文件写入失败")
	ErrQueueClosed   = errors.New("事件队列已关闭")
)

// ConfigError 配置错误
// 表示配置文件解析失败或配置项取值非法,在任何I/O之前返回
type ConfigError struct {
	// FilePath 配置文件路径 (可选)
	FilePath string

	// Field 出错的配置项 (可选)
	Field string

	// Cause 底层错误
	Cause error
}

// Error 实现error接口
func (e *ConfigError) Error() string {
	switch {
	case e.FilePath != "":
		return fmt.Sprintf("配置文件错误 [%s]: %v", e.FilePath, e.Cause)
	case e.Field != "":
		return fmt.Sprintf("配置项无效 [%s]: %v", e.Field, e.Cause)
	default:
		return fmt.Sprintf("配置错误: %v", e.Cause)
	}
}

// Unwrap 支持errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// Is 使errors.Is(err, ErrConfiguration)成立
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

// BrowserError 浏览器无法启动或连接
type BrowserError struct {
	Op    string
	Cause error
}

func (e *BrowserError) Error() string {
	return fmt.Sprintf("浏览器错误 [%s]: %v", e.Op, e.Cause)
}

func (e *BrowserError) Unwrap() error { return e.Cause }

func (e *BrowserError) Is(target error) bool { return target == ErrBrowser }

// NavigationError 目标页面在超时内无法加载
type NavigationError struct {
	URL   string
	Cause error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("导航到 %s 失败: %v", e.URL, e.Cause)
}

func (e *NavigationError) Unwrap() error { return e.Cause }

func (e *NavigationError) Is(target error) bool { return target == ErrNavigation }

// ResourceError 单个响应体读取失败
type ResourceError struct {
	URL   string
	Cause error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("资源获取失败 [%s]: %v", e.URL, e.Cause)
}

func (e *ResourceError) Unwrap() error { return e.Cause }

func (e *ResourceError) Is(target error) bool { return target == ErrResourceFetch }

// FileWriteError 单个文件写入失败
type FileWriteError struct {
	Path  string
	Cause error
}

func (e *FileWriteError) Error() string {
	return fmt.Sprintf("写入文件 %s 失败: %v", e.Path, e.Cause)
}

func (e *FileWriteError) Unwrap() error { return e.Cause }

func (e *FileWriteError) Is(target error) bool { return target == ErrFileWrite }

// IsFatal 判断错误是否应终止整次运行
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfiguration) ||
		errors.Is(err, ErrInvalidURL) ||
		errors.Is(err, ErrBrowser) ||
		errors.Is(err, ErrNavigation)
}
