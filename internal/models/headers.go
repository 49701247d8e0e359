package models

import (
	"fmt"
	"net/http"
	"strings"
)

// HeaderConfig headers.yaml的结构
// 静态模式随每个请求发送,动态模式通过浏览器注入
type HeaderConfig struct {
	Headers map[string]string `mapstructure:"headers" yaml:"headers"`
}

// ParseHeaderFlags 解析 -H "Name: Value" 参数
// 同名头部后出现的覆盖先出现的
func ParseHeaderFlags(flags []string) (http.Header, error) {
	result := make(http.Header, len(flags))
	for i, flag := range flags {
		name, value, ok := strings.Cut(flag, ":")
		name = strings.TrimSpace(name)
		switch {
		case !ok:
			return nil, fmt.Errorf("第%d个 --header 缺少冒号,应为 'Name: Value': %q", i+1, flag)
		case name == "":
			return nil, fmt.Errorf("第%d个 --header 头部名称为空: %q", i+1, flag)
		}
		result.Set(name, strings.TrimSpace(value))
	}
	return result, nil
}

// HeaderError 额外请求头部不合法
// 属于配置错误,在启动浏览器之前返回
type HeaderError struct {
	Name   string
	Reason string
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("头部 %q 不合法: %s", e.Name, e.Reason)
}

func (e *HeaderError) Is(target error) bool { return target == ErrConfiguration }
