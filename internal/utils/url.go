package utils

import (
	"net/url"
	"strings"

	"github.com/RecoveryAshes/webgrab/internal/models"
)

// skippablePrefixes 不可抓取的伪协议前缀
// 区分大小写,按观察到的原样比较
var skippablePrefixes = []string{
	"data:",
	"blob:",
	"about:",
	"javascript:",
	"chrome:",
	"chrome-extension:",
}

// IsSkippable 判断URL是否为不可抓取的伪协议
func IsSkippable(rawURL string) bool {
	for _, prefix := range skippablePrefixes {
		if strings.HasPrefix(rawURL, prefix) {
			return true
		}
	}
	return false
}

// IsSameOrigin 判断两个URL的authority(主机+端口)是否完全一致
// 不比较协议,不合并子域名
func IsSameOrigin(rawURL, baseURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	b, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	return u.Host == b.Host
}

// NormalizeInputURL 规范化用户输入的URL
// 缺少http(s)前缀时补https://,主机为空或协议非法时返回ConfigError
func NormalizeInputURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	// 带有其他协议的输入(如ftp://)不补前缀,交给校验拒绝
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") && !strings.Contains(s, "://") {
		s = "https://" + s
	}
	if err := models.ValidateURL(s); err != nil {
		return "", err
	}
	return s, nil
}
