package storage

import (
	"net/url"
	"path/filepath"
	"strings"
)

// Resolve 将资源URL映射为输出目录下的候选本地路径
// 格式: {outputRoot}/{host}/{path...},端口不进入目录名
// 同一URL总是得到同一路径(去重和扩展名推断之前)
func Resolve(rawURL, outputRoot string) string {
	host, urlPath := splitURL(rawURL)

	if urlPath == "" || urlPath == "/" {
		urlPath = "/index.html"
	}
	if strings.HasSuffix(urlPath, "/") {
		urlPath += "index.html"
	}

	parts := []string{outputRoot, SanitizeComponent(host)}
	for _, seg := range strings.Split(urlPath, "/") {
		if seg == "" {
			continue
		}
		parts = append(parts, SanitizeComponent(seg))
	}

	return filepath.Join(parts...)
}

// HostDir 主机在输出目录中的目录名
func HostDir(rawURL string) string {
	host, _ := splitURL(rawURL)
	return SanitizeComponent(host)
}

// splitURL 提取主机名(去端口)和解码后的路径
// 无法解析时退化为按字符串切分,保证总能得到结果
func splitURL(rawURL string) (host, urlPath string) {
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		return u.Hostname(), u.Path
	}

	rest := rawURL
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}

	authority := rest
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		authority, urlPath = rest[:i], rest[i:]
	}
	if i := strings.LastIndexByte(authority, '@'); i >= 0 {
		authority = authority[i+1:]
	}
	if i := strings.IndexByte(authority, ':'); i >= 0 {
		authority = authority[:i]
	}

	if decoded, err := url.PathUnescape(urlPath); err == nil {
		urlPath = decoded
	}
	return authority, urlPath
}
