package storage

import (
	"strings"
)

// contentTypeExtensions MIME类型到规范扩展名的映射
// 键为小写、去除参数后的MIME类型
var contentTypeExtensions = map[string]string{
	// 文本
	"text/html":       ".html",
	"text/css":        ".css",
	"text/javascript": ".js",
	"text/plain":      ".txt",
	"text/xml":        ".xml",

	// 应用
	"application/javascript":    ".js",
	"application/x-javascript":  ".js",
	"application/json":          ".json",
	"application/xml":           ".xml",
	"application/pdf":           ".pdf",
	"application/zip":           ".zip",
	"application/gzip":          ".gz",
	"application/wasm":          ".wasm",
	"application/manifest+json": ".webmanifest",

	// 图片
	"image/png":                ".png",
	"image/jpeg":               ".jpg",
	"image/gif":                ".gif",
	"image/svg+xml":            ".svg",
	"image/webp":               ".webp",
	"image/x-icon":             ".ico",
	"image/vnd.microsoft.icon": ".ico",
	"image/avif":               ".avif",

	// 字体
	"font/woff":                     ".woff",
	"font/woff2":                    ".woff2",
	"font/ttf":                      ".ttf",
	"font/otf":                      ".otf",
	"application/font-woff":         ".woff",
	"application/font-woff2":        ".woff2",
	"application/x-font-woff":       ".woff",
	"application/x-font-ttf":        ".ttf",
	"application/vnd.ms-fontobject": ".eot",

	// 音视频
	"audio/mpeg": ".mp3",
	"audio/wav":  ".wav",
	"audio/ogg":  ".ogg",
	"video/mp4":  ".mp4",
	"video/webm": ".webm",
	"video/ogg":  ".ogv",
}

// NormalizeMIME 取第一个";"之前的部分,去空白并转小写
func NormalizeMIME(contentType string) string {
	mime := contentType
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return strings.ToLower(strings.TrimSpace(mime))
}

// ResolveExtension 返回MIME类型对应的扩展名(含"."),未知类型返回空字符串
func ResolveExtension(contentType string) string {
	return contentTypeExtensions[NormalizeMIME(contentType)]
}

// InferExtension 最后一个路径段没有"."时按Content-Type追加扩展名
func InferExtension(path, contentType string) string {
	name := path
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		name = path[i+1:]
	}
	if strings.Contains(name, ".") {
		return path
	}
	return path + ResolveExtension(contentType)
}
