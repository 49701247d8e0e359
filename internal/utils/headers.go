package utils

import (
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/RecoveryAshes/webgrab/internal/models"
	"golang.org/x/net/http/httpguts"
)

// MaxHeaderValueLength 单个头部值的最大长度
const MaxHeaderValueLength = 8192

// managedHeaders 由浏览器或HTTP客户端自己维护的头部,用户设置会被拒绝或静默覆盖
var managedHeaders = map[string]bool{
	"Host":              true,
	"Content-Length":    true,
	"Transfer-Encoding": true,
	"Connection":        true,
	"Keep-Alive":        true,
	"Upgrade":           true,
	"Te":                true,
	"Trailer":           true,
	"Proxy-Connection":  true,
}

// HeaderValidator 校验注入请求的额外头部
type HeaderValidator struct {
	maxValueLength int
}

// NewHeaderValidator 创建头部校验器
func NewHeaderValidator() *HeaderValidator {
	return &HeaderValidator{maxValueLength: MaxHeaderValueLength}
}

// Check 校验单个头部,不合法时返回 *models.HeaderError
func (hv *HeaderValidator) Check(name, value string) error {
	reason := ""
	switch {
	case name == "":
		reason = "名称不能为空"
	case managedHeaders[http.CanonicalHeaderKey(name)]:
		reason = "由浏览器管理,不允许自定义"
	case !httpguts.ValidHeaderFieldName(name):
		reason = "名称包含非法字符"
	case len(value) > hv.maxValueLength:
		reason = fmt.Sprintf("值过长: %d 字节 (最大 %d)", len(value), hv.maxValueLength)
	case !httpguts.ValidHeaderFieldValue(value):
		reason = "值包含控制字符"
	default:
		return nil
	}
	return &models.HeaderError{Name: name, Reason: reason}
}

// Validate 按名称顺序校验全部头部,返回第一个错误
func (hv *HeaderValidator) Validate(headers http.Header) error {
	for _, name := range slices.Sorted(maps.Keys(headers)) {
		for _, value := range headers[name] {
			if err := hv.Check(name, value); err != nil {
				return err
			}
		}
	}
	return nil
}

// sensitiveMarkers 名称包含这些片段的头部在日志中脱敏
var sensitiveMarkers = []string{
	"auth",
	"cookie",
	"token",
	"key",
	"secret",
	"password",
	"credential",
	"session",
}

// HeaderRedactor 日志输出前隐藏凭据
type HeaderRedactor struct {
	markers []string
}

// NewHeaderRedactor 创建脱敏器
func NewHeaderRedactor() *HeaderRedactor {
	return &HeaderRedactor{markers: sensitiveMarkers}
}

// Sensitive 判断头部是否携带凭据
func (hr *HeaderRedactor) Sensitive(name string) bool {
	lower := strings.ToLower(name)
	for _, m := range hr.markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// Mask 脱敏单个头部值
// 认证方案(Bearer/Basic)保留,长值保留首尾各4个字符,短值完全隐藏
func (hr *HeaderRedactor) Mask(name, value string) string {
	if !hr.Sensitive(name) {
		return value
	}
	if scheme, _, ok := strings.Cut(value, " "); ok && isAuthScheme(scheme) {
		return scheme + " ***"
	}
	if len(value) > 8 {
		return value[:4] + "***" + value[len(value)-4:]
	}
	return "***"
}

func isAuthScheme(s string) bool {
	switch strings.ToLower(s) {
	case "bearer", "basic", "digest", "token":
		return true
	}
	return false
}

// Redact 返回脱敏后的头部,每个头部只取第一个值
func (hr *HeaderRedactor) Redact(headers http.Header) map[string]string {
	result := make(map[string]string, len(headers))
	for name, values := range headers {
		if len(values) > 0 {
			result[name] = hr.Mask(name, values[0])
		}
	}
	return result
}

// String 脱敏并按名称排序格式化为 "A: 1, B: 2"
func (hr *HeaderRedactor) String(headers http.Header) string {
	redacted := hr.Redact(headers)
	parts := make([]string, 0, len(redacted))
	for _, name := range slices.Sorted(maps.Keys(redacted)) {
		parts = append(parts, name+": "+redacted[name])
	}
	return strings.Join(parts, ", ")
}
