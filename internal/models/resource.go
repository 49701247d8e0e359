package models

import (
	"strings"
	"time"
)

// Resource 捕获到的网络资源
// 按值传递,构造后不再修改;Body与原始响应读到的字节完全一致
type Resource struct {
	URL         string            `json:"url"`          // 资源绝对URL
	ContentType string            `json:"content_type"` // 原始Content-Type头部,可能为空
	Body        []byte            `json:"-"`            // 响应体
	Headers     map[string]string `json:"headers"`      // 响应头部(保留原始大小写)
	StatusCode  int               `json:"status_code"`  // HTTP状态码
}

// NewResource 创建资源记录,复制body和headers,调用方后续修改不影响记录
func NewResource(url, contentType string, body []byte, headers map[string]string, statusCode int) Resource {
	b := make([]byte, len(body))
	copy(b, body)

	h := make(map[string]string, len(headers))
	for k, v := range headers {
		h[k] = v
	}

	return Resource{
		URL:         url,
		ContentType: contentType,
		Body:        b,
		Headers:     h,
		StatusCode:  statusCode,
	}
}

// Size 响应体字节数
func (r Resource) Size() int {
	return len(r.Body)
}

// HeaderValue 大小写不敏感地查找头部
func HeaderValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// CaptureStats 捕获统计
// 只由处理器的消费路径写入,捕获结束后只读
type CaptureStats struct {
	TotalObserved   int     `json:"total_observed"`    // 观察到的响应总数
	Successful      int     `json:"successful"`        // 成功读取响应体
	Failed          int     `json:"failed"`            // 响应体读取失败
	SkippedByFilter int     `json:"skipped_by_filter"` // 被过滤器拒绝
	TotalBytes      int64   `json:"total_bytes"`       // 成功读取的总字节数
	DurationSeconds float64 `json:"duration_seconds"`  // 捕获总耗时(秒)
}

// SuccessRate 成功率(百分比)
func (s CaptureStats) SuccessRate() float64 {
	if s.TotalObserved == 0 {
		return 0
	}
	return float64(s.Successful) / float64(s.TotalObserved) * 100
}

// SaveStatus 单个资源的保存结果类型
type SaveStatus int

const (
	SaveStatusSaved           SaveStatus = iota // 已写入磁盘
	SaveStatusSkippedExternal                   // 跨域资源,未写入
	SaveStatusFailed                            // 写入失败
)

func (s SaveStatus) String() string {
	switch s {
	case SaveStatusSaved:
		return "saved"
	case SaveStatusSkippedExternal:
		return "skipped_external"
	case SaveStatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SaveOutcome 单个资源的保存结果
type SaveOutcome struct {
	Status SaveStatus
	URL    string
	Path   string // 仅Saved时有效
	File   FileInfo
	Err    error // 仅Failed时有效
}

// SaveFailure 保存失败记录
type SaveFailure struct {
	URL string
	Err error
}

// SaveResult 一次保存会话的汇总
type SaveResult struct {
	SavedPaths   []string      // 按保存顺序排列
	SkippedCount int           // 跨域跳过数
	Failures     []SaveFailure // 写入失败列表
	Files        []FileInfo    // 已保存文件的元数据(用于清单)
}

// SavedCount 成功保存的数量
func (r *SaveResult) SavedCount() int {
	return len(r.SavedPaths)
}

// TotalFailures 保存失败的数量
func (r *SaveResult) TotalFailures() int {
	return len(r.Failures)
}

// Add 累加一个保存结果
func (r *SaveResult) Add(o SaveOutcome) {
	switch o.Status {
	case SaveStatusSaved:
		r.SavedPaths = append(r.SavedPaths, o.Path)
		r.Files = append(r.Files, o.File)
	case SaveStatusSkippedExternal:
		r.SkippedCount++
	case SaveStatusFailed:
		r.Failures = append(r.Failures, SaveFailure{URL: o.URL, Err: o.Err})
	}
}

// FileInfo 已保存文件信息
type FileInfo struct {
	URL         string    `json:"url"`
	FilePath    string    `json:"file_path"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Hash        string    `json:"hash"` // xxhash64, 十六进制
	SavedAt     time.Time `json:"saved_at"`
}
