package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// FailedFileInfo 保存失败的文件信息
type FailedFileInfo struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// CaptureReport 一次运行的清单
// 写入 <output>/<host>/webgrab_manifest.json
type CaptureReport struct {
	RunID        string           `json:"run_id"`
	TargetURL    string           `json:"target_url"`
	Mode         CaptureMode      `json:"mode"`
	StartTime    time.Time        `json:"start_time"`
	EndTime      time.Time        `json:"end_time"`
	Stats        CaptureStats     `json:"stats"`
	SuccessRate  float64          `json:"success_rate"`
	Files        []FileInfo       `json:"files"`
	SkippedCount int              `json:"skipped_count"`
	Failures     []FailedFileInfo `json:"failures"`
}

// NewCaptureReport 根据捕获统计和保存结果生成清单
func NewCaptureReport(runID, target string, mode CaptureMode, start, end time.Time, stats CaptureStats, result SaveResult) *CaptureReport {
	files := result.Files
	if files == nil {
		files = []FileInfo{}
	}

	failures := make([]FailedFileInfo, 0, len(result.Failures))
	for _, f := range result.Failures {
		msg := ""
		if f.Err != nil {
			msg = f.Err.Error()
		}
		failures = append(failures, FailedFileInfo{URL: f.URL, Error: msg})
	}

	return &CaptureReport{
		RunID:        runID,
		TargetURL:    target,
		Mode:         mode,
		StartTime:    start,
		EndTime:      end,
		Stats:        stats,
		SuccessRate:  stats.SuccessRate(),
		Files:        files,
		SkippedCount: result.SkippedCount,
		Failures:     failures,
	}
}

// ToJSON 序列化为JSON
func (r *CaptureReport) ToJSON() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("序列化清单失败: %w", err)
	}
	return data, nil
}

// FromJSON 从JSON反序列化
func (r *CaptureReport) FromJSON(data []byte) error {
	if err := json.Unmarshal(data, r); err != nil {
		return fmt.Errorf("解析清单失败: %w", err)
	}
	return nil
}
