package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/webgrab/internal/models"
	"github.com/schollz/progressbar/v3"
)

// ManifestFileName 清单文件名
const ManifestFileName = "webgrab_manifest.json"

// Reporter 报告生成器
type Reporter struct {
	outputDir string
	host      string
}

// NewReporter 创建报告生成器
// host为已清理的主机目录名
func NewReporter(outputDir string, host string) *Reporter {
	return &Reporter{
		outputDir: outputDir,
		host:      host,
	}
}

// ManifestPath 清单文件路径
func (r *Reporter) ManifestPath() string {
	return filepath.Join(r.outputDir, r.host, ManifestFileName)
}

// WriteManifest 写入运行清单
func (r *Reporter) WriteManifest(report *models.CaptureReport) (string, error) {
	dir := filepath.Join(r.outputDir, r.host)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("创建清单目录失败: %w", err)
	}

	data, err := report.ToJSON()
	if err != nil {
		return "", err
	}

	path := r.ManifestPath()
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("写入清单文件失败: %w", err)
	}

	Debugf("保存清单: %s", path)
	return path, nil
}

// PrintSummary 打印运行摘要
func PrintSummary(w io.Writer, target string, stats models.CaptureStats, result models.SaveResult) {
	fmt.Fprintf(w, "\n📊 捕获完成: %s\n", target)
	fmt.Fprintf(w, "  观察到的响应: %d\n", stats.TotalObserved)
	fmt.Fprintf(w, "  成功: %d  失败: %d  已过滤: %d\n", stats.Successful, stats.Failed, stats.SkippedByFilter)
	fmt.Fprintf(w, "  成功率: %.1f%%  总大小: %s  耗时: %.2fs\n",
		stats.SuccessRate(), FormatBytes(stats.TotalBytes), stats.DurationSeconds)
	fmt.Fprintf(w, "💾 已保存: %d  跨域跳过: %d  写入失败: %d\n",
		result.SavedCount(), result.SkippedCount, result.TotalFailures())

	for _, f := range result.Failures {
		fmt.Fprintf(w, "  ❌ %s: %v\n", f.URL, f.Err)
	}
}

// NewProgressBar 创建进度条
func NewProgressBar(max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// NewSpinner 创建不定长进度指示(捕获阶段响应总数未知)
func NewSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
}
