package core

import (
	"context"
	"time"

	"github.com/RecoveryAshes/webgrab/internal/utils"
)

// RunFunc 对单个URL执行一次完整运行
type RunFunc func(ctx context.Context, targetURL string) (*GrabResult, error)

// BatchGrabber 批量运行器
// 每个URL独立运行(独立的浏览器、去重器和清单)
type BatchGrabber struct {
	run           RunFunc
	batchDelay    time.Duration
	continueOnErr bool
}

// BatchResult 单个URL的批量运行结果
type BatchResult struct {
	URL         string
	Success     bool
	Error       error
	Result      *GrabResult
	ProcessedAt time.Time
	Duration    float64
}

// BatchSummary 批量运行摘要
type BatchSummary struct {
	TotalURLs     int
	SuccessCount  int
	FailCount     int
	SavedFiles    int
	TotalSize     int64
	TotalDuration float64
	Interrupted   bool
	Results       []BatchResult
}

// NewBatchGrabber 创建批量运行器
func NewBatchGrabber(run RunFunc, batchDelay time.Duration, continueOnErr bool) *BatchGrabber {
	return &BatchGrabber{
		run:           run,
		batchDelay:    batchDelay,
		continueOnErr: continueOnErr,
	}
}

// RunBatch 依次运行URL列表
// ctx取消时停止并返回已完成部分的摘要和ctx错误
func (bg *BatchGrabber) RunBatch(ctx context.Context, urls []string) (*BatchSummary, error) {
	utils.Infof("🚀 开始批量捕获: %d个URL", len(urls))

	summary := &BatchSummary{
		TotalURLs: len(urls),
		Results:   make([]BatchResult, 0, len(urls)),
	}

	startTime := time.Now()
	defer func() {
		summary.TotalDuration = time.Since(startTime).Seconds()
	}()

	for i, targetURL := range urls {
		if err := ctx.Err(); err != nil {
			summary.Interrupted = true
			return summary, err
		}

		utils.Infof("==================== [%d/%d] ====================", i+1, len(urls))
		utils.Infof("目标URL: %s", targetURL)

		result := runOne(ctx, bg.run, targetURL)
		summary.Results = append(summary.Results, result)

		if result.Success {
			summary.SuccessCount++
			if result.Result != nil {
				summary.SavedFiles += result.Result.Save.SavedCount()
				for _, f := range result.Result.Save.Files {
					summary.TotalSize += f.Size
				}
			}
		} else {
			summary.FailCount++
			utils.Error(result.Error, "❌ 捕获失败: "+targetURL)

			if err := ctx.Err(); err != nil {
				summary.Interrupted = true
				return summary, err
			}
			if !bg.continueOnErr {
				utils.Warn("批量捕获中止 (--continue-on-error=false)")
				break
			}
		}

		// 最后一个URL不需要延迟
		if i < len(urls)-1 && bg.batchDelay > 0 {
			utils.Debugf("等待 %.0f 秒后处理下一个URL...", bg.batchDelay.Seconds())
			timer := time.NewTimer(bg.batchDelay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				summary.Interrupted = true
				return summary, ctx.Err()
			}
		}
	}

	return summary, nil
}

// runOne 运行单个URL并计时
func runOne(ctx context.Context, run RunFunc, targetURL string) BatchResult {
	result := BatchResult{
		URL:         targetURL,
		ProcessedAt: time.Now(),
	}

	grab, err := run(ctx, targetURL)
	result.Duration = time.Since(result.ProcessedAt).Seconds()
	result.Result = grab
	if err != nil {
		result.Error = err
		return result
	}

	result.Success = true
	return result
}

// PrintSummary 打印批量运行摘要
func (s *BatchSummary) PrintSummary() {
	utils.Info("==================================================")
	utils.Info("📊 批量捕获摘要")
	utils.Info("==================================================")
	utils.Infof("总URL数: %d", s.TotalURLs)
	utils.Infof("✅ 成功: %d", s.SuccessCount)
	utils.Infof("❌ 失败: %d", s.FailCount)
	if skipped := s.TotalURLs - s.SuccessCount - s.FailCount; skipped > 0 {
		utils.Infof("⏭️  未处理: %d", skipped)
	}
	utils.Infof("📦 已保存文件: %d", s.SavedFiles)
	utils.Infof("📦 总大小: %s", utils.FormatBytes(s.TotalSize))
	utils.Infof("⏱️  总耗时: %.2f秒", s.TotalDuration)
	utils.Info("==================================================")

	if s.FailCount > 0 {
		utils.Warn("失败的URL:")
		for _, result := range s.Results {
			if !result.Success {
				utils.Warnf("  - %s: %v", result.URL, result.Error)
			}
		}
	}
}
