package core

import (
	"context"
	"fmt"
	"time"

	"github.com/RecoveryAshes/webgrab/internal/models"
	"github.com/RecoveryAshes/webgrab/internal/storage"
	"github.com/RecoveryAshes/webgrab/internal/utils"
)

// DriverFactory 按捕获配置创建驱动
type DriverFactory func(config models.CaptureConfig) models.BrowserDriver

// GrabOptions 单个目标的运行选项
type GrabOptions struct {
	Capture   models.CaptureConfig
	Save      models.SaveConfig
	NewDriver DriverFactory
	Filter    ResourceFilter // 为nil时使用DefaultFilter

	// OnStatus 捕获阶段的状态回调(可选)
	OnStatus func(string)

	// OnResource 每捕获一个资源回调一次(可选)
	OnResource func(models.Resource)

	// ShowProgress 保存阶段显示进度条
	ShowProgress bool

	// Stream 边捕获边保存,不等捕获结束
	Stream bool
}

// GrabResult 单个目标的运行结果
type GrabResult struct {
	RunID        string
	TargetURL    string
	Mode         models.CaptureMode
	StartTime    time.Time
	EndTime      time.Time
	Stats        models.CaptureStats
	Save         models.SaveResult
	ManifestPath string
}

// Grabber 主协调器: 捕获 → 保存 → 清单
type Grabber struct {
	opts GrabOptions
}

// NewGrabber 创建主协调器
func NewGrabber(opts GrabOptions) *Grabber {
	return &Grabber{opts: opts}
}

// Run 执行一次完整运行
// 捕获阶段的致命错误直接返回;单个资源的读取或写入失败只体现在结果中
func (g *Grabber) Run(ctx context.Context) (*GrabResult, error) {
	if g.opts.NewDriver == nil {
		return nil, &models.ConfigError{Field: "driver", Cause: fmt.Errorf("未指定驱动")}
	}

	result := &GrabResult{
		RunID:     models.NewRunID(),
		TargetURL: g.opts.Capture.URL,
		Mode:      g.opts.Capture.Mode,
		StartTime: time.Now(),
	}

	utils.Infof("🚀 开始捕获: %s", result.TargetURL)
	utils.Infof("捕获模式: %s", result.Mode)
	utils.Infof("输出目录: %s", g.opts.Save.OutputDir)
	utils.Debugf("运行ID: %s", result.RunID)

	var (
		stats      models.CaptureStats
		saveResult models.SaveResult
		err        error
	)
	if g.opts.Stream {
		stats, saveResult, err = g.captureStreaming(ctx)
	} else {
		stats, saveResult, err = g.captureThenSave(ctx)
	}
	result.Stats = stats
	result.Save = saveResult
	result.EndTime = time.Now()
	if err != nil {
		return result, err
	}

	if g.opts.Save.Manifest {
		report := models.NewCaptureReport(result.RunID, result.TargetURL, result.Mode,
			result.StartTime, result.EndTime, result.Stats, result.Save)
		reporter := utils.NewReporter(g.opts.Save.OutputDir, storage.HostDir(result.TargetURL))
		path, err := reporter.WriteManifest(report)
		if err != nil {
			// 清单是附加产物,失败不影响已保存的资源
			utils.Warnf("写入清单失败: %v", err)
		} else {
			result.ManifestPath = path
			utils.Infof("📄 清单: %s", path)
		}
	}

	utils.Infof("💾 保存完成: 已保存%d, 跨域跳过%d, 写入失败%d",
		saveResult.SavedCount(), saveResult.SkippedCount, saveResult.TotalFailures())
	return result, nil
}

func (g *Grabber) newEngine(onResource func(models.Resource)) *CaptureEngine {
	return NewCaptureEngine(g.opts.Capture, g.opts.NewDriver(g.opts.Capture), EngineOptions{
		Filter:   g.opts.Filter,
		OnStatus: g.opts.OnStatus,
		OnResource: func(r models.Resource) {
			if g.opts.OnResource != nil {
				g.opts.OnResource(r)
			}
			if onResource != nil {
				onResource(r)
			}
		},
	})
}

// captureThenSave 先完成捕获,再按捕获顺序保存
func (g *Grabber) captureThenSave(ctx context.Context) (models.CaptureStats, models.SaveResult, error) {
	resources, stats, err := g.newEngine(nil).Capture(ctx)
	if err != nil {
		return stats, models.SaveResult{}, err
	}
	logCaptureStats(stats)

	saver := storage.NewResourceSaver(g.opts.Save)
	if g.opts.ShowProgress && len(resources) > 0 {
		bar := utils.NewProgressBar(len(resources), "💾 保存资源")
		saver.OnOutcome = func(models.SaveOutcome) {
			_ = bar.Add(1)
		}
		defer func() { _ = bar.Finish() }()
	}

	saveResult, err := saver.SaveAll(ctx, resources)
	return stats, saveResult, err
}

// captureStreaming 捕获与保存并发进行
// 捕获失败时已保存的文件保留在磁盘上,并体现在返回的保存结果中
func (g *Grabber) captureStreaming(ctx context.Context) (models.CaptureStats, models.SaveResult, error) {
	saver := storage.NewResourceSaver(g.opts.Save)
	stream := make(chan models.Resource, g.opts.Capture.QueueSize)

	var (
		saveResult models.SaveResult
		saveErr    error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		saveResult, saveErr = saver.SaveStream(ctx, stream)
	}()

	_, stats, err := g.newEngine(func(r models.Resource) {
		select {
		case stream <- r:
		case <-done:
		case <-ctx.Done():
		}
	}).Capture(ctx)
	close(stream)
	<-done

	if err != nil {
		return stats, saveResult, err
	}
	logCaptureStats(stats)
	return stats, saveResult, saveErr
}

func logCaptureStats(stats models.CaptureStats) {
	utils.Infof("✅ 捕获完成: 观察到%d个响应, 成功%d, 失败%d, 已过滤%d",
		stats.TotalObserved, stats.Successful, stats.Failed, stats.SkippedByFilter)
}
