package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RecoveryAshes/webgrab/internal/models"
	"github.com/RecoveryAshes/webgrab/internal/utils"
	"golang.org/x/sync/errgroup"
)

// EngineOptions 捕获引擎可选项
type EngineOptions struct {
	Filter     ResourceFilter         // 为nil时使用DefaultFilter
	OnStatus   func(string)           // 阶段状态回调
	OnResource func(models.Resource) // 每捕获一个资源回调一次
}

// CaptureEngine 驱动一次完整的捕获
// 导航与队列消费并发进行,导航结束(含额外等待)后写入流结束标记
type CaptureEngine struct {
	config    models.CaptureConfig
	driver    models.BrowserDriver
	processor *ResourceProcessor
	opts      EngineOptions
}

// NewCaptureEngine 创建捕获引擎
func NewCaptureEngine(config models.CaptureConfig, driver models.BrowserDriver, opts EngineOptions) *CaptureEngine {
	e := &CaptureEngine{
		config: config,
		driver: driver,
		opts:   opts,
	}
	e.processor = NewResourceProcessor(opts.Filter, e.status, config.FetchWorkers)
	return e
}

func (e *CaptureEngine) status(msg string) {
	utils.Debugf("%s", msg)
	if e.opts.OnStatus != nil {
		e.opts.OnStatus(msg)
	}
}

// Capture 执行捕获,返回资源列表和统计
// 浏览器启动失败返回BrowserError,导航失败或超时返回NavigationError,两者都使整次运行失败;
// 单个资源读取失败只计入统计
func (e *CaptureEngine) Capture(ctx context.Context) ([]models.Resource, models.CaptureStats, error) {
	start := time.Now()

	e.status("正在启动浏览器...")
	if err := e.driver.Launch(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, e.finalStats(start), ctx.Err()
		}
		return nil, e.finalStats(start), asBrowserError(err)
	}
	defer func() {
		if err := e.driver.Close(); err != nil {
			utils.Warnf("关闭浏览器失败: %v", err)
		}
	}()

	queue := NewEventQueue(e.config.QueueSize)
	g, gctx := errgroup.WithContext(ctx)

	resources := make([]models.Resource, 0)

	// 消费者: 与导航并发排空队列
	g.Go(func() error {
		for r := range e.processor.ProcessStream(gctx, queue) {
			resources = append(resources, r)
			if e.opts.OnResource != nil {
				e.opts.OnResource(r)
			}
		}
		return nil
	})

	// 生产者: 导航期间由驱动回调入队
	g.Go(func() error {
		defer queue.Finish()

		onResponse := func(ev models.ResponseEvent) {
			if err := queue.Push(gctx, ev); err != nil {
				utils.Debugf("丢弃响应事件 %s: %v", ev.URL, err)
			}
		}

		e.status(fmt.Sprintf("正在导航到 %s ...", e.config.URL))
		if err := e.driver.Navigate(gctx, e.config.URL, onResponse, e.config.Timeout()); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return asNavigationError(e.config.URL, err)
		}

		if wait := e.config.ExtraWait(); wait > 0 {
			e.status(fmt.Sprintf("额外等待 %d 秒以加载动态内容...", e.config.WaitTime))
			timer := time.NewTimer(wait)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-gctx.Done():
				return gctx.Err()
			}
		}

		e.status("正在处理捕获的资源...")
		return nil
	})

	err := g.Wait()
	stats := e.finalStats(start)

	if err != nil {
		return nil, stats, err
	}
	// 消费者因外部取消提前退出时不能当作完整捕获
	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}

	return resources, stats, nil
}

func (e *CaptureEngine) finalStats(start time.Time) models.CaptureStats {
	stats := e.processor.Stats()
	stats.DurationSeconds = time.Since(start).Seconds()
	return stats
}

func asBrowserError(err error) error {
	if errors.Is(err, models.ErrBrowser) {
		return err
	}
	return &models.BrowserError{Op: "launch", Cause: err}
}

func asNavigationError(url string, err error) error {
	if errors.Is(err, models.ErrNavigation) || errors.Is(err, models.ErrBrowser) {
		return err
	}
	return &models.NavigationError{URL: url, Cause: err}
}
