package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/RecoveryAshes/webgrab/internal/models"
	"github.com/RecoveryAshes/webgrab/internal/utils"
	"golang.org/x/sync/semaphore"
)

// ProcessKind 单个事件的处理结果类型
type ProcessKind int

const (
	ProcessCaptured    ProcessKind = iota // 成功读取响应体
	ProcessFilteredOut                    // 被过滤器拒绝,未读取响应体
	ProcessFetchFailed                    // 响应体读取失败
)

// ProcessResult 单个事件的处理结果
type ProcessResult struct {
	Kind     ProcessKind
	Resource models.Resource // 仅Captured时有效
	Err      error           // 仅FetchFailed时有效
}

// ResourceProcessor 将响应事件转换为资源记录并累计统计
// 统计只由处理路径写入(Process的调用方或ProcessStream的循环goroutine)
type ResourceProcessor struct {
	filter     ResourceFilter
	onProgress func(string)
	workers    int64

	mu    sync.Mutex
	stats models.CaptureStats
}

// NewResourceProcessor 创建处理器
// filter为nil时使用DefaultFilter,workers为并发读取响应体的上限
func NewResourceProcessor(filter ResourceFilter, onProgress func(string), workers int) *ResourceProcessor {
	if filter == nil {
		filter = DefaultFilter{}
	}
	if workers <= 0 {
		workers = models.DefaultFetchWorkers
	}
	return &ResourceProcessor{
		filter:     filter,
		onProgress: onProgress,
		workers:    int64(workers),
	}
}

// Stats 返回统计快照
func (p *ResourceProcessor) Stats() models.CaptureStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Process 顺序处理单个事件
// 单个资源失败只计入统计,不会返回错误
func (p *ResourceProcessor) Process(ctx context.Context, ev models.ResponseEvent) ProcessResult {
	if !p.admit(ev) {
		return ProcessResult{Kind: ProcessFilteredOut}
	}
	res, err := fetchResource(ctx, ev)
	return p.record(ev, res, err)
}

// fetchOutcome 后台读取的结果
type fetchOutcome struct {
	ev  models.ResponseEvent
	res models.Resource
	err error
}

// ProcessStream 消费队列直到流结束标记,按响应体读取完成的顺序输出资源
// 读取并发受workers限制;ctx取消时停止并关闭输出通道
func (p *ResourceProcessor) ProcessStream(ctx context.Context, queue *EventQueue) <-chan models.Resource {
	out := make(chan models.Resource)

	go func() {
		defer close(out)

		sem := semaphore.NewWeighted(p.workers)
		results := make(chan fetchOutcome)
		events := queue.Events()
		inflight := 0

		for events != nil || inflight > 0 {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-events:
				if !ok {
					events = nil
					continue
				}
				if !p.admit(ev) {
					continue
				}
				inflight++
				go func(ev models.ResponseEvent) {
					o := fetchOutcome{ev: ev}
					if err := sem.Acquire(ctx, 1); err != nil {
						o.err = err
					} else {
						o.res, o.err = fetchResource(ctx, ev)
						sem.Release(1)
					}
					select {
					case results <- o:
					case <-ctx.Done():
					}
				}(ev)

			case o := <-results:
				inflight--
				r := p.record(o.ev, o.res, o.err)
				if r.Kind != ProcessCaptured {
					continue
				}
				select {
				case out <- r.Resource:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

// admit 计入观察数并应用过滤器
func (p *ResourceProcessor) admit(ev models.ResponseEvent) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.TotalObserved++
	if !p.filter.ShouldCapture(ev.URL, ev.ContentType(), ev.StatusCode) {
		p.stats.SkippedByFilter++
		return false
	}
	return true
}

// record 记录读取结果
func (p *ResourceProcessor) record(ev models.ResponseEvent, res models.Resource, err error) ProcessResult {
	p.mu.Lock()
	if err != nil {
		p.stats.Failed++
		p.mu.Unlock()

		utils.ResourceWarn(ev.URL, err, "读取响应体失败")
		if p.onProgress != nil {
			p.onProgress(fmt.Sprintf("获取失败 %s: %v", ev.URL, err))
		}
		return ProcessResult{Kind: ProcessFetchFailed, Err: err}
	}

	p.stats.Successful++
	p.stats.TotalBytes += int64(res.Size())
	p.mu.Unlock()

	return ProcessResult{Kind: ProcessCaptured, Resource: res}
}

// fetchResource 读取响应体并构造资源记录
func fetchResource(ctx context.Context, ev models.ResponseEvent) (models.Resource, error) {
	if ev.FetchBody == nil {
		return models.Resource{}, &models.ResourceError{URL: ev.URL, Cause: fmt.Errorf("响应体不可读取")}
	}

	body, err := ev.FetchBody(ctx)
	if err != nil {
		if errors.Is(err, models.ErrResourceFetch) {
			return models.Resource{}, err
		}
		return models.Resource{}, &models.ResourceError{URL: ev.URL, Cause: err}
	}

	return models.NewResource(ev.URL, ev.ContentType(), body, ev.Headers, ev.StatusCode), nil
}
