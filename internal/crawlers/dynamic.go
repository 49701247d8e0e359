package crawlers

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/RecoveryAshes/webgrab/internal/models"
	"github.com/RecoveryAshes/webgrab/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// requestIdleWindow 导航完成后网络保持空闲多久视为加载结束
const requestIdleWindow = 500 * time.Millisecond

// DynamicDriver 基于go-rod的真实浏览器驱动
// 通过CDP网络事件观察页面发出的每一个响应,响应体在被处理器请求时才读取
type DynamicDriver struct {
	config models.CaptureConfig

	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page

	// 网络事件监听跟随页面存活到Close,额外等待期间的响应同样会回调
	stopEvents context.CancelFunc
	eventsDone chan struct{}

	mu sync.Mutex
}

// NewDynamicDriver 创建动态驱动,调用Launch前不会启动浏览器
func NewDynamicDriver(config models.CaptureConfig) *DynamicDriver {
	return &DynamicDriver{config: config}
}

// Launch 启动浏览器并建立CDP连接
func (d *DynamicDriver) Launch(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	l := launcher.New().
		Context(ctx).
		Headless(d.config.Headless).
		// 允许访问自签名、过期或主机名不匹配的HTTPS站点
		Set("ignore-certificate-errors")

	controlURL, err := l.Launch()
	if err != nil {
		return &models.BrowserError{Op: "launch", Cause: fmt.Errorf("启动浏览器失败: %w", err)}
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return &models.BrowserError{Op: "connect", Cause: fmt.Errorf("连接浏览器失败: %w", err)}
	}

	d.launcher = l
	d.browser = browser
	utils.Debugf("浏览器已启动: %s (headless=%v)", controlURL, d.config.Headless)
	return nil
}

// Navigate 打开新页面并导航到目标URL
// 页面load事件触发且网络空闲后返回;返回后监听不停止,之后到达的响应继续回调直到Close
func (d *DynamicDriver) Navigate(ctx context.Context, targetURL string, onResponse models.ResponseHandler, timeout time.Duration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			utils.Errorf("捕获panic: URL=%s, 错误=%v", targetURL, r)
			err = &models.BrowserError{Op: "navigate", Cause: fmt.Errorf("页面操作panic: %v", r)}
		}
	}()

	page, err := d.openPage()
	if err != nil {
		return err
	}

	d.startEvents(page, onResponse)

	nav := page.Context(ctx).Timeout(timeout)
	defer nav.CancelTimeout()
	if err := nav.Navigate(targetURL); err != nil {
		return &models.NavigationError{URL: targetURL, Cause: err}
	}
	if err := nav.WaitLoad(); err != nil {
		return &models.NavigationError{URL: targetURL, Cause: fmt.Errorf("等待页面加载失败: %w", err)}
	}

	nav.WaitRequestIdle(requestIdleWindow, nil, nil, nil)()
	if err := ctx.Err(); err != nil {
		return err
	}

	utils.Debugf("页面加载完成: %s", targetURL)
	return nil
}

// openPage 创建并配置页面
func (d *DynamicDriver) openPage() (*rod.Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.browser == nil {
		return nil, &models.BrowserError{Op: "navigate", Cause: fmt.Errorf("浏览器尚未启动")}
	}

	var page *rod.Page
	var err error
	if d.config.Stealth {
		page, err = stealth.Page(d.browser)
	} else {
		page, err = d.browser.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		return nil, &models.BrowserError{Op: "new_page", Cause: fmt.Errorf("创建页面失败: %w", err)}
	}
	d.page = page

	if err := (proto.NetworkEnable{}).Call(page); err != nil {
		return nil, &models.BrowserError{Op: "network_enable", Cause: err}
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             d.config.ViewportWidth,
		Height:            d.config.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		return nil, &models.BrowserError{Op: "viewport", Cause: err}
	}

	if d.config.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: d.config.UserAgent}); err != nil {
			return nil, &models.BrowserError{Op: "user_agent", Cause: err}
		}
	}

	if d.config.BypassCSP {
		if err := (proto.PageSetBypassCSP{Enabled: true}).Call(page); err != nil {
			utils.Warnf("设置绕过CSP失败: %v", err)
		}
	}

	if len(d.config.Headers) > 0 {
		dict := make([]string, 0, len(d.config.Headers)*2)
		for name, value := range d.config.Headers {
			dict = append(dict, name, value)
		}
		if _, err := page.SetExtraHeaders(dict); err != nil {
			return nil, &models.BrowserError{Op: "extra_headers", Cause: err}
		}
		utils.Debugf("已注入%d个自定义请求头部", len(d.config.Headers))
	}

	return page, nil
}

// startEvents 启动页面级的网络事件监听,由Close停止
func (d *DynamicDriver) startEvents(page *rod.Page, onResponse models.ResponseHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopEventsLocked()
	eventCtx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	wait := d.watchResponses(page.Context(eventCtx), onResponse)
	go func() {
		defer close(done)
		wait()
	}()
	d.stopEvents = stop
	d.eventsDone = done
}

// stopEventsLocked 停止监听并等待监听协程退出,调用方持有d.mu
func (d *DynamicDriver) stopEventsLocked() {
	if d.stopEvents == nil {
		return
	}
	d.stopEvents()
	<-d.eventsDone
	d.stopEvents = nil
	d.eventsDone = nil
}

// watchResponses 订阅网络事件
// 响应头在ResponseReceived时记录,响应体完整到达(LoadingFinished)后才回调;
// LoadingFailed和重定向跳转同样回调,读取响应体时返回ResourceError
func (d *DynamicDriver) watchResponses(page *rod.Page, onResponse models.ResponseHandler) func() {
	var mu sync.Mutex
	pending := make(map[proto.NetworkRequestID]*proto.NetworkResponse)

	take := func(id proto.NetworkRequestID) *proto.NetworkResponse {
		mu.Lock()
		defer mu.Unlock()
		resp := pending[id]
		delete(pending, id)
		return resp
	}

	emit := func(ev models.ResponseEvent) {
		defer func() {
			if r := recover(); r != nil {
				utils.Errorf("响应回调panic [%s]: %v", ev.URL, r)
			}
		}()
		onResponse(ev)
	}

	return page.EachEvent(
		func(e *proto.NetworkRequestWillBeSent) {
			if r := e.RedirectResponse; r != nil {
				emit(redirectEvent(r.URL, r.Status, flattenHeaders(r.Headers)))
			}
		},
		func(e *proto.NetworkResponseReceived) {
			if e.Response == nil {
				return
			}
			mu.Lock()
			pending[e.RequestID] = e.Response
			mu.Unlock()
		},
		func(e *proto.NetworkLoadingFinished) {
			resp := take(e.RequestID)
			if resp == nil {
				return
			}
			emit(models.ResponseEvent{
				URL:        resp.URL,
				StatusCode: resp.Status,
				Headers:    flattenHeaders(resp.Headers),
				FetchBody:  d.bodyFetcher(page, e.RequestID, resp.URL),
			})
		},
		func(e *proto.NetworkLoadingFailed) {
			resp := take(e.RequestID)
			if resp == nil {
				return
			}
			failure := fmt.Errorf("加载失败: %s", e.ErrorText)
			url := resp.URL
			emit(models.ResponseEvent{
				URL:        url,
				StatusCode: resp.Status,
				Headers:    flattenHeaders(resp.Headers),
				FetchBody: func(context.Context) ([]byte, error) {
					return nil, &models.ResourceError{URL: url, Cause: failure}
				},
			})
		},
	)
}

// bodyFetcher 通过Network.getResponseBody读取响应体
func (d *DynamicDriver) bodyFetcher(page *rod.Page, id proto.NetworkRequestID, url string) models.BodyFetcher {
	return func(ctx context.Context) ([]byte, error) {
		body, err := proto.NetworkGetResponseBody{RequestID: id}.Call(page.Context(ctx))
		if err != nil {
			return nil, &models.ResourceError{URL: url, Cause: fmt.Errorf("获取响应体失败: %w", err)}
		}
		if !body.Base64Encoded {
			return []byte(body.Body), nil
		}
		content, err := base64.StdEncoding.DecodeString(body.Body)
		if err != nil {
			return nil, &models.ResourceError{URL: url, Cause: fmt.Errorf("解码Base64失败: %w", err)}
		}
		return content, nil
	}
}

// Close 关闭页面和浏览器,可重复调用
func (d *DynamicDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopEventsLocked()

	var firstErr error
	if d.page != nil {
		if err := d.page.Close(); err != nil {
			utils.Debugf("关闭页面失败: %v", err)
		}
		d.page = nil
	}
	if d.browser != nil {
		if err := d.browser.Close(); err != nil {
			firstErr = &models.BrowserError{Op: "close", Cause: err}
		}
		d.browser = nil
	}
	if d.launcher != nil {
		d.launcher.Cleanup()
		d.launcher = nil
	}

	utils.Debugf("浏览器已关闭")
	return firstErr
}

// flattenHeaders 把CDP头部转成字符串映射
func flattenHeaders(h proto.NetworkHeaders) map[string]string {
	out := make(map[string]string, len(h))
	for name, value := range h {
		out[name] = value.Str()
	}
	return out
}
