package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/RecoveryAshes/webgrab/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDriver 按脚本回放响应事件的驱动
type fakeDriver struct {
	events      []models.ResponseEvent
	late        []models.ResponseEvent // Navigate返回后、额外等待期间到达
	launchErr   error
	navigateErr error
	block       bool // Navigate阻塞直到ctx取消

	mu       sync.Mutex
	launched bool
	closed   bool
	gotURL   string
}

func (d *fakeDriver) Launch(ctx context.Context) error {
	if d.launchErr != nil {
		return d.launchErr
	}
	d.mu.Lock()
	d.launched = true
	d.mu.Unlock()
	return nil
}

func (d *fakeDriver) Navigate(ctx context.Context, url string, onResponse models.ResponseHandler, timeout time.Duration) error {
	d.mu.Lock()
	d.gotURL = url
	d.mu.Unlock()

	for _, ev := range d.events {
		onResponse(ev)
	}
	if len(d.late) > 0 {
		late := d.late
		go func() {
			time.Sleep(20 * time.Millisecond)
			for _, ev := range late {
				onResponse(ev)
			}
		}()
	}
	if d.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return d.navigateErr
}

func (d *fakeDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *fakeDriver) wasClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func engineConfig(t *testing.T, wait int) models.CaptureConfig {
	t.Helper()
	c, err := models.NewCaptureConfig(models.CaptureConfig{
		URL:          "https://site.test/",
		WaitTime:     wait,
		TimeoutMs:    5000,
		FetchWorkers: 2,
	})
	require.NoError(t, err)
	return c
}

func TestCaptureEngine_Capture(t *testing.T) {
	driver := &fakeDriver{events: []models.ResponseEvent{
		bodyEvent("https://site.test/", 200, "text/html", "<html></html>"),
		bodyEvent("https://site.test/app.js", 200, "application/javascript", "js"),
		failingEvent("https://site.test/evicted.png"),
		bodyEvent("https://site.test/missing.css", 404, "text/css", ""),
	}}

	var observed int
	var statuses []string
	var mu sync.Mutex
	engine := NewCaptureEngine(engineConfig(t, 0), driver, EngineOptions{
		OnStatus: func(s string) {
			mu.Lock()
			statuses = append(statuses, s)
			mu.Unlock()
		},
		OnResource: func(models.Resource) { observed++ },
	})

	resources, stats, err := engine.Capture(context.Background())
	require.NoError(t, err)

	assert.Len(t, resources, 2)
	assert.Equal(t, 2, observed)
	assert.Equal(t, 4, stats.TotalObserved)
	assert.Equal(t, 2, stats.Successful)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.SkippedByFilter)
	assert.Greater(t, stats.DurationSeconds, 0.0)
	assert.Equal(t, "https://site.test/", driver.gotURL)
	assert.True(t, driver.wasClosed(), "捕获结束后关闭浏览器")
	assert.NotEmpty(t, statuses)
}

func TestCaptureEngine_ExtraWaitCollectsLateResponses(t *testing.T) {
	driver := &fakeDriver{
		events: []models.ResponseEvent{bodyEvent("https://site.test/", 200, "text/html", "page")},
		late:   []models.ResponseEvent{bodyEvent("https://site.test/lazy.json", 200, "application/json", "{}")},
	}

	resources, _, err := NewCaptureEngine(engineConfig(t, 1), driver, EngineOptions{}).Capture(context.Background())
	require.NoError(t, err)

	urls := make([]string, 0, len(resources))
	for _, r := range resources {
		urls = append(urls, r.URL)
	}
	assert.Contains(t, urls, "https://site.test/lazy.json", "额外等待期间到达的响应也要捕获")
}

func TestCaptureEngine_LaunchFailure(t *testing.T) {
	driver := &fakeDriver{launchErr: errors.New("chrome not found")}

	resources, _, err := NewCaptureEngine(engineConfig(t, 0), driver, EngineOptions{}).Capture(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrBrowser)
	assert.Nil(t, resources)
	assert.False(t, driver.wasClosed(), "未启动的浏览器无需关闭")
}

func TestCaptureEngine_NavigationFailure(t *testing.T) {
	tests := []struct {
		name     string
		navErr   error
		expected error
	}{
		{"普通错误包装为导航错误", errors.New("net::ERR_NAME_NOT_RESOLVED"), models.ErrNavigation},
		{"超时", context.DeadlineExceeded, models.ErrNavigation},
		{"驱动返回的浏览器错误保持原样", &models.BrowserError{Op: "page", Cause: errors.New("crashed")}, models.ErrBrowser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driver := &fakeDriver{
				events:      []models.ResponseEvent{bodyEvent("https://site.test/a.js", 200, "", "a")},
				navigateErr: tt.navErr,
			}
			resources, stats, err := NewCaptureEngine(engineConfig(t, 0), driver, EngineOptions{}).Capture(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.expected)
			assert.Nil(t, resources, "致命错误不返回部分结果")
			assert.LessOrEqual(t, stats.TotalObserved, 1)
			assert.True(t, driver.wasClosed())
		})
	}
}

func TestCaptureEngine_Cancelled(t *testing.T) {
	driver := &fakeDriver{
		events: []models.ResponseEvent{bodyEvent("https://site.test/", 200, "text/html", "page")},
		block:  true,
	}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	resources, _, err := NewCaptureEngine(engineConfig(t, 0), driver, EngineOptions{}).Capture(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, resources)
	assert.True(t, driver.wasClosed())
}

func TestCaptureEngine_CancelledDuringExtraWait(t *testing.T) {
	driver := &fakeDriver{events: []models.ResponseEvent{bodyEvent("https://site.test/", 200, "text/html", "page")}}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	_, _, err := NewCaptureEngine(engineConfig(t, 30), driver, EngineOptions{}).Capture(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second, "取消应立即结束额外等待")
}
