//go:build integration

// 需要本机可用的Chromium: go test -tags integration ./internal/crawlers/
package crawlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/RecoveryAshes/webgrab/internal/core"
	"github.com/RecoveryAshes/webgrab/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDynamicDriverCapturesScriptLoadedResources(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><script src="/app.js"></script></body></html>`)
	})
	mux.HandleFunc("/app.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		fmt.Fprint(w, `fetch('/data.json')`)
	})
	mux.HandleFunc("/data.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ok":true}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	driver := NewDynamicDriver(models.CaptureConfig{
		Headless:       true,
		ViewportWidth:  1280,
		ViewportHeight: 720,
		BypassCSP:      true,
	})
	require.NoError(t, driver.Launch(context.Background()))
	defer driver.Close()

	rec := &eventRecorder{}
	require.NoError(t, driver.Navigate(context.Background(), srv.URL+"/", rec.handle, 30*time.Second))

	ev, ok := rec.events[srv.URL+"/data.json"]
	require.True(t, ok, "脚本发起的请求应该被观察到")
	body, err := ev.FetchBody(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestDynamicDriverKeepsListeningDuringExtraWait(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><script>setTimeout(() => fetch('/late.json'), 500)</script></body></html>`)
	})
	mux.HandleFunc("/late.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"late":true}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	config, err := models.NewCaptureConfig(models.CaptureConfig{
		URL:       srv.URL + "/",
		Headless:  true,
		WaitTime:  2,
		TimeoutMs: 30000,
	})
	require.NoError(t, err)

	engine := core.NewCaptureEngine(config, NewDynamicDriver(config), core.EngineOptions{})
	resources, _, err := engine.Capture(context.Background())
	require.NoError(t, err)

	var late *models.Resource
	for i := range resources {
		if resources[i].URL == srv.URL+"/late.json" {
			late = &resources[i]
		}
	}
	require.NotNil(t, late, "额外等待期间发出的请求应该被捕获")
	assert.JSONEq(t, `{"late":true}`, string(late.Body))
}

func TestDynamicDriverCountsRedirectHops(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><script src="/old.js"></script></body></html>`)
	})
	mux.HandleFunc("/old.js", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new.js", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		fmt.Fprint(w, `var moved = true`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	config, err := models.NewCaptureConfig(models.CaptureConfig{
		URL:       srv.URL + "/",
		Headless:  true,
		TimeoutMs: 30000,
	})
	require.NoError(t, err)

	engine := core.NewCaptureEngine(config, NewDynamicDriver(config), core.EngineOptions{})
	resources, stats, err := engine.Capture(context.Background())
	require.NoError(t, err)

	// 301跳转计入观察总数和失败数,不产生资源
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, stats.Successful+stats.Failed+stats.SkippedByFilter, stats.TotalObserved)

	urls := make([]string, 0, len(resources))
	for _, r := range resources {
		urls = append(urls, r.URL)
	}
	assert.Contains(t, urls, srv.URL+"/new.js")
	assert.NotContains(t, urls, srv.URL+"/old.js")
}
