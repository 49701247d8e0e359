package crawlers

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/RecoveryAshes/webgrab/internal/models"
	"github.com/RecoveryAshes/webgrab/internal/utils"
	"github.com/andybalholm/brotli"
	"github.com/gocolly/colly/v2"
)

// maxRedirects 与net/http默认值一致,超过后把最后一个3xx当作最终响应
const maxRedirects = 10

var errRedirectNoBody = errors.New("重定向响应没有响应体")

// StaticDriver 无浏览器的HTTP驱动(使用Colly)
// 抓取目标页面后解析HTML/CSS中引用的子资源并逐个请求,不执行JavaScript
type StaticDriver struct {
	config  models.CaptureConfig
	headers http.Header

	transport *http.Transport
	mu        sync.Mutex
}

// NewStaticDriver 创建静态驱动
// headers为每个请求附加的头部(已合并默认头部、配置文件和命令行)
func NewStaticDriver(config models.CaptureConfig, headers http.Header) *StaticDriver {
	return &StaticDriver{
		config:  config,
		headers: headers.Clone(),
	}
}

// Launch 准备HTTP传输层
func (d *StaticDriver) Launch(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.transport = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true, // 跳过证书验证,与浏览器的ignore-certificate-errors保持一致
		},
		MaxIdleConnsPerHost: d.config.FetchWorkers,
	}
	utils.Debugf("静态驱动: TLS证书验证已禁用,并发=%d", d.config.FetchWorkers)
	return nil
}

// Navigate 请求目标页面及其子资源,全部完成或超时后返回
func (d *StaticDriver) Navigate(ctx context.Context, targetURL string, onResponse models.ResponseHandler, timeout time.Duration) error {
	d.mu.Lock()
	transport := d.transport
	d.mu.Unlock()
	if transport == nil {
		return &models.BrowserError{Op: "navigate", Cause: fmt.Errorf("静态驱动尚未启动")}
	}

	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c := colly.NewCollector(
		colly.Async(true),
		colly.ParseHTTPErrorResponse(),
		colly.StdlibContext(navCtx),
	)
	c.WithTransport(transport)
	c.SetRequestTimeout(timeout)
	c.MaxBodySize = 0 // 不限制响应体大小

	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: d.config.FetchWorkers,
	}); err != nil {
		utils.Warnf("设置并发限制失败: %v", err)
	}

	c.SetRedirectHandler(func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return http.ErrUseLastResponse
		}
		if req.Response != nil {
			onResponse(redirectEvent(via[len(via)-1].URL.String(), req.Response.StatusCode, flattenHTTPHeaders(&req.Response.Header)))
		}
		return nil
	})

	c.OnRequest(func(r *colly.Request) {
		for name, values := range d.headers {
			if len(values) > 0 {
				r.Headers.Set(name, values[0])
			}
		}
		if d.config.UserAgent != "" {
			r.Headers.Set("User-Agent", d.config.UserAgent)
		}
	})

	var (
		topMu  sync.Mutex
		topErr error
	)

	c.OnResponse(func(r *colly.Response) {
		requestURL := r.Request.URL.String()
		body, headers, decodeErr := decodeResponse(requestURL, r)

		onResponse(models.ResponseEvent{
			URL:        requestURL,
			StatusCode: r.StatusCode,
			Headers:    headers,
			FetchBody: func(context.Context) ([]byte, error) {
				if decodeErr != nil {
					return nil, &models.ResourceError{URL: requestURL, Cause: decodeErr}
				}
				return append([]byte(nil), body...), nil
			},
		})
		if decodeErr != nil {
			return
		}

		for _, sub := range subresources(r, body, headers) {
			if err := r.Request.Visit(sub); err != nil && !strings.Contains(err.Error(), "already visited") {
				utils.Debugf("请求子资源失败 [%s]: %v", sub, err)
			}
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		requestURL := r.Request.URL.String()

		// 目标页面本身失败即导航失败
		if r.Request.Depth <= 1 {
			topMu.Lock()
			topErr = &models.NavigationError{URL: requestURL, Cause: err}
			topMu.Unlock()
			return
		}

		utils.Debugf("请求失败 [%s]: %v", requestURL, err)
		onResponse(models.ResponseEvent{
			URL:        requestURL,
			StatusCode: r.StatusCode,
			Headers:    flattenHTTPHeaders(r.Headers),
			FetchBody: func(context.Context) ([]byte, error) {
				return nil, &models.ResourceError{URL: requestURL, Cause: err}
			},
		})
	})

	if err := c.Visit(targetURL); err != nil {
		return &models.NavigationError{URL: targetURL, Cause: err}
	}
	c.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	if errors.Is(navCtx.Err(), context.DeadlineExceeded) {
		return &models.NavigationError{URL: targetURL, Cause: fmt.Errorf("导航超时 (%s): %w", timeout, context.DeadlineExceeded)}
	}

	topMu.Lock()
	defer topMu.Unlock()
	return topErr
}

// redirectEvent 重定向中间跳转的响应
// 跳转没有可保存的响应体,读取时返回ResourceError
func redirectEvent(url string, status int, headers map[string]string) models.ResponseEvent {
	return models.ResponseEvent{
		URL:        url,
		StatusCode: status,
		Headers:    headers,
		FetchBody: func(context.Context) ([]byte, error) {
			return nil, &models.ResourceError{URL: url, Cause: errRedirectNoBody}
		},
	}
}

// Close 释放空闲连接
func (d *StaticDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.transport != nil {
		d.transport.CloseIdleConnections()
		d.transport = nil
	}
	return nil
}

// subresources 目标页面的HTML和任意层级的CSS中引用的资源
// 只解析目标页面本身,不向下爬取其他HTML文档
func subresources(r *colly.Response, body []byte, headers map[string]string) []string {
	contentType := strings.ToLower(models.HeaderValue(headers, "Content-Type"))
	if contentType == "" {
		contentType = strings.ToLower(http.DetectContentType(body))
	}

	switch {
	case strings.Contains(contentType, "text/css"):
		return ExtractFromCSS(body, r.Request.URL)
	case r.Request.Depth <= 1 && (strings.Contains(contentType, "text/html") || strings.Contains(contentType, "xhtml")):
		return ExtractFromHTML(body, r.Request.URL)
	default:
		return nil
	}
}

// decodeResponse 返回解压后的响应体和头部
// 解压成功时移除Content-Encoding,使头部与保存的内容一致
func decodeResponse(requestURL string, r *colly.Response) ([]byte, map[string]string, error) {
	headers := flattenHTTPHeaders(r.Headers)
	encoding := models.HeaderValue(headers, "Content-Encoding")
	if encoding == "" {
		return r.Body, headers, nil
	}

	// Colly自己会解压gzip,但保留了头部
	if isGzip(encoding) && !bytes.HasPrefix(r.Body, gzipMagic) {
		dropHeader(headers, "Content-Encoding")
		return r.Body, headers, nil
	}

	decompressed, err := decompressResponse(encoding, r.Body)
	if err != nil {
		utils.Debugf("解压响应失败 [%s] (编码=%s): %v", requestURL, encoding, err)
		return nil, headers, err
	}

	dropHeader(headers, "Content-Encoding")
	utils.Debugf("成功解压响应 [%s]: 原始=%d bytes, 解压后=%d bytes", requestURL, len(r.Body), len(decompressed))
	return decompressed, headers, nil
}

var gzipMagic = []byte{0x1f, 0x8b}

func isGzip(encoding string) bool {
	e := strings.ToLower(strings.TrimSpace(encoding))
	return e == "gzip" || e == "x-gzip"
}

func dropHeader(headers map[string]string, name string) {
	for k := range headers {
		if strings.EqualFold(k, name) {
			delete(headers, k)
		}
	}
}

// decompressResponse 根据Content-Encoding头部解压响应体
// 支持 gzip, deflate, br (Brotli) 三种压缩格式
func decompressResponse(contentEncoding string, body []byte) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))

	switch encoding {
	case "gzip", "x-gzip":
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("gzip读取失败: %w", err)
		}
		return decompressed, nil

	case "deflate":
		reader := flate.NewReader(bytes.NewReader(body))
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("deflate读取失败: %w", err)
		}
		return decompressed, nil

	case "br":
		decompressed, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
		if err != nil {
			return nil, fmt.Errorf("brotli读取失败: %w", err)
		}
		return decompressed, nil

	case "", "identity":
		return body, nil

	default:
		return nil, fmt.Errorf("未知的Content-Encoding: %s", contentEncoding)
	}
}

func flattenHTTPHeaders(h *http.Header) map[string]string {
	out := make(map[string]string)
	if h == nil {
		return out
	}
	for name, values := range *h {
		out[name] = strings.Join(values, ", ")
	}
	return out
}
