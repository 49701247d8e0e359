// Package crawlers 提供页面资源捕获的驱动实现
//
// # 概述
//
// 两种驱动都实现 models.BrowserDriver: 启动、导航并为观察到的每个HTTP响应回调一次。
// 响应体不随事件携带,处理器需要时通过 ResponseEvent.FetchBody 读取。
//
// ## DynamicDriver
//
// 基于go-rod的真实浏览器驱动,监听CDP网络事件。
// 支持无头模式、自定义User-Agent、视口、绕过CSP和反检测(go-rod/stealth)。
//
//	driver := NewDynamicDriver(config)
//	if err := driver.Launch(ctx); err != nil {
//		return err
//	}
//	defer driver.Close()
//	err := driver.Navigate(ctx, config.URL, onResponse, config.Timeout())
//
// ## StaticDriver
//
// 基于Colly的HTTP驱动,不执行JavaScript。
// 解析目标页面HTML和CSS中的子资源引用并逐个请求,自动解压gzip/deflate/br响应。
//
// ## ResourceMonitor
//
// 使用gopsutil采样可用内存和CPU负载,给出并发读取响应体的建议上限。
package crawlers
