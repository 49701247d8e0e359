package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/RecoveryAshes/webgrab/internal/core"
	"github.com/RecoveryAshes/webgrab/internal/crawlers"
	"github.com/RecoveryAshes/webgrab/internal/models"
	"github.com/RecoveryAshes/webgrab/internal/utils"
	"github.com/spf13/cobra"
)

// errBatchFailed 批量模式中有URL致命失败
var errBatchFailed = errors.New("部分URL捕获失败")

// options 命令行参数
type options struct {
	// 全局参数
	configFile string
	verbose    bool
	logLevel   string

	// HTTP头部参数
	headers        []string
	validateConfig bool

	// 捕获参数
	outputDir       string
	waitTime        int
	includeExternal bool
	timeoutMs       int
	headless        bool
	userAgent       string
	viewportWidth   int
	viewportHeight  int
	bypassCSP       bool
	stealth         bool
	mode            string
	fetchWorkers    int
	overwrite       bool
	manifest        bool
	stream          bool
	noProgress      bool

	// 批量处理参数
	urlFile         string
	batchDelay      int
	continueOnError bool

	appConfig *core.Config
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "webgrab [url]",
		Short: "捕获网页加载的所有资源并镜像到本地",
		Long: `webgrab - 用真实浏览器打开页面,捕获页面加载过程中的每一个HTTP响应,
按 主机/路径 结构保存到本地目录。

支持:
  • 动态模式(go-rod浏览器)和静态模式(无浏览器HTTP抓取)
  • 同源过滤,可选保存跨域资源
  • 自定义HTTP请求头
  • 批量URL处理与运行清单

示例:
  webgrab https://example.com
  webgrab example.com -o ./mirror -w 3 -e
  webgrab https://example.com -H "Authorization: Bearer token" --manifest
  webgrab -f urls.txt --batch-delay 2
  webgrab --validate-config

版本: ` + Version + `
构建时间: ` + BuildTime,
		Version:       Version,
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, args)
		},
	}

	// 全局参数
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&opts.configFile, "config", "c", "", "配置文件路径")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "详细输出模式")
	pf.StringVar(&opts.logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")

	// HTTP头部参数
	pf.StringArrayVarP(&opts.headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定")
	pf.BoolVar(&opts.validateConfig, "validate-config", false, "验证配置并显示生效的HTTP头部")

	// 捕获参数
	f := rootCmd.Flags()
	f.StringVarP(&opts.outputDir, "output", "o", models.DefaultOutputDir, "输出目录")
	f.IntVarP(&opts.waitTime, "wait", "w", 0, "页面加载后额外等待时间(秒)")
	f.BoolVarP(&opts.includeExternal, "include-external", "e", false, "同时保存跨域资源")
	f.IntVar(&opts.timeoutMs, "timeout", models.DefaultTimeoutMs, "导航超时(毫秒)")
	f.BoolVar(&opts.headless, "headless", true, "无头浏览器模式")
	f.StringVar(&opts.userAgent, "user-agent", "", "自定义User-Agent")
	f.IntVar(&opts.viewportWidth, "viewport-width", models.DefaultViewportWidth, "视口宽度")
	f.IntVar(&opts.viewportHeight, "viewport-height", models.DefaultViewportHeight, "视口高度")
	f.BoolVar(&opts.bypassCSP, "bypass-csp", true, "绕过内容安全策略")
	f.BoolVar(&opts.stealth, "stealth", false, "启用浏览器反检测")
	f.StringVarP(&opts.mode, "mode", "m", string(models.ModeDynamic), "捕获模式 (dynamic|static)")
	f.IntVar(&opts.fetchWorkers, "fetch-workers", models.DefaultFetchWorkers, "并发读取响应体的数量")
	f.BoolVar(&opts.overwrite, "overwrite", false, "覆盖磁盘上已存在的文件")
	f.BoolVar(&opts.manifest, "manifest", false, "写入运行清单 webgrab_manifest.json")
	f.BoolVar(&opts.stream, "stream", false, "边捕获边保存")
	f.BoolVar(&opts.noProgress, "no-progress", false, "不显示进度条")

	// 批量处理参数
	f.StringVarP(&opts.urlFile, "url-file", "f", "", "包含URL列表的文件路径")
	f.IntVar(&opts.batchDelay, "batch-delay", 1, "批量处理URL间延迟(秒)")
	f.BoolVar(&opts.continueOnError, "continue-on-error", true, "遇到错误继续处理")

	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "显示版本信息",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "webgrab %s\n", Version)
			fmt.Fprintf(cmd.OutOrStdout(), "构建时间: %s\n", BuildTime)
		},
	}
}

// setup 加载配置并初始化日志系统
func (o *options) setup(cmd *cobra.Command) error {
	appConfig, err := core.LoadConfig(o.configFile)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}

	logConfig := appConfig.LogConfig()
	logConfig.Console = cmd.ErrOrStderr()
	if o.verbose {
		logConfig.Level = "debug"
	}
	// 命令行参数覆盖配置文件
	if o.logLevel != "" {
		logConfig.Level = o.logLevel
	}

	if err := utils.InitLogger(logConfig); err != nil {
		return fmt.Errorf("初始化日志系统失败: %w", err)
	}

	if o.verbose {
		utils.Debug("详细模式已启用")
	}

	o.appConfig = appConfig
	return nil
}

func (o *options) run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	headerManager, err := core.NewHeaderManager("", o.headers)
	if err != nil {
		return err
	}

	if o.validateConfig {
		return validateHeaders(cmd, headerManager)
	}

	targetURL := ""
	if len(args) > 0 {
		targetURL = args[0]
	}

	// 如果没有提供任何参数,显示帮助信息
	if targetURL == "" && o.urlFile == "" {
		return cmd.Help()
	}
	if targetURL != "" && o.urlFile != "" {
		return &models.ConfigError{Field: "url", Cause: fmt.Errorf("目标URL和 --url-file 不能同时指定")}
	}

	cfg := o.appConfig
	applyFlagOverrides(cmd, o, cfg)

	merged, err := headerManager.GetHeaders()
	if err != nil {
		return err
	}
	custom := headerManager.GetCustomHeaders()
	if len(custom) > 0 {
		utils.Infof("使用%d个自定义HTTP头部: %v", len(custom), headerManager.GetSafeHeaders())
	}

	monitor := crawlers.NewResourceMonitor(crawlers.ResourceMonitorConfig{
		MinAvailableMB:   cfg.Resource.MinAvailableMB,
		PerFetchMB:       cfg.Resource.PerFetchMB,
		CPULoadThreshold: cfg.Resource.CPULoadThreshold,
	})
	cfg.Capture.FetchWorkers = monitor.RecommendFetchWorkers(cfg.Capture.FetchWorkers)

	runner := &runner{
		cmd:          cmd,
		config:       cfg,
		staticHeader: merged,
		custom:       custom,
		showProgress: !o.noProgress,
	}

	if o.urlFile != "" {
		return o.runBatch(ctx, runner)
	}

	normalized, err := utils.NormalizeInputURL(targetURL)
	if err != nil {
		return err
	}
	_, err = runner.grab(ctx, normalized)
	return err
}

func (o *options) runBatch(ctx context.Context, r *runner) error {
	urls, err := utils.ReadURLsFromFile(o.urlFile)
	if err != nil {
		return &models.ConfigError{FilePath: o.urlFile, Field: "url-file", Cause: err}
	}

	// 数值参数非法时在启动任何浏览器之前失败
	if _, err := r.config.CaptureConfig(urls[0], r.custom); err != nil {
		return err
	}

	batch := core.NewBatchGrabber(r.grab, time.Duration(o.batchDelay)*time.Second, o.continueOnError)
	summary, err := batch.RunBatch(ctx, urls)
	summary.PrintSummary()
	if err != nil {
		return err
	}
	if summary.FailCount > 0 {
		return fmt.Errorf("%w: %d/%d", errBatchFailed, summary.FailCount, summary.TotalURLs)
	}

	utils.Info("✨ 批量捕获任务完成!")
	return nil
}

// validateHeaders 加载并验证头部配置,打印脱敏后的结果
func validateHeaders(cmd *cobra.Command, hm *core.HeaderManager) error {
	utils.Info("🔍 验证HTTP头部配置...")
	if err := hm.LoadConfig(); err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	if err := hm.Validate(); err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}

	safeHeaders := hm.GetSafeHeaders()
	names := make([]string, 0, len(safeHeaders))
	for name := range safeHeaders {
		names = append(names, name)
	}
	sort.Strings(names)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "✅ 配置验证通过!")
	fmt.Fprintf(out, "当前有效的HTTP头部 (%d个):\n", len(safeHeaders))
	for _, name := range names {
		fmt.Fprintf(out, "  %s: %s\n", name, safeHeaders[name])
	}
	return nil
}

// runner 对单个URL执行捕获+保存
type runner struct {
	cmd          *cobra.Command
	config       *core.Config
	staticHeader http.Header
	custom       map[string]string
	showProgress bool
}

func (r *runner) grab(ctx context.Context, targetURL string) (*core.GrabResult, error) {
	captureConfig, err := r.config.CaptureConfig(targetURL, r.custom)
	if err != nil {
		return nil, err
	}
	saveConfig, err := r.config.SaveConfig(targetURL)
	if err != nil {
		return nil, err
	}

	opts := core.GrabOptions{
		Capture: captureConfig,
		Save:    saveConfig,
		NewDriver: func(c models.CaptureConfig) models.BrowserDriver {
			return crawlers.NewDriver(c, r.staticHeader)
		},
		ShowProgress: r.showProgress,
		Stream:       r.config.Save.Stream,
	}

	if r.showProgress {
		spinner := utils.NewSpinner("🌐 捕获中")
		opts.OnStatus = func(msg string) { spinner.Describe(msg) }
		opts.OnResource = func(models.Resource) { _ = spinner.Add(1) }
		defer func() { _ = spinner.Finish() }()
	}

	result, err := core.NewGrabber(opts).Run(ctx)
	if err != nil {
		if result != nil && result.Save.SavedCount() > 0 {
			utils.Warnf("运行中止前已保存%d个文件", result.Save.SavedCount())
		}
		return result, err
	}

	utils.PrintSummary(r.cmd.OutOrStdout(), result.TargetURL, result.Stats, result.Save)
	return result, nil
}
