package main

import (
	"github.com/RecoveryAshes/webgrab/internal/core"
	"github.com/spf13/cobra"
)

// applyFlagOverrides 命令行参数覆盖配置文件
// 只覆盖用户显式指定的参数,未指定时保留配置文件(或默认)的值
func applyFlagOverrides(cmd *cobra.Command, o *options, cfg *core.Config) {
	changed := cmd.Flags().Changed

	if changed("output") {
		cfg.Save.OutputDir = o.outputDir
	}
	if changed("include-external") {
		cfg.Save.IncludeExternal = o.includeExternal
	}
	if changed("overwrite") {
		cfg.Save.Overwrite = o.overwrite
	}
	if changed("manifest") {
		cfg.Save.Manifest = o.manifest
	}
	if changed("stream") {
		cfg.Save.Stream = o.stream
	}

	if changed("wait") {
		cfg.Capture.WaitTime = o.waitTime
	}
	if changed("timeout") {
		cfg.Capture.TimeoutMs = o.timeoutMs
	}
	if changed("headless") {
		cfg.Capture.Headless = o.headless
	}
	if changed("user-agent") {
		cfg.Capture.UserAgent = o.userAgent
	}
	if changed("viewport-width") {
		cfg.Capture.ViewportWidth = o.viewportWidth
	}
	if changed("viewport-height") {
		cfg.Capture.ViewportHeight = o.viewportHeight
	}
	if changed("bypass-csp") {
		cfg.Capture.BypassCSP = o.bypassCSP
	}
	if changed("stealth") {
		cfg.Capture.Stealth = o.stealth
	}
	if changed("mode") {
		cfg.Capture.Mode = o.mode
	}
	if changed("fetch-workers") {
		cfg.Capture.FetchWorkers = o.fetchWorkers
	}
}
