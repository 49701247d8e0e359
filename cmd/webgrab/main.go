package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/RecoveryAshes/webgrab/internal/models"
	"github.com/RecoveryAshes/webgrab/internal/utils"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 退出码
const (
	exitOK          = 0
	exitFatal       = 1
	exitInterrupted = 130
)

// exitCode 把运行结果映射为进程退出码
// 单个资源的失败不会到达这里,只有致命错误和中断
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	default:
		return exitFatal
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	code := reportError(os.Stderr, err)

	stop()
	os.Exit(code)
}

// reportError 输出结束原因并返回退出码
// 配置、浏览器和导航错误标注为致命错误并写入日志,其余错误(如批量部分失败)只输出到终端
func reportError(w io.Writer, err error) int {
	code := exitCode(err)
	switch {
	case code == exitInterrupted:
		utils.Warn("收到中断信号,已停止")
		fmt.Fprintln(w, "已中断")
	case models.IsFatal(err):
		utils.Errorf("致命错误: %v", err)
		fmt.Fprintf(w, "致命错误: %v\n", err)
	case err != nil:
		fmt.Fprintf(w, "错误: %v\n", err)
	}
	return code
}
