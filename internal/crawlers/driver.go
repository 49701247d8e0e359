package crawlers

import (
	"net/http"

	"github.com/RecoveryAshes/webgrab/internal/models"
)

// NewDriver 按捕获模式创建驱动
// headers只用于静态模式;动态模式由浏览器决定默认头部,只注入config.Headers
func NewDriver(config models.CaptureConfig, headers http.Header) models.BrowserDriver {
	if config.Mode == models.ModeStatic {
		return NewStaticDriver(config, headers)
	}
	return NewDynamicDriver(config)
}
