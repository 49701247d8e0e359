package core

import (
	"fmt"
	"net/http"

	"github.com/RecoveryAshes/webgrab/internal/config"
	"github.com/RecoveryAshes/webgrab/internal/models"
	"github.com/RecoveryAshes/webgrab/internal/utils"
)

// DefaultUserAgent 静态模式的默认User-Agent
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/120.0.0.0 Safari/537.36"

// headerLayer 一个来源的头部
type headerLayer struct {
	source  string
	headers http.Header
}

// HeaderManager 合并三层额外请求头部: 默认 < 配置文件 < 命令行
// 静态模式使用全部三层,动态模式只注入用户配置的两层
type HeaderManager struct {
	defaults headerLayer
	file     headerLayer
	cli      headerLayer

	loader    *config.HeaderConfigLoader
	validator *utils.HeaderValidator
	redactor  *utils.HeaderRedactor
	loaded    bool
}

// NewHeaderManager 创建头部管理器
// configFile为空时使用默认路径;命令行头部格式错误时返回ConfigError
func NewHeaderManager(configFile string, cliHeaders []string) (*HeaderManager, error) {
	cli, err := models.ParseHeaderFlags(cliHeaders)
	if err != nil {
		return nil, &models.ConfigError{Field: "header", Cause: err}
	}

	return &HeaderManager{
		defaults: headerLayer{source: "默认", headers: http.Header{
			"User-Agent":      {DefaultUserAgent},
			"Accept":          {"*/*"},
			"Accept-Encoding": {"gzip, deflate, br"},
		}},
		file:      headerLayer{source: "配置文件", headers: http.Header{}},
		cli:       headerLayer{source: "命令行", headers: cli},
		loader:    config.NewHeaderConfigLoader(configFile),
		validator: utils.NewHeaderValidator(),
		redactor:  utils.NewHeaderRedactor(),
	}, nil
}

// LoadConfig 加载头部配置文件,只加载一次
func (hm *HeaderManager) LoadConfig() error {
	if hm.loaded {
		return nil
	}

	headerConfig, err := hm.loader.LoadConfig()
	if err != nil {
		return err
	}

	file := make(http.Header, len(headerConfig.Headers))
	for name, value := range headerConfig.Headers {
		file.Set(name, value)
	}
	hm.file.headers = file
	hm.loaded = true

	if len(file) > 0 {
		utils.Debugf("从 %s 加载%d个HTTP头部: %s", hm.loader.Path(), len(file), hm.redactor.String(file))
	}
	return nil
}

// Validate 逐层校验,错误信息带上来源
func (hm *HeaderManager) Validate() error {
	for _, layer := range hm.layers() {
		if err := hm.validator.Validate(layer.headers); err != nil {
			return fmt.Errorf("%s头部: %w", layer.source, err)
		}
	}
	return nil
}

func (hm *HeaderManager) layers() []headerLayer {
	return []headerLayer{hm.defaults, hm.file, hm.cli}
}

// GetMergedHeaders 静态模式使用的完整头部
func (hm *HeaderManager) GetMergedHeaders() http.Header {
	return mergeLayers(hm.layers()...)
}

// GetCustomHeaders 注入浏览器的头部 (配置文件 < 命令行)
// User-Agent和Accept-Encoding等由浏览器自己决定,不注入默认层
func (hm *HeaderManager) GetCustomHeaders() map[string]string {
	merged := mergeLayers(hm.file, hm.cli)
	result := make(map[string]string, len(merged))
	for name := range merged {
		result[name] = merged.Get(name)
	}
	return result
}

// GetSafeHeaders 脱敏后的完整头部,用于日志和 --validate-config
func (hm *HeaderManager) GetSafeHeaders() map[string]string {
	return hm.redactor.Redact(hm.GetMergedHeaders())
}

// GetHeaders 加载、校验并返回完整头部
func (hm *HeaderManager) GetHeaders() (http.Header, error) {
	if err := hm.LoadConfig(); err != nil {
		return nil, err
	}
	if err := hm.Validate(); err != nil {
		return nil, err
	}
	return hm.GetMergedHeaders(), nil
}

// mergeLayers 后面的层整体替换前面同名头部的值
func mergeLayers(layers ...headerLayer) http.Header {
	result := make(http.Header)
	for _, layer := range layers {
		for name, values := range layer.headers {
			if len(values) > 0 {
				result[name] = values
			}
		}
	}
	return result
}
