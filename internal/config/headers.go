package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/webgrab/internal/models"
	"github.com/RecoveryAshes/webgrab/internal/utils"
	"github.com/spf13/viper"
)

const (
	// DefaultConfigFile 默认头部配置文件
	DefaultConfigFile = "configs/headers.yaml"

	// MaxConfigFileSize 头部配置文件大小上限 (1MB)
	MaxConfigFileSize = 1 << 20
)

//go:embed headers_template.yaml
var headerTemplate []byte

// HeaderConfigLoader 加载额外请求头部配置
// 文件不存在时写出带注释的模板,首次运行即可看到可配置项
type HeaderConfigLoader struct {
	path string
}

// NewHeaderConfigLoader 创建加载器,path为空时使用DefaultConfigFile
func NewHeaderConfigLoader(path string) *HeaderConfigLoader {
	if path == "" {
		path = DefaultConfigFile
	}
	return &HeaderConfigLoader{path: path}
}

// Path 配置文件路径
func (l *HeaderConfigLoader) Path() string {
	return l.path
}

// LoadConfig 读取并解析头部配置
// 头部名称规范化为 Canonical 形式;任何失败都返回ConfigError
func (l *HeaderConfigLoader) LoadConfig() (*models.HeaderConfig, error) {
	info, err := os.Stat(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := l.writeTemplate(); err != nil {
			return nil, l.configError(err)
		}
		utils.Infof("📝 已生成头部配置模板: %s", l.path)
		info, err = os.Stat(l.path)
	}
	if err != nil {
		return nil, l.configError(err)
	}
	if info.Size() > MaxConfigFileSize {
		return nil, l.configError(fmt.Errorf("文件过大: %d 字节 (最大 %d)", info.Size(), MaxConfigFileSize))
	}

	v := viper.New()
	v.SetConfigFile(l.path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, l.configError(err)
	}

	var raw models.HeaderConfig
	if err := v.Unmarshal(&raw); err != nil {
		return nil, l.configError(fmt.Errorf("解析headers失败: %w", err))
	}

	// viper会把键名转成小写
	headers := make(map[string]string, len(raw.Headers))
	for name, value := range raw.Headers {
		headers[http.CanonicalHeaderKey(name)] = value
	}
	return &models.HeaderConfig{Headers: headers}, nil
}

func (l *HeaderConfigLoader) writeTemplate() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}
	return os.WriteFile(l.path, headerTemplate, 0644)
}

func (l *HeaderConfigLoader) configError(err error) error {
	return &models.ConfigError{FilePath: l.path, Field: "headers", Cause: err}
}
