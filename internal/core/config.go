package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/webgrab/internal/models"
	"github.com/RecoveryAshes/webgrab/internal/utils"
	"github.com/spf13/viper"
)

// Config 应用程序配置
type Config struct {
	Capture  CaptureSection  `mapstructure:"capture"`
	Save     SaveSection     `mapstructure:"save"`
	Logging  LoggingConfig   `mapstructure:"logging"`
	Resource ResourceSection `mapstructure:"resource"`
}

// CaptureSection 捕获配置
type CaptureSection struct {
	WaitTime       int    `mapstructure:"wait_time"`
	TimeoutMs      int    `mapstructure:"timeout_ms"`
	Headless       bool   `mapstructure:"headless"`
	UserAgent      string `mapstructure:"user_agent"`
	ViewportWidth  int    `mapstructure:"viewport_width"`
	ViewportHeight int    `mapstructure:"viewport_height"`
	BypassCSP      bool   `mapstructure:"bypass_csp"`
	Stealth        bool   `mapstructure:"stealth"`
	Mode           string `mapstructure:"mode"`
	QueueSize      int    `mapstructure:"queue_size"`
	FetchWorkers   int    `mapstructure:"fetch_workers"`
}

// SaveSection 保存配置
type SaveSection struct {
	OutputDir       string `mapstructure:"output_dir"`
	IncludeExternal bool   `mapstructure:"include_external"`
	Overwrite       bool   `mapstructure:"overwrite"`
	Manifest        bool   `mapstructure:"manifest"`
	Stream          bool   `mapstructure:"stream"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// ResourceSection 系统资源阈值
type ResourceSection struct {
	MinAvailableMB   uint64  `mapstructure:"min_available_mb"`
	PerFetchMB       uint64  `mapstructure:"per_fetch_mb"`
	CPULoadThreshold float64 `mapstructure:"cpu_load_threshold"`
}

// LoadConfig 加载配置文件
// 找不到配置文件时使用默认值;文件存在但无法解析时返回ConfigError
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// 设置配置文件
	if configPath != "" {
		// 使用指定的配置文件
		v.SetConfigFile(configPath)
	} else {
		// 搜索默认位置
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		// 添加配置搜索路径
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")

		// 用户主目录
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".webgrab"))
		}
	}

	// 设置默认值
	setDefaults(v)

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, &models.ConfigError{FilePath: configPath, Cause: fmt.Errorf("读取配置文件失败: %w", err)}
		}
		utils.Debugf("未找到配置文件,使用默认配置")
	} else {
		utils.Debugf("使用配置文件: %s", v.ConfigFileUsed())
	}

	// 解析配置
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, &models.ConfigError{FilePath: v.ConfigFileUsed(), Cause: fmt.Errorf("解析配置文件失败: %w", err)}
	}

	return &config, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 捕获配置默认值
	v.SetDefault("capture.wait_time", 0)
	v.SetDefault("capture.timeout_ms", models.DefaultTimeoutMs)
	v.SetDefault("capture.headless", true)
	v.SetDefault("capture.user_agent", "")
	v.SetDefault("capture.viewport_width", models.DefaultViewportWidth)
	v.SetDefault("capture.viewport_height", models.DefaultViewportHeight)
	v.SetDefault("capture.bypass_csp", true)
	v.SetDefault("capture.stealth", false)
	v.SetDefault("capture.mode", string(models.ModeDynamic))
	v.SetDefault("capture.queue_size", models.DefaultQueueSize)
	v.SetDefault("capture.fetch_workers", models.DefaultFetchWorkers)

	// 保存配置默认值
	v.SetDefault("save.output_dir", models.DefaultOutputDir)
	v.SetDefault("save.include_external", false)
	v.SetDefault("save.overwrite", false)
	v.SetDefault("save.manifest", false)
	v.SetDefault("save.stream", false)

	// 日志配置默认值
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	// 资源阈值默认值
	v.SetDefault("resource.min_available_mb", 512)
	v.SetDefault("resource.per_fetch_mb", 64)
	v.SetDefault("resource.cpu_load_threshold", 90.0)
}

// LogConfig 转换为日志系统配置
func (c *Config) LogConfig() utils.LogConfig {
	return utils.LogConfig{
		Level:      c.Logging.Level,
		LogDir:     c.Logging.LogDir,
		MaxSize:    c.Logging.Rotation.MaxSize,
		MaxBackups: c.Logging.Rotation.MaxBackups,
		MaxAge:     c.Logging.Rotation.MaxAge,
		Compress:   c.Logging.Rotation.Compress,
	}
}

// CaptureConfig 为目标URL构造并校验捕获配置
func (c *Config) CaptureConfig(targetURL string, headers map[string]string) (models.CaptureConfig, error) {
	mode, err := models.ParseCaptureMode(c.Capture.Mode)
	if err != nil {
		return models.CaptureConfig{}, err
	}

	return models.NewCaptureConfig(models.CaptureConfig{
		URL:            targetURL,
		WaitTime:       c.Capture.WaitTime,
		TimeoutMs:      c.Capture.TimeoutMs,
		Headless:       c.Capture.Headless,
		UserAgent:      c.Capture.UserAgent,
		ViewportWidth:  c.Capture.ViewportWidth,
		ViewportHeight: c.Capture.ViewportHeight,
		BypassCSP:      c.Capture.BypassCSP,
		Stealth:        c.Capture.Stealth,
		Mode:           mode,
		QueueSize:      c.Capture.QueueSize,
		FetchWorkers:   c.Capture.FetchWorkers,
		Headers:        headers,
	})
}

// SaveConfig 为目标URL构造并校验保存配置
func (c *Config) SaveConfig(targetURL string) (models.SaveConfig, error) {
	return models.NewSaveConfig(models.SaveConfig{
		OutputDir:       c.Save.OutputDir,
		BaseURL:         targetURL,
		IncludeExternal: c.Save.IncludeExternal,
		Overwrite:       c.Save.Overwrite,
		Manifest:        c.Save.Manifest,
	})
}
