package pkg

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// DeviceConfig 设备身份配置，serial 同时作为 MQTT 用户名
type DeviceConfig struct {
	Serial     string `mapstructure:"serial"`     // 设备序列号
	Credential string `mapstructure:"credential"` // 设备凭据，作为 MQTT 密码
	DeviceType string `mapstructure:"deviceType"` // 设备类型码，决定主题命名空间
	Host       string `mapstructure:"host"`       // 设备地址，留空则通过 mDNS 发现
}

// BridgeConfig Home Assistant 侧 MQTT broker 配置
type BridgeConfig struct {
	Broker          string        `mapstructure:"broker"`
	ClientID        string        `mapstructure:"clientID"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	DiscoveryPrefix string        `mapstructure:"discoveryPrefix"` // HA MQTT discovery 前缀，默认 homeassistant
	TopicPrefix     string        `mapstructure:"topicPrefix"`     // 实体状态/命令主题前缀
	ConnectTimeout  time.Duration `mapstructure:"connectTimeout"`
}

// PollConfig 环境数据轮询配置
type PollConfig struct {
	Interval time.Duration `mapstructure:"interval"` // 轮询间隔，默认 5s
}

// AdminConfig 状态查询 API 配置
type AdminConfig struct {
	Enable bool `mapstructure:"enable"`
	Port   int  `mapstructure:"port"`
}

// OptionsConfig 持久化选项存储配置
type OptionsConfig struct {
	Path string `mapstructure:"path"` // 选项文件路径
}

type LogConfig struct {
	LogPath    string `mapstructure:"log_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
	Level      string `mapstructure:"level"`
}

type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Device  DeviceConfig  `mapstructure:"device"`
	Bridge  BridgeConfig  `mapstructure:"bridge"`
	Poll    PollConfig    `mapstructure:"poll"`
	Admin   AdminConfig   `mapstructure:"admin"`
	Options OptionsConfig `mapstructure:"options"`
	Version string        `mapstructure:"version"`
}

// InitCommon 用于初始化全局配置
func InitCommon(configDir string) (*Config, *viper.Viper, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter("::")) // 设置 key 分隔符为 ::，因为默认的 . 会和 IP 地址冲突
	v.AddConfigPath(configDir)
	v.AutomaticEnv() // 读取环境变量
	// 遍历配置目录及其子目录中的所有文件
	_ = filepath.WalkDir(configDir, func(filePath string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("访问路径 %s 失败: %w", filePath, err)
		}

		// 如果是目录则跳过，继续遍历
		if d.IsDir() {
			return nil
		}

		// 只处理 .yaml 或 .yml 文件
		ext := filepath.Ext(filePath)
		if ext == ".yaml" || ext == ".yml" {
			baseName := filepath.Base(filePath)
			configName := baseName[0 : len(baseName)-len(ext)]
			v.SetConfigName(configName)
			v.SetConfigFile(filePath)

			// 读取并合并配置文件 (会覆盖之前的配置)
			if err := v.MergeInConfig(); err != nil {
				return fmt.Errorf("读取配置文件失败 %s: %w", filePath, err)
			}
		}

		return nil
	})
	var common Config
	// 反序列化到结构体
	if err := v.Unmarshal(&common); err != nil {
		return nil, nil, fmt.Errorf("反序列化配置失败: %w", err)
	}
	common.applyDefaults()
	return &common, v, nil
}

// applyDefaults 填充未配置项的默认值
func (c *Config) applyDefaults() {
	if c.Poll.Interval <= 0 {
		c.Poll.Interval = 5 * time.Second
	}
	if c.Bridge.DiscoveryPrefix == "" {
		c.Bridge.DiscoveryPrefix = "homeassistant"
	}
	if c.Bridge.TopicPrefix == "" {
		c.Bridge.TopicPrefix = "purecool"
	}
	if c.Bridge.ConnectTimeout <= 0 {
		c.Bridge.ConnectTimeout = 10 * time.Second
	}
	if c.Options.Path == "" {
		c.Options.Path = "options.yaml"
	}
}

// 定义一个不导出的 key 类型，避免 context key 冲突
type configKey struct{}

// WithConfig 将全局配置指针存入 context 中
func WithConfig(ctx context.Context, config *Config) context.Context {
	return context.WithValue(ctx, configKey{}, config)
}

// ConfigFromContext 从 context 中提取配置指针
func ConfigFromContext(ctx context.Context) *Config {
	if config, ok := ctx.Value(configKey{}).(*Config); ok {
		return config
	}
	return &Config{}
}
